package extract

import "waygraph/pkg/ids"

// RawNode is one node recorded in the "all_nodes" table (spec section
// 4.2: recorded whenever its latitude lies in the Mercator-safe band),
// with the profile's barrier/traffic-light verdict already applied.
type RawNode struct {
	OSMID          ids.OSMID
	LatE5, LonE5   int32
	IsBarrier      bool
	IsTrafficLight bool
}

// WayEndpoints is the (way_id, first_ref, second_ref, second_last_ref,
// last_ref) tuple the assembly stage merge-joins against restrictions to
// resolve from_node/to_node.
type WayEndpoints struct {
	WayID      ids.OSMID
	First      ids.OSMID
	Second     ids.OSMID
	SecondLast ids.OSMID
	Last       ids.OSMID
}

// RawRestriction is a raw turn restriction keyed by the OSM way/node IDs
// of its members, before from_node/to_node resolution.
type RawRestriction struct {
	FromWay ids.OSMID
	ViaNode ids.OSMID
	ToWay   ids.OSMID
	IsOnly  bool
}

// RawEdge is one directed edge of a way's edge-sequence, still keyed by
// OSM node IDs and carrying enough profile metadata for the assembly
// stage to resolve coordinates and compute the final weight. Either
// SpeedKMH or DurationSeconds (or both) may be populated; DurationSeconds
// takes priority when positive (spec section 4.3 step 8).
type RawEdge struct {
	FromOSM, ToOSM     ids.OSMID
	SpeedKMH           float64
	DurationSeconds    float64
	NameID             uint32
	TravelMode         uint8
	IsRoundabout       bool
	IsAccessRestricted bool
	IgnoreInGrid       bool
}
