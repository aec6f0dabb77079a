// Package assembly is the single-threaded external-memory stage (spec
// section 4.3) that turns the extractor's raw, OSM-ID-keyed spill files
// into the dense-ID node-based graph and its restriction file. Every
// step is a full sweep over one or more sorted streams; no step holds
// more than the referenced-node table and the current run buffer in
// memory at once, except the final canonicalization pass (see
// resolveEdges and DESIGN.md for why that one is in-memory here).
package assembly

import (
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"

	"waygraph/pkg/extract"
	"waygraph/pkg/extsort"
	"waygraph/pkg/geo"
	"waygraph/pkg/graph"
	"waygraph/pkg/ids"
	"waygraph/pkg/perr"
)

// Options configures one assembly run.
type Options struct {
	// WorkDir holds the extractor's spill files (extract.NodesFile etc.)
	// and is also used to hold assembly's own intermediate sort runs.
	WorkDir string
	// RunSize overrides extsort's in-memory run size; zero means
	// extsort.DefaultRunSize.
	RunSize int
}

// Result is everything assembly produces from one extractor run.
type Result struct {
	Graph                   *graph.Graph
	Restrictions            []graph.Restriction
	DroppedUnknownNodeEdges int
	DroppedSelfLoopEdges    int
}

// resolvedRestriction carries a restriction through steps 5 and 6 as its
// from_node/to_node get filled in by the two merge-joins.
type resolvedRestriction struct {
	FromWay, ToWay, ViaNode ids.OSMID
	IsOnly                  bool
	FromNodeOSM             ids.OSMID
	HasFromNode             bool
	ToNodeOSM               ids.OSMID
	HasToNode               bool
}

// Assemble runs the ten-step algorithm (spec section 4.3) against the
// spill files under opts.WorkDir, using names as the name table the
// extractor interned (kept in memory across the extract/assembly
// boundary since both run in the same process, per the "extract" CLI
// tool covering sections 4.1-4.3 together).
func Assemble(opts Options, names []string) (*Result, error) {
	runSize := opts.RunSize
	if runSize <= 0 {
		runSize = extsort.DefaultRunSize
	}
	p := func(name string) string { return filepath.Join(opts.WorkDir, name) }

	// Step 1: sort + dedup used node IDs.
	sortedUsed := p("used_node_ids.sorted")
	if err := extsort.Sort[ids.OSMID](p(extract.UsedNodeIDsFile), sortedUsed, lessOSMID, runSize); err != nil {
		return nil, fmt.Errorf("assembly: sort used node ids: %w", err)
	}
	dedupUsed := p("used_node_ids.dedup")
	if err := dedupeOSMIDs(sortedUsed, dedupUsed); err != nil {
		return nil, err
	}

	// Step 2: sort raw nodes by OSM ID.
	sortedNodes := p("nodes.sorted")
	if err := extsort.Sort[extract.RawNode](p(extract.NodesFile), sortedNodes, lessRawNodeByOSMID, runSize); err != nil {
		return nil, fmt.Errorf("assembly: sort raw nodes: %w", err)
	}

	// Step 3: parallel merge assigns dense IDs in merge order.
	osmToInternal, latE5, lonE5, isBarrier, isTrafficLight, err := assignDenseIDs(dedupUsed, sortedNodes)
	if err != nil {
		return nil, err
	}
	numNodes := uint32(len(latE5))
	if numNodes == 0 {
		return nil, fmt.Errorf("%w: no referenced nodes survived assembly", perr.InputIntegrity)
	}

	// Step 4: sort way-endpoint tuples by way ID.
	sortedEndpoints := p("way_endpoints.sorted")
	if err := extsort.Sort[extract.WayEndpoints](p(extract.WayEndpointsFile), sortedEndpoints, lessEndpointsByWayID, runSize); err != nil {
		return nil, fmt.Errorf("assembly: sort way endpoints: %w", err)
	}

	// Step 5: sort restrictions by from_way, merge-join for from_node.
	byFromWay := p("restrictions.by_from_way")
	if err := extsort.Sort[extract.RawRestriction](p(extract.RestrictionsFile), byFromWay, lessRestrictionByFromWay, runSize); err != nil {
		return nil, fmt.Errorf("assembly: sort restrictions by from_way: %w", err)
	}
	withFromNode := p("restrictions.with_from_node")
	if err := fillFromNode(byFromWay, sortedEndpoints, withFromNode); err != nil {
		return nil, err
	}

	// Step 6: sort by to_way, merge-join for to_node.
	byToWay := p("restrictions.by_to_way")
	if err := extsort.Sort[resolvedRestriction](withFromNode, byToWay, lessResolvedByToWay, runSize); err != nil {
		return nil, fmt.Errorf("assembly: sort restrictions by to_way: %w", err)
	}
	resolvedPath := p("restrictions.resolved")
	if err := fillToNode(byToWay, sortedEndpoints, resolvedPath); err != nil {
		return nil, err
	}
	restrictions, err := finalizeRestrictions(resolvedPath, osmToInternal)
	if err != nil {
		return nil, err
	}

	// Steps 7-8: resolve both endpoints of every raw edge and compute its
	// weight. The node table built in step 3 already fits in memory (its
	// size is bounded by the referenced-node count, not the raw OSM
	// input), so both endpoint lookups collapse into one streaming pass
	// over the edges file with map lookups instead of two further
	// external sorts — see DESIGN.md.
	edgeSpecs, droppedUnknown, droppedSelfLoop, err := resolveEdges(p(extract.EdgesFile), osmToInternal, latE5, lonE5)
	if err != nil {
		return nil, err
	}
	if droppedUnknown > 0 {
		log.Printf("assembly: dropped %d edges referencing an unresolved node", droppedUnknown)
	}
	if droppedSelfLoop > 0 {
		log.Printf("assembly: dropped %d self-loop edges", droppedSelfLoop)
	}

	// Steps 9-10: canonicalize orientation and deduplicate parallel edges.
	g := graph.FromDirected(numNodes, latE5, lonE5, isBarrier, isTrafficLight, edgeSpecs)
	g.Names = names

	return &Result{
		Graph:                   g,
		Restrictions:            restrictions,
		DroppedUnknownNodeEdges: droppedUnknown,
		DroppedSelfLoopEdges:    droppedSelfLoop,
	}, nil
}

func lessOSMID(a, b ids.OSMID) bool { return a < b }

func lessRawNodeByOSMID(a, b extract.RawNode) bool { return a.OSMID < b.OSMID }

func lessEndpointsByWayID(a, b extract.WayEndpoints) bool { return a.WayID < b.WayID }

func lessRestrictionByFromWay(a, b extract.RawRestriction) bool { return a.FromWay < b.FromWay }

func lessResolvedByToWay(a, b resolvedRestriction) bool { return a.ToWay < b.ToWay }

// dedupeOSMIDs streams a sorted sequence of OSM IDs and writes the
// distinct values (step 1's dedup half).
func dedupeOSMIDs(inPath, outPath string) error {
	r, err := extsort.NewReader[ids.OSMID](inPath)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := extsort.NewWriter[ids.OSMID](outPath)
	if err != nil {
		return err
	}

	var prev ids.OSMID
	have := false
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("assembly: read used node id: %w", err)
		}
		if have && v == prev {
			continue
		}
		if err := w.Write(v); err != nil {
			return err
		}
		prev, have = v, true
	}
	return w.Close()
}

// assignDenseIDs merges the deduped used-node-ID stream against the
// sorted raw-node stream (step 3): the intersection is the referenced
// node set, assigned dense IDs in merge order.
func assignDenseIDs(dedupUsedPath, sortedNodesPath string) (map[ids.OSMID]ids.NodeID, []int32, []int32, []bool, []bool, error) {
	used, err := extsort.NewReader[ids.OSMID](dedupUsedPath)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	defer used.Close()
	nodes, err := extsort.NewReader[extract.RawNode](sortedNodesPath)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	defer nodes.Close()

	m := make(map[ids.OSMID]ids.NodeID)
	var latE5, lonE5 []int32
	var isBarrier, isTrafficLight []bool

	readUsed := func() (ids.OSMID, bool, error) {
		v, err := used.Read()
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("assembly: read used node id: %w", err)
		}
		return v, true, nil
	}
	readNode := func() (extract.RawNode, bool, error) {
		v, err := nodes.Read()
		if err == io.EOF {
			return extract.RawNode{}, false, nil
		}
		if err != nil {
			return extract.RawNode{}, false, fmt.Errorf("assembly: read raw node: %w", err)
		}
		return v, true, nil
	}

	uVal, haveU, err := readUsed()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	nVal, haveN, err := readNode()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	for haveU && haveN {
		switch {
		case uVal < nVal.OSMID:
			uVal, haveU, err = readUsed()
		case nVal.OSMID < uVal:
			nVal, haveN, err = readNode()
		default:
			if _, already := m[uVal]; !already {
				m[uVal] = ids.NodeID(len(latE5))
				latE5 = append(latE5, nVal.LatE5)
				lonE5 = append(lonE5, nVal.LonE5)
				isBarrier = append(isBarrier, nVal.IsBarrier)
				isTrafficLight = append(isTrafficLight, nVal.IsTrafficLight)
			}
			uVal, haveU, err = readUsed()
			if err == nil {
				nVal, haveN, err = readNode()
			}
		}
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
	}

	return m, latE5, lonE5, isBarrier, isTrafficLight, nil
}

// neighborOf returns the endpoint-neighbor of via on the way described by
// we (spec section 4.3 step 5's four-case rule), or ok=false if via is
// not one of the way's two endpoint edges.
func neighborOf(via ids.OSMID, we extract.WayEndpoints) (ids.OSMID, bool) {
	switch via {
	case we.First:
		return we.Second, true
	case we.Second:
		return we.First, true
	case we.SecondLast:
		return we.Last, true
	case we.Last:
		return we.SecondLast, true
	default:
		return 0, false
	}
}

// fillFromNode merge-joins restrictions (sorted by from_way) against
// way-endpoints (sorted by way ID) to resolve from_node (step 5).
func fillFromNode(restrictionsPath, endpointsPath, outPath string) error {
	rr, err := extsort.NewReader[extract.RawRestriction](restrictionsPath)
	if err != nil {
		return err
	}
	defer rr.Close()
	we, err := extsort.NewReader[extract.WayEndpoints](endpointsPath)
	if err != nil {
		return err
	}
	defer we.Close()
	out, err := extsort.NewWriter[resolvedRestriction](outPath)
	if err != nil {
		return err
	}

	cur, err := we.Read()
	haveCur := err == nil
	if err != nil && err != io.EOF {
		return fmt.Errorf("assembly: read way endpoints: %w", err)
	}

	for {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("assembly: read restriction: %w", err)
		}
		for haveCur && cur.WayID < r.FromWay {
			cur, err = we.Read()
			if err == io.EOF {
				haveCur = false
			} else if err != nil {
				return fmt.Errorf("assembly: read way endpoints: %w", err)
			}
		}
		out2 := resolvedRestriction{FromWay: r.FromWay, ToWay: r.ToWay, ViaNode: r.ViaNode, IsOnly: r.IsOnly}
		if haveCur && cur.WayID == r.FromWay {
			if n, ok := neighborOf(r.ViaNode, cur); ok {
				out2.FromNodeOSM, out2.HasFromNode = n, true
			}
		}
		if err := out.Write(out2); err != nil {
			return err
		}
	}
	return out.Close()
}

// fillToNode merge-joins the step-5 output (sorted by to_way) against
// way-endpoints (sorted by way ID) to resolve to_node (step 6).
func fillToNode(inPath, endpointsPath, outPath string) error {
	in, err := extsort.NewReader[resolvedRestriction](inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	we, err := extsort.NewReader[extract.WayEndpoints](endpointsPath)
	if err != nil {
		return err
	}
	defer we.Close()
	out, err := extsort.NewWriter[resolvedRestriction](outPath)
	if err != nil {
		return err
	}

	cur, err := we.Read()
	haveCur := err == nil
	if err != nil && err != io.EOF {
		return fmt.Errorf("assembly: read way endpoints: %w", err)
	}

	for {
		r, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("assembly: read restriction: %w", err)
		}
		for haveCur && cur.WayID < r.ToWay {
			cur, err = we.Read()
			if err == io.EOF {
				haveCur = false
			} else if err != nil {
				return fmt.Errorf("assembly: read way endpoints: %w", err)
			}
		}
		if haveCur && cur.WayID == r.ToWay {
			if n, ok := neighborOf(r.ViaNode, cur); ok {
				r.ToNodeOSM, r.HasToNode = n, true
			}
		}
		if err := out.Write(r); err != nil {
			return err
		}
	}
	return out.Close()
}

// finalizeRestrictions drops every restriction whose from_node or
// to_node never resolved, and remaps the survivors' OSM IDs to internal
// node IDs.
func finalizeRestrictions(path string, osmToInternal map[ids.OSMID]ids.NodeID) ([]graph.Restriction, error) {
	r, err := extsort.NewReader[resolvedRestriction](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []graph.Restriction
	for {
		rr, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("assembly: read resolved restriction: %w", err)
		}
		if !rr.HasFromNode || !rr.HasToNode {
			continue
		}
		via, ok := osmToInternal[rr.ViaNode]
		if !ok {
			continue
		}
		from, ok := osmToInternal[rr.FromNodeOSM]
		if !ok {
			continue
		}
		to, ok := osmToInternal[rr.ToNodeOSM]
		if !ok {
			continue
		}
		out = append(out, graph.Restriction{From: from, Via: via, To: to, IsOnly: rr.IsOnly})
	}
	return out, nil
}

// resolveEdges implements steps 7 and 8: resolve both endpoints of every
// raw edge to an internal node ID and coordinate, drop self-loops and
// edges referencing an unresolved node, and compute the final weight.
func resolveEdges(edgesPath string, osmToInternal map[ids.OSMID]ids.NodeID, latE5, lonE5 []int32) ([]graph.DirectedEdgeSpec, int, int, error) {
	r, err := extsort.NewReader[extract.RawEdge](edgesPath)
	if err != nil {
		return nil, 0, 0, err
	}
	defer r.Close()

	var out []graph.DirectedEdgeSpec
	var droppedUnknown, droppedSelfLoop int
	for {
		e, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("assembly: read raw edge: %w", err)
		}
		if e.FromOSM == e.ToOSM {
			droppedSelfLoop++
			continue
		}
		from, ok1 := osmToInternal[e.FromOSM]
		to, ok2 := osmToInternal[e.ToOSM]
		if !ok1 || !ok2 {
			droppedUnknown++
			continue
		}

		distM := geo.Haversine(
			geo.DegreesFromE5(latE5[from]), geo.DegreesFromE5(lonE5[from]),
			geo.DegreesFromE5(latE5[to]), geo.DegreesFromE5(lonE5[to]),
		)
		var weight uint32
		if e.DurationSeconds > 0 {
			weight = geo.WeightFromDuration(e.DurationSeconds)
		} else {
			weight = geo.WeightFromDistanceSpeed(distM, e.SpeedKMH)
		}

		out = append(out, graph.DirectedEdgeSpec{
			From: from, To: to, Weight: weight,
			DistanceM:          int32(math.Round(distM)),
			NameID:             e.NameID,
			TravelMode:         e.TravelMode,
			IsRoundabout:       e.IsRoundabout,
			IsAccessRestricted: e.IsAccessRestricted,
			IgnoreInGrid:       e.IgnoreInGrid,
		})
	}
	return out, droppedUnknown, droppedSelfLoop, nil
}
