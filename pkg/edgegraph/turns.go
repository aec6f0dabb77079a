package edgegraph

import (
	"waygraph/pkg/geo"
	"waygraph/pkg/graph"
	"waygraph/pkg/ids"
	"waygraph/pkg/profile"
)

// Instruction is the symbolic turn classification of spec section 4.4.5.
type Instruction uint8

const (
	NoTurn Instruction = iota
	Straight
	SlightLeft
	SlightRight
	Left
	Right
	SharpLeft
	SharpRight
	UTurn
	EnterRoundabout
	LeaveRoundabout
	StayOnRoundabout
)

func (i Instruction) String() string {
	switch i {
	case NoTurn:
		return "NoTurn"
	case Straight:
		return "Straight"
	case SlightLeft:
		return "SlightLeft"
	case SlightRight:
		return "SlightRight"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case SharpLeft:
		return "SharpLeft"
	case SharpRight:
		return "SharpRight"
	case UTurn:
		return "UTurn"
	case EnterRoundabout:
		return "EnterRoundabout"
	case LeaveRoundabout:
		return "LeaveRoundabout"
	case StayOnRoundabout:
		return "StayOnRoundabout"
	default:
		return "Unknown"
	}
}

// Turn is one admissible edge-based edge: a transition from the
// edge-based node representing (u,v) to the one representing (v,w).
// OriginalEdgeID, NameID and TravelMode describe the segment the turn
// leads onto — (v,w)'s underlying node-based edge — and are carried
// alongside Instruction into the per-turn metadata side file (spec
// section 3/4.4 Output).
type Turn struct {
	From, To       uint32
	Weight         uint32
	Instruction    Instruction
	OriginalEdgeID uint32
	NameID         uint32
	TravelMode     uint8
}

type faKey struct{ from, via ids.NodeID }
type fvtKey struct{ from, via, to ids.NodeID }

// restrictionIndex is the only/no-restriction lookup built once per
// EnumerateTurns call.
type restrictionIndex struct {
	only   map[faKey]ids.NodeID
	forbid map[fvtKey]bool
}

func buildRestrictionIndex(restrictions []graph.Restriction) *restrictionIndex {
	idx := &restrictionIndex{
		only:   make(map[faKey]ids.NodeID),
		forbid: make(map[fvtKey]bool),
	}
	for _, r := range restrictions {
		if r.IsOnly {
			idx.only[faKey{r.From, r.Via}] = r.To
		} else {
			idx.forbid[fvtKey{r.From, r.Via, r.To}] = true
		}
	}
	return idx
}

// EnumerateTurns walks every edge-based node (u,v) and every outgoing
// node-based edge from v, admitting the triple (u,v,w) per the four
// conditions of spec section 4.4.3, and computing its weight (section
// 4.4.4) and instruction (section 4.4.5) when admitted.
func EnumerateTurns(g *graph.Graph, adj *Adjacency, ebNodes []EdgeBasedNode, lookup map[DirKey]uint32, restrictions []graph.Restriction, prof profile.Profile) []Turn {
	var ridx *restrictionIndex
	if prof.UseTurnRestrictions() {
		ridx = buildRestrictionIndex(restrictions)
	} else {
		ridx = &restrictionIndex{only: map[faKey]ids.NodeID{}, forbid: map[fvtKey]bool{}}
	}
	var turns []Turn

	trafficPenalty := prof.TrafficSignalPenalty()
	uTurnPenalty := prof.UTurnPenalty()

	for fromIdx := range ebNodes {
		uv := &ebNodes[fromIdx]
		u, v := uv.From, uv.To
		outDeg := adj.OutDegree(v)

		for _, ref := range adj.Successors(v) {
			w := ref.To
			isUTurn := w == u

			cond1 := !isUTurn || outDeg == 1 || g.IsBarrier[v]
			cond2 := !g.IsBarrier[v] || isUTurn
			cond3 := true
			if to, ok := ridx.only[faKey{u, v}]; ok {
				cond3 = to == w
			}
			cond4 := !ridx.forbid[fvtKey{u, v, w}]
			if !(cond1 && cond2 && cond3 && cond4) {
				continue
			}

			toIdx, ok := lookup[DirKey{v, w}]
			if !ok {
				continue
			}
			vw := &ebNodes[toIdx]

			angle := turnAngle(g, u, v, w)
			weight := uv.Weight + prof.TurnPenalty(angle)
			if g.IsTrafficLight[v] {
				weight += trafficPenalty
			}
			if isUTurn {
				weight += uTurnPenalty
			}

			instr := classify(uv, vw, angle, isUTurn, outDeg)

			turns = append(turns, Turn{
				From: uint32(fromIdx), To: toIdx, Weight: weight, Instruction: instr,
				OriginalEdgeID: vw.EdgeIndex, NameID: vw.NameID, TravelMode: vw.TravelMode,
			})
		}
	}

	return turns
}

func turnAngle(g *graph.Graph, u, v, w ids.NodeID) float64 {
	inBearing := geo.Bearing(
		geo.DegreesFromE5(g.NodeLatE5[u]), geo.DegreesFromE5(g.NodeLonE5[u]),
		geo.DegreesFromE5(g.NodeLatE5[v]), geo.DegreesFromE5(g.NodeLonE5[v]),
	)
	outBearing := geo.Bearing(
		geo.DegreesFromE5(g.NodeLatE5[v]), geo.DegreesFromE5(g.NodeLonE5[v]),
		geo.DegreesFromE5(g.NodeLatE5[w]), geo.DegreesFromE5(g.NodeLonE5[w]),
	)
	return geo.TurnAngle(inBearing, outBearing)
}

func classify(uv, vw *EdgeBasedNode, angle float64, isUTurn bool, outDeg int) Instruction {
	switch {
	case uv.IsRoundabout && vw.IsRoundabout:
		if outDeg == 1 {
			return NoTurn
		}
		return StayOnRoundabout
	case vw.IsRoundabout && !uv.IsRoundabout:
		return EnterRoundabout
	case uv.IsRoundabout && !vw.IsRoundabout:
		return LeaveRoundabout
	}

	if uv.NameID != 0 && uv.NameID == vw.NameID && outDeg <= 2 {
		return NoTurn
	}

	if isUTurn {
		return UTurn
	}

	abs := angle
	if abs < 0 {
		abs = -abs
	}
	right := angle > 0

	switch {
	case abs < 10:
		return Straight
	case abs < 45:
		if right {
			return SlightRight
		}
		return SlightLeft
	case abs < 135:
		if right {
			return Right
		}
		return Left
	case abs < 170:
		if right {
			return SharpRight
		}
		return SharpLeft
	default:
		return UTurn
	}
}
