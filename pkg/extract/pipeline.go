// Package extract is the extractor pipeline (spec section 4.2): it drains
// a primitive source, runs every primitive through the profile's
// callbacks, and spills classified node/way/restriction records to disk
// for the assembly stage to sort-merge.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"waygraph/pkg/geo"
	"waygraph/pkg/ids"
	"waygraph/pkg/osmsource"
	"waygraph/pkg/perr"
	"waygraph/pkg/profile"
)

// primitiveSource is the subset of *osmsource.Source the pipeline needs,
// narrowed to an interface so tests can drive it with an in-memory fake
// instead of a real PBF file.
type primitiveSource interface {
	Next() (any, error)
}

// blockSize bounds how many primitives the reader batches into one unit
// of work before pushing it to the queue.
const blockSize = 512

// QueueCapacity is the bounded FIFO's capacity (spec section 4.2's Q).
const QueueCapacity = 2500

type block struct {
	nodes     []*osmsource.Node
	ways      []*osmsource.Way
	relations []*osmsource.Relation
}

func (b *block) len() int { return len(b.nodes) + len(b.ways) + len(b.relations) }

// Run drains src, applying prof to every primitive, and writes classified
// records to sink. numWorkers workers share a bounded queue behind a
// single reader goroutine (spec section 4.2's reader + worker-pool
// contract); a nil block value is the sentinel that signals end of
// stream, re-pushed by each worker in turn so every worker observes it
// exactly once before exiting.
func Run(ctx context.Context, src primitiveSource, prof profile.Profile, numWorkers int, sink *Sink) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	queue := make(chan *block, QueueCapacity)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readBlocks(ctx, src, queue)
	})
	for i := 0; i < numWorkers; i++ {
		g.Go(func() error {
			return runWorker(ctx, queue, prof, sink)
		})
	}
	return g.Wait()
}

func readBlocks(ctx context.Context, src primitiveSource, queue chan<- *block) error {
	cur := &block{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		prim, err := src.Next()
		if errors.Is(err, perr.EndOfStream) {
			if cur.len() > 0 {
				queue <- cur
			}
			queue <- nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract: read primitive: %w", err)
		}
		switch p := prim.(type) {
		case *osmsource.Node:
			cur.nodes = append(cur.nodes, p)
		case *osmsource.Way:
			cur.ways = append(cur.ways, p)
		case *osmsource.Relation:
			cur.relations = append(cur.relations, p)
		}
		if cur.len() >= blockSize {
			queue <- cur
			cur = &block{}
		}
	}
}

func runWorker(ctx context.Context, queue chan *block, prof profile.Profile, sink *Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-queue:
			if b == nil {
				queue <- nil
				return nil
			}
			if err := processBlock(b, prof, sink); err != nil {
				return err
			}
		}
	}
}

func processBlock(b *block, prof profile.Profile, sink *Sink) error {
	for _, n := range b.nodes {
		if err := processNode(n, prof, sink); err != nil {
			return err
		}
	}
	for _, w := range b.ways {
		if err := processWay(w, prof, sink); err != nil {
			return err
		}
	}
	for _, r := range b.relations {
		if err := processRelation(r, prof, sink); err != nil {
			return err
		}
	}
	return nil
}

func processNode(n *osmsource.Node, prof profile.Profile, sink *Sink) error {
	im := profile.ImportNode{Tags: n.Tags}
	prof.NodeFunction(&im)

	if !geo.MercatorSafe(geo.DegreesFromE5(n.Lat)) {
		return nil
	}
	return sink.AddNode(RawNode{
		OSMID:          n.ID,
		LatE5:          n.Lat,
		LonE5:          n.Lon,
		IsBarrier:      im.Barrier,
		IsTrafficLight: im.TrafficLight,
	})
}

func processWay(w *osmsource.Way, prof profile.Profile, sink *Sink) error {
	if len(w.Refs) < 2 {
		return nil
	}
	ew := profile.ExtractionWay{Tags: w.Tags}
	prof.WayFunction(&ew)
	if !ew.HasSpeedOrDuration() {
		return nil
	}

	nameID := sink.InternName(ew.Name)

	emit := func(refs []ids.OSMID, speedKMH float64) error {
		for i := 0; i+1 < len(refs); i++ {
			e := RawEdge{
				FromOSM:            refs[i],
				ToOSM:              refs[i+1],
				SpeedKMH:           speedKMH,
				DurationSeconds:    ew.DurationSeconds,
				NameID:             nameID,
				TravelMode:         ew.TravelMode,
				IsRoundabout:       ew.IsRoundabout,
				IsAccessRestricted: ew.IsAccessRestricted,
				IgnoreInGrid:       ew.IgnoreInGrid,
			}
			if err := sink.AddEdge(e); err != nil {
				return err
			}
		}
		return nil
	}

	switch {
	case ew.ForwardSpeedKMH > 0 && ew.BackwardSpeedKMH > 0:
		if err := emit(w.Refs, ew.ForwardSpeedKMH); err != nil {
			return err
		}
		if err := emit(reverseRefs(w.Refs), ew.BackwardSpeedKMH); err != nil {
			return err
		}
	case ew.ForwardSpeedKMH > 0:
		if err := emit(w.Refs, ew.ForwardSpeedKMH); err != nil {
			return err
		}
	case ew.BackwardSpeedKMH > 0:
		if err := emit(reverseRefs(w.Refs), ew.BackwardSpeedKMH); err != nil {
			return err
		}
	case ew.DurationSeconds > 0:
		// No directional speed at all; the profile supplied a duration
		// only, so the way is treated as bidirectional.
		if err := emit(w.Refs, 0); err != nil {
			return err
		}
		if err := emit(reverseRefs(w.Refs), 0); err != nil {
			return err
		}
	}

	for _, ref := range w.Refs {
		if err := sink.AddUsedNodeID(ref); err != nil {
			return err
		}
	}
	return sink.AddWayEndpoints(WayEndpoints{
		WayID:      w.ID,
		First:      w.Refs[0],
		Second:     w.Refs[1],
		SecondLast: w.Refs[len(w.Refs)-2],
		Last:       w.Refs[len(w.Refs)-1],
	})
}

func reverseRefs(refs []ids.OSMID) []ids.OSMID {
	out := make([]ids.OSMID, len(refs))
	for i, r := range refs {
		out[len(refs)-1-i] = r
	}
	return out
}

func processRelation(r *osmsource.Relation, prof profile.Profile, sink *Sink) error {
	if r.Tags["type"] != "restriction" {
		return nil
	}
	restrictionTag := r.Tags["restriction"]
	if restrictionTag == "" {
		return nil
	}

	var fromWay, toWay, viaNode ids.OSMID
	haveFrom, haveTo, haveVia := false, false, false
	for _, m := range r.Members {
		switch m.Role {
		case "from":
			if m.Type == "way" {
				fromWay, haveFrom = m.Ref, true
			}
		case "to":
			if m.Type == "way" {
				toWay, haveTo = m.Ref, true
			}
		case "via":
			if m.Type == "node" {
				viaNode, haveVia = m.Ref, true
			}
		}
	}
	if !haveFrom || !haveTo || !haveVia {
		// Malformed, or a way-via restriction, which is out of scope.
		return nil
	}

	isOnly := strings.HasPrefix(restrictionTag, "only_")
	cand := profile.RestrictionCandidate{
		Tags:        r.Tags,
		IsOnly:      isOnly,
		ExceptModes: splitExcept(r.Tags["except"]),
	}
	if !prof.RestrictionAllowed(cand) {
		return nil
	}

	return sink.AddRestriction(RawRestriction{
		FromWay: fromWay,
		ViaNode: viaNode,
		ToWay:   toWay,
		IsOnly:  isOnly,
	})
}

func splitExcept(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ';' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
