// Command prepare runs the edge-expansion and contraction stages (spec
// section 4.4-4.5) over a graph file produced by the extract command,
// producing the edge-based node table and the contracted hierarchy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"waygraph/pkg/ch"
	"waygraph/pkg/edgegraph"
	"waygraph/pkg/graph"
	"waygraph/pkg/profile"
)

func main() {
	input := flag.String("input", "", "Path to a graph file produced by extract")
	output := flag.String("output", "", "Output hierarchy file path (default: <input>.ch)")
	coreFactor := flag.Float64("core-factor", 0.98, "Fraction of edge-based nodes to contract before stopping")
	verifySamples := flag.Int("verify-samples", 0, "Number of random source/target pairs to sanity-check with bidirectional Dijkstra after contraction")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: prepare --input <map.osrm> [--output map.osrm.ch] [--core-factor 0.98]")
		os.Exit(1)
	}
	out := *output
	if out == "" {
		out = *input + ".ch"
	}

	start := time.Now()

	log.Printf("Reading graph from %s...", *input)
	g, err := graph.ReadBinary(*input)
	if err != nil {
		log.Fatalf("Failed to read graph: %v", err)
	}
	restrictions, err := graph.ReadRestrictions(*input + ".restrictions")
	if err != nil {
		log.Fatalf("Failed to read restrictions: %v", err)
	}
	log.Printf("Graph: %d nodes, %d edges, %d restrictions", g.NumNodes, g.NumEdges(), len(restrictions))

	log.Println("Building directed adjacency...")
	adj := edgegraph.BuildAdjacency(g)

	log.Println("Computing strongly connected components...")
	components := edgegraph.ComputeComponents(adj)

	log.Println("Building edge-based nodes...")
	ebNodes, lookup := edgegraph.BuildNodes(g, components)
	log.Printf("Edge-based nodes: %d", len(ebNodes))

	log.Println("Enumerating turns...")
	prof := profile.NewCar()
	turns := edgegraph.EnumerateTurns(g, adj, ebNodes, lookup, restrictions, prof)
	log.Printf("Admissible turns: %d", len(turns))

	from := make([]uint32, len(turns))
	to := make([]uint32, len(turns))
	weight := make([]uint32, len(turns))
	for i, t := range turns {
		from[i], to[i], weight[i] = t.From, t.To, t.Weight
	}

	log.Println("Contracting...")
	chGraph := ch.Contract(uint32(len(ebNodes)), from, to, weight, *coreFactor)
	log.Printf("Hierarchy: %d forward edges, %d backward edges", len(chGraph.FwdHead), len(chGraph.BwdHead))

	if *verifySamples > 0 && len(ebNodes) > 0 {
		verifyHierarchy(chGraph, len(ebNodes), *verifySamples)
	}

	turnTablePath := out + ".turns"
	log.Printf("Writing edge-based node table to %s...", turnTablePath)
	if err := edgegraph.WriteBinary(turnTablePath, ebNodes); err != nil {
		log.Fatalf("Failed to write edge-based node table: %v", err)
	}

	turnMetaPath := out + ".turn_meta"
	log.Printf("Writing turn metadata to %s...", turnMetaPath)
	if err := edgegraph.WriteTurnMeta(turnMetaPath, turns); err != nil {
		log.Fatalf("Failed to write turn metadata: %v", err)
	}

	log.Printf("Writing hierarchy to %s...", out)
	if err := ch.WriteBinary(out, chGraph); err != nil {
		log.Fatalf("Failed to write hierarchy: %v", err)
	}

	info, _ := os.Stat(out)
	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f MB), %s, %s", elapsed.Round(time.Second), out, float64(info.Size())/(1024*1024), turnTablePath, turnMetaPath)
}

// verifyHierarchy runs bidirectional Dijkstra over the contracted
// hierarchy for a handful of random node pairs as a sanity check (spec
// section 8's searchability property). It logs each query that returns
// an error other than ch.ErrNoPath and does not fail the run; returned
// weights are not compared against a plain Dijkstra search.
func verifyHierarchy(chGraph *ch.CHGraph, numNodes, samples int) {
	log.Printf("Verifying %d random queries against the hierarchy...", samples)
	rng := rand.New(rand.NewSource(1))
	ctx := context.Background()
	mismatches := 0
	for i := 0; i < samples; i++ {
		source := uint32(rng.Intn(numNodes))
		target := uint32(rng.Intn(numNodes))
		if _, err := ch.VerifyQuery(ctx, chGraph, source, target); err != nil && err != ch.ErrNoPath {
			log.Printf("Warning: verify query %d->%d failed: %v", source, target, err)
			mismatches++
		}
	}
	if mismatches > 0 {
		log.Printf("Warning: %d/%d verification queries failed", mismatches, samples)
	} else {
		log.Printf("All %d verification queries succeeded", samples)
	}
}
