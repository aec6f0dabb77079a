// Command extract runs the primitive-source, extractor, and assembly
// stages (spec section 4.1-4.3) over an .osm.pbf file, producing a
// node-based graph file and its companion restriction file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"waygraph/pkg/assembly"
	"waygraph/pkg/config"
	"waygraph/pkg/extract"
	"waygraph/pkg/graph"
	"waygraph/pkg/osmsource"
	"waygraph/pkg/profile"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "map.osrm", "Output graph file path")
	configPath := flag.String("config", "", "Path to an ini-style config file (Memory, Threads)")
	workDir := flag.String("work-dir", "", "Scratch directory for spill files (default: a temp dir under $TMPDIR)")
	keepWork := flag.Bool("keep-work-dir", false, "Don't delete the scratch directory on success")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: extract --input <file.osm.pbf> [--output map.osrm] [--config extract.ini]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		cf, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("Failed to open config file: %v", err)
		}
		cfg, err = config.Parse(cf)
		cf.Close()
		if err != nil {
			log.Fatalf("Failed to parse config file: %v", err)
		}
	}
	log.Printf("Using %d worker threads", cfg.Threads)

	dir := *workDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "waygraph-extract-")
		if err != nil {
			log.Fatalf("Failed to create scratch directory: %v", err)
		}
		if !*keepWork {
			defer os.RemoveAll(dir)
		}
	}

	start := time.Now()
	ctx := context.Background()

	log.Println("Opening OSM file...")
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	sink, err := extract.NewSink(dir)
	if err != nil {
		log.Fatalf("Failed to open scratch files: %v", err)
	}

	log.Println("Running extractor pipeline...")
	src := osmsource.Open(ctx, f, cfg.Threads)
	prof := profile.NewCar()
	if err := extract.Run(ctx, src, prof, cfg.Threads, sink); err != nil {
		sink.Close()
		log.Fatalf("Extractor pipeline failed: %v", err)
	}
	names := sink.Names()
	if err := sink.Close(); err != nil {
		log.Fatalf("Failed to close scratch files: %v", err)
	}

	log.Println("Running assembly...")
	opts := assembly.Options{WorkDir: dir}
	result, err := assembly.Assemble(opts, names)
	if err != nil {
		log.Fatalf("Assembly failed: %v", err)
	}
	log.Printf("Assembled graph: %d nodes, %d edges, %d restrictions", result.Graph.NumNodes, result.Graph.NumEdges(), len(result.Restrictions))
	if result.DroppedUnknownNodeEdges > 0 {
		log.Printf("Warning: dropped %d edges referencing unknown nodes", result.DroppedUnknownNodeEdges)
	}
	if result.DroppedSelfLoopEdges > 0 {
		log.Printf("Warning: dropped %d self-loop edges", result.DroppedSelfLoopEdges)
	}

	log.Printf("Writing graph to %s...", *output)
	if err := graph.WriteBinary(*output, result.Graph); err != nil {
		log.Fatalf("Failed to write graph file: %v", err)
	}
	restrictionsPath := *output + ".restrictions"
	if err := graph.WriteRestrictions(restrictionsPath, result.Restrictions); err != nil {
		log.Fatalf("Failed to write restrictions file: %v", err)
	}
	namesPath := *output + ".names"
	if err := graph.WriteNames(namesPath, result.Graph.Names); err != nil {
		log.Fatalf("Failed to write names file: %v", err)
	}

	info, _ := os.Stat(*output)
	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f MB), %s, %s", elapsed.Round(time.Second), *output, float64(info.Size())/(1024*1024), restrictionsPath, namesPath)
}
