package extract

import (
	"fmt"
	"path/filepath"
	"sync"

	"waygraph/pkg/extsort"
	"waygraph/pkg/ids"
)

// Sink collects the extractor's five output streams and the shared
// string-interning table. Each stream is guarded by its own mutex (spec
// section 4.2: "each is guarded by its own mutex"), so workers touching
// different streams never contend with each other.
type Sink struct {
	nodesMu sync.Mutex
	nodesW  *extsort.Writer[RawNode]

	usedMu sync.Mutex
	usedW  *extsort.Writer[ids.OSMID]

	endpointsMu sync.Mutex
	endpointsW  *extsort.Writer[WayEndpoints]

	restrictionsMu sync.Mutex
	restrictionsW  *extsort.Writer[RawRestriction]

	edgesMu sync.Mutex
	edgesW  *extsort.Writer[RawEdge]

	namesMu sync.Mutex
	names   []string
	nameIDs map[string]uint32
}

// File names for the five spill streams, rooted under the working
// directory passed to NewSink.
const (
	NodesFile        = "nodes.raw"
	UsedNodeIDsFile  = "used_node_ids.raw"
	WayEndpointsFile = "way_endpoints.raw"
	RestrictionsFile = "restrictions.raw"
	EdgesFile        = "edges.raw"
)

// NewSink opens the five spill files under dir, truncating any existing
// content.
func NewSink(dir string) (*Sink, error) {
	nodesW, err := extsort.NewWriter[RawNode](filepath.Join(dir, NodesFile))
	if err != nil {
		return nil, fmt.Errorf("extract: open nodes spill: %w", err)
	}
	usedW, err := extsort.NewWriter[ids.OSMID](filepath.Join(dir, UsedNodeIDsFile))
	if err != nil {
		return nil, fmt.Errorf("extract: open used-node-ids spill: %w", err)
	}
	endpointsW, err := extsort.NewWriter[WayEndpoints](filepath.Join(dir, WayEndpointsFile))
	if err != nil {
		return nil, fmt.Errorf("extract: open way-endpoints spill: %w", err)
	}
	restrictionsW, err := extsort.NewWriter[RawRestriction](filepath.Join(dir, RestrictionsFile))
	if err != nil {
		return nil, fmt.Errorf("extract: open restrictions spill: %w", err)
	}
	edgesW, err := extsort.NewWriter[RawEdge](filepath.Join(dir, EdgesFile))
	if err != nil {
		return nil, fmt.Errorf("extract: open edges spill: %w", err)
	}
	return &Sink{
		nodesW:        nodesW,
		usedW:         usedW,
		endpointsW:    endpointsW,
		restrictionsW: restrictionsW,
		edgesW:        edgesW,
		nameIDs:       make(map[string]uint32),
	}, nil
}

// AddNode appends a node record.
func (s *Sink) AddNode(n RawNode) error {
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()
	return s.nodesW.Write(n)
}

// AddUsedNodeID appends one reference to a node ID from a way's ref list.
func (s *Sink) AddUsedNodeID(id ids.OSMID) error {
	s.usedMu.Lock()
	defer s.usedMu.Unlock()
	return s.usedW.Write(id)
}

// AddWayEndpoints appends a way-endpoints tuple.
func (s *Sink) AddWayEndpoints(we WayEndpoints) error {
	s.endpointsMu.Lock()
	defer s.endpointsMu.Unlock()
	return s.endpointsW.Write(we)
}

// AddRestriction appends a raw restriction.
func (s *Sink) AddRestriction(r RawRestriction) error {
	s.restrictionsMu.Lock()
	defer s.restrictionsMu.Unlock()
	return s.restrictionsW.Write(r)
}

// AddEdge appends a raw directed edge.
func (s *Sink) AddEdge(e RawEdge) error {
	s.edgesMu.Lock()
	defer s.edgesMu.Unlock()
	return s.edgesW.Write(e)
}

// InternName resolves name to a dense, stable name_id, assigning a new one
// on first sight. Names are consulted infrequently relative to edges, so a
// single shared mutex (rather than one per bucket) is the plain approach.
func (s *Sink) InternName(name string) uint32 {
	s.namesMu.Lock()
	defer s.namesMu.Unlock()
	if id, ok := s.nameIDs[name]; ok {
		return id
	}
	id := uint32(len(s.names))
	s.names = append(s.names, name)
	s.nameIDs[name] = id
	return id
}

// Names returns the interned name table in assigned-ID order. Valid only
// after every worker has finished.
func (s *Sink) Names() []string {
	return s.names
}

// Close closes every spill writer. Collects every error rather than
// stopping at the first, so a failure on one stream doesn't leak the
// file handles of the others.
func (s *Sink) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{
		s.nodesW, s.usedW, s.endpointsW, s.restrictionsW, s.edgesW,
	} {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("extract: closing spill files: %v", errs)
	}
	return nil
}
