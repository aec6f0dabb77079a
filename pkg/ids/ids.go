// Package ids defines the two identifier universes used across the
// pipeline: sparse external OSM identifiers and the dense internal
// identifiers assigned during assembly.
package ids

// OSMID is a sparse 64-bit identifier taken directly from the input stream.
type OSMID int64

// NodeID is a dense internal identifier assigned during assembly. The set
// of valid NodeIDs for a graph of N nodes is exactly {0 ... N-1}.
type NodeID uint32

// EdgeID is a dense internal identifier for a node-based or edge-based edge.
type EdgeID uint32

// Invalid is the all-ones sentinel denoting absence, for any of the dense
// ID types above.
const Invalid = ^uint32(0)

// InvalidNode is Invalid typed as a NodeID.
const InvalidNode = NodeID(Invalid)

// InvalidEdge is Invalid typed as an EdgeID.
const InvalidEdge = EdgeID(Invalid)

// Valid reports whether id is not the Invalid sentinel.
func (n NodeID) Valid() bool { return n != InvalidNode }

// Valid reports whether id is not the Invalid sentinel.
func (e EdgeID) Valid() bool { return e != InvalidEdge }
