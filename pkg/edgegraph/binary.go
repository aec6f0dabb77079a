package edgegraph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"waygraph/pkg/ids"
)

const (
	turnGraphMagic   = "WAYTURN "
	turnGraphVersion = uint32(1)
)

// turnGraphFileHeader is the on-disk header for the edge-based node
// table: the "original edge data" side file that lets a query layer map
// an edge-based node ID (what the contracted hierarchy operates over)
// back to the node-based edge and direction it traverses.
type turnGraphFileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
}

const ebNodeFlagRoundabout = 1 << 0
const ebNodeFlagTinyComponent = 1 << 1

// WriteBinary serializes the edge-based node table to path: one record
// per directed traversal, column-oriented, CRC32-trailed, written to a
// temp file and renamed into place (spec section 6's fixed-layout,
// atomic-write convention, matching pkg/graph.WriteBinary).
func WriteBinary(path string, nodes []EdgeBasedNode) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crcWriter{w: f, hash: crc32.NewIEEE()}

	hdr := turnGraphFileHeader{Version: turnGraphVersion, NumNodes: uint32(len(nodes))}
	copy(hdr.Magic[:], turnGraphMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, n := range nodes {
		rec := struct {
			EdgeIndex   uint32
			From, To    uint32
			Weight      uint32
			NameID      uint32
			ComponentID uint32
			TravelMode  byte
			Flags       byte
		}{
			EdgeIndex:   n.EdgeIndex,
			From:        uint32(n.From),
			To:          uint32(n.To),
			Weight:      n.Weight,
			NameID:      n.NameID,
			ComponentID: n.ComponentID,
			TravelMode:  n.TravelMode,
			Flags:       ebNodeFlags(n),
		}
		if err := binary.Write(cw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("write node %d: %w", n.EdgeIndex, err)
		}
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func ebNodeFlags(n EdgeBasedNode) byte {
	var f byte
	if n.IsRoundabout {
		f |= ebNodeFlagRoundabout
	}
	if n.IsTinyComponent {
		f |= ebNodeFlagTinyComponent
	}
	return f
}

// ReadBinary deserializes an edge-based node table written by
// WriteBinary.
func ReadBinary(path string) ([]EdgeBasedNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crcReader{r: f, hash: crc32.NewIEEE()}

	var hdr turnGraphFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != turnGraphMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != turnGraphVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	nodes := make([]EdgeBasedNode, hdr.NumNodes)
	for i := range nodes {
		var rec struct {
			EdgeIndex   uint32
			From, To    uint32
			Weight      uint32
			NameID      uint32
			ComponentID uint32
			TravelMode  byte
			Flags       byte
		}
		if err := binary.Read(cr, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("read node %d: %w", i, err)
		}
		nodes[i] = EdgeBasedNode{
			EdgeIndex:       rec.EdgeIndex,
			From:            ids.NodeID(rec.From),
			To:              ids.NodeID(rec.To),
			Weight:          rec.Weight,
			NameID:          rec.NameID,
			ComponentID:     rec.ComponentID,
			TravelMode:      rec.TravelMode,
			IsRoundabout:    rec.Flags&ebNodeFlagRoundabout != 0,
			IsTinyComponent: rec.Flags&ebNodeFlagTinyComponent != 0,
		}
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	return nodes, nil
}

type crcWriter struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crcWriter) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crcReader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crcReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}
