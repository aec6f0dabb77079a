package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"waygraph/pkg/ids"
)

const (
	graphMagic       = "WAYGRAPH"
	graphVersion     = uint32(1)
	restrictionMagic = "WAYRSTR "
	restrictionVers  = uint32(1)
	namesMagic       = "WAYNAMES"
	namesVersion     = uint32(1)

	maxNodes = 10_000_000
	maxEdges = 50_000_000
)

// graphFileHeader is the on-disk header for a node-based graph file
// (spec section 6). The name table is a separate file; see WriteNames.
type graphFileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32
}

const (
	edgeFlagRoundabout       = 1 << 0
	edgeFlagAccessRestricted = 1 << 1
	edgeFlagIgnoreInGrid     = 1 << 2
	edgeFlagSplit            = 1 << 3
)

// WriteBinary serializes a Graph to path: node table and canonical edge
// table (column-oriented for zero-copy I/O), followed by a CRC32
// checksum. The name table is written separately by WriteNames. Writes
// to a temp file and renames into place so a crash never leaves a
// partially-written graph file.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := graphFileHeader{
		Version:  graphVersion,
		NumNodes: g.NumNodes,
		NumEdges: g.NumEdges(),
	}
	copy(hdr.Magic[:], graphMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeInt32Slice(cw, g.NodeLatE5); err != nil {
		return fmt.Errorf("write NodeLatE5: %w", err)
	}
	if err := writeInt32Slice(cw, g.NodeLonE5); err != nil {
		return fmt.Errorf("write NodeLonE5: %w", err)
	}
	if err := writeBoolSlice(cw, g.IsBarrier); err != nil {
		return fmt.Errorf("write IsBarrier: %w", err)
	}
	if err := writeBoolSlice(cw, g.IsTrafficLight); err != nil {
		return fmt.Errorf("write IsTrafficLight: %w", err)
	}
	if err := writeUint32Slice(cw, g.FirstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}

	numEdges := int(hdr.NumEdges)
	source := make([]uint32, numEdges)
	target := make([]uint32, numEdges)
	fwdWeight := make([]uint32, numEdges)
	bwdWeight := make([]uint32, numEdges)
	distanceM := make([]int32, numEdges)
	nameID := make([]uint32, numEdges)
	travelMode := make([]byte, numEdges)
	flags := make([]byte, numEdges)
	for i, e := range g.Edges {
		source[i] = uint32(e.Source)
		target[i] = uint32(e.Target)
		fwdWeight[i] = e.ForwardWeight
		bwdWeight[i] = e.BackwardWeight
		distanceM[i] = e.DistanceM
		nameID[i] = e.NameID
		travelMode[i] = e.TravelMode
		flags[i] = edgeFlags(&e)
	}
	for _, s := range [][]uint32{source, target, fwdWeight, bwdWeight, nameID} {
		if err := writeUint32Slice(cw, s); err != nil {
			return fmt.Errorf("write edge column: %w", err)
		}
	}
	if err := writeInt32Slice(cw, distanceM); err != nil {
		return fmt.Errorf("write DistanceM: %w", err)
	}
	if _, err := cw.Write(travelMode); err != nil {
		return fmt.Errorf("write TravelMode: %w", err)
	}
	if _, err := cw.Write(flags); err != nil {
		return fmt.Errorf("write Flags: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func edgeFlags(e *Edge) byte {
	var f byte
	if e.IsRoundabout {
		f |= edgeFlagRoundabout
	}
	if e.IsAccessRestricted {
		f |= edgeFlagAccessRestricted
	}
	if e.IgnoreInGrid {
		f |= edgeFlagIgnoreInGrid
	}
	if e.IsSplit {
		f |= edgeFlagSplit
	}
	return f
}

// ReadBinary deserializes a Graph written by WriteBinary, validating the
// header, CSR invariants, and trailing CRC32.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr graphFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != graphMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != graphVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}

	g := &Graph{NumNodes: hdr.NumNodes}

	if g.NodeLatE5, err = readInt32Slice(cr, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read NodeLatE5: %w", err)
	}
	if g.NodeLonE5, err = readInt32Slice(cr, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read NodeLonE5: %w", err)
	}
	if g.IsBarrier, err = readBoolSlice(cr, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read IsBarrier: %w", err)
	}
	if g.IsTrafficLight, err = readBoolSlice(cr, int(hdr.NumNodes)); err != nil {
		return nil, fmt.Errorf("read IsTrafficLight: %w", err)
	}
	if g.FirstOut, err = readUint32Slice(cr, int(hdr.NumNodes+1)); err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}

	numEdges := int(hdr.NumEdges)
	source, err := readUint32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge source: %w", err)
	}
	target, err := readUint32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge target: %w", err)
	}
	fwdWeight, err := readUint32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge forward weight: %w", err)
	}
	bwdWeight, err := readUint32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge backward weight: %w", err)
	}
	nameID, err := readUint32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge name id: %w", err)
	}
	distanceM, err := readInt32Slice(cr, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read edge distance: %w", err)
	}
	travelMode := make([]byte, numEdges)
	if numEdges > 0 {
		if _, err := io.ReadFull(cr, travelMode); err != nil {
			return nil, fmt.Errorf("read edge travel mode: %w", err)
		}
	}
	flags := make([]byte, numEdges)
	if numEdges > 0 {
		if _, err := io.ReadFull(cr, flags); err != nil {
			return nil, fmt.Errorf("read edge flags: %w", err)
		}
	}

	g.Edges = make([]Edge, numEdges)
	for i := range g.Edges {
		g.Edges[i] = Edge{
			Source:             ids.NodeID(source[i]),
			Target:             ids.NodeID(target[i]),
			ForwardWeight:      fwdWeight[i],
			BackwardWeight:     bwdWeight[i],
			DistanceM:          distanceM[i],
			NameID:             nameID[i],
			TravelMode:         travelMode[i],
			IsRoundabout:       flags[i]&edgeFlagRoundabout != 0,
			IsAccessRestricted: flags[i]&edgeFlagAccessRestricted != 0,
			IgnoreInGrid:       flags[i]&edgeFlagIgnoreInGrid != 0,
			IsSplit:            flags[i]&edgeFlagSplit != 0,
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

	if err := validateCSR(g.FirstOut, source, hdr.NumNodes); err != nil {
		return nil, fmt.Errorf("CSR invalid: %w", err)
	}

	return g, nil
}

// validateCSR checks that firstOut is monotonic and that every edge's
// smaller endpoint falls within the bucket firstOut claims for it.
func validateCSR(firstOut []uint32, source []uint32, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	numEdges := firstOut[numNodes]
	if uint32(len(source)) != numEdges {
		return fmt.Errorf("edge source length %d != FirstOut[NumNodes] %d", len(source), numEdges)
	}
	for u := uint32(0); u < numNodes; u++ {
		for i := firstOut[u]; i < firstOut[u+1]; i++ {
			if source[i] != u {
				return fmt.Errorf("edge %d has source %d, expected %d", i, source[i], u)
			}
		}
	}
	return nil
}

// restrictionFileHeader is the on-disk header for a restriction file.
type restrictionFileHeader struct {
	Magic   [8]byte
	Version uint32
	Count   uint32
}

// WriteRestrictions serializes turn restrictions resolved to dense node
// IDs to a separate file from the node-based graph, per spec section 6.
func WriteRestrictions(path string, restrictions []Restriction) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := restrictionFileHeader{Version: restrictionVers, Count: uint32(len(restrictions))}
	copy(hdr.Magic[:], restrictionMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range restrictions {
		rec := struct {
			From, Via, To uint32
			IsOnly        uint8
			ExceptMask    uint8
		}{
			From: uint32(r.From), Via: uint32(r.Via), To: uint32(r.To),
			ExceptMask: r.ExceptMask,
		}
		if r.IsOnly {
			rec.IsOnly = 1
		}
		if err := binary.Write(cw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("write restriction: %w", err)
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

// ReadRestrictions deserializes a restriction file written by
// WriteRestrictions.
func ReadRestrictions(path string) ([]Restriction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr restrictionFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != restrictionMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != restrictionVers {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	out := make([]Restriction, hdr.Count)
	for i := range out {
		var rec struct {
			From, Via, To uint32
			IsOnly        uint8
			ExceptMask    uint8
		}
		if err := binary.Read(cr, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("read restriction %d: %w", i, err)
		}
		out[i] = Restriction{
			From: ids.NodeID(rec.From), Via: ids.NodeID(rec.Via), To: ids.NodeID(rec.To),
			IsOnly: rec.IsOnly != 0, ExceptMask: rec.ExceptMask,
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

	return out, nil
}

// namesFileHeader is the on-disk header for the name table file.
type namesFileHeader struct {
	Magic   [8]byte
	Version uint32
	Count   uint32
}

// WriteNames serializes a name table to a separate file from the
// node-based graph, per spec section 6: count, then (length u32, bytes)
// records indexed by name_id.
func WriteNames(path string, names []string) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := namesFileHeader{Version: namesVersion, Count: uint32(len(names))}
	copy(hdr.Magic[:], namesMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, name := range names {
		if err := binary.Write(cw, binary.LittleEndian, uint32(len(name))); err != nil {
			return fmt.Errorf("write name %d length: %w", i, err)
		}
		if _, err := cw.Write([]byte(name)); err != nil {
			return fmt.Errorf("write name %d: %w", i, err)
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

// ReadNames deserializes a name table written by WriteNames.
func ReadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr namesFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != namesMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != namesVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	names := make([]string, hdr.Count)
	for i := range names {
		var n uint32
		if err := binary.Read(cr, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read name %d length: %w", i, err)
		}
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(cr, buf); err != nil {
				return nil, fmt.Errorf("read name %d: %w", i, err)
			}
		}
		names[i] = string(buf)
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	return names, nil
}

// Zero-copy I/O helpers using unsafe.Slice, matching the pattern used
// throughout this package's binary encodings.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeBoolSlice(w io.Writer, s []bool) error {
	if len(s) == 0 {
		return nil
	}
	buf := make([]byte, len(s))
	for i, b := range s {
		if b {
			buf[i] = 1
		}
	}
	_, err := w.Write(buf)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readBoolSlice(r io.Reader, n int) ([]bool, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	s := make([]bool, n)
	for i, b := range buf {
		s[i] = b != 0
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
