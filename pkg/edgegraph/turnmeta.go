package edgegraph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
)

const (
	turnMetaMagic   = "WAYTMETA"
	turnMetaVersion = uint32(1)
)

const turnMetaFlagCompressedGeometry = 1 << 0

// turnMetaFileHeader is the on-disk header for the per-turn metadata
// side file: a record per admissible turn, keyed by the same dense
// index the (from, to, weight) arrays fed to contraction use, mapping
// each emitted edge-based edge back to the segment it leads onto (spec
// section 3/4.4 Output).
type turnMetaFileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumTurns uint32
}

// WriteTurnMeta serializes turns' metadata to path, in the same order
// as the turns slice (and hence the same order as the from/to/weight
// arrays built from it). IsCompressedGeometry is always false: this
// package never collapses degree-2 chains into compressed edges, see
// BuildNodes's doc comment.
func WriteTurnMeta(path string, turns []Turn) error {
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

	hdr := turnMetaFileHeader{Version: turnMetaVersion, NumTurns: uint32(len(turns))}
	copy(hdr.Magic[:], turnMetaMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range turns {
		rec := struct {
			OriginalEdgeID uint32
			NameID         uint32
			Instruction    byte
			TravelMode     byte
			Flags          byte
		}{
			OriginalEdgeID: t.OriginalEdgeID,
			NameID:         t.NameID,
			Instruction:    byte(t.Instruction),
			TravelMode:     t.TravelMode,
		}
		if err := binary.Write(cw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("write turn %d: %w", i, err)
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

// TurnMeta is one decoded record from the turn metadata side file.
type TurnMeta struct {
	OriginalEdgeID       uint32
	NameID               uint32
	Instruction          Instruction
	TravelMode           uint8
	IsCompressedGeometry bool
}

// ReadTurnMeta deserializes a turn metadata file written by
// WriteTurnMeta.
func ReadTurnMeta(path string) ([]TurnMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crcReader{r: f, hash: crc32.NewIEEE()}

	var hdr turnMetaFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != turnMetaMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != turnMetaVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	out := make([]TurnMeta, hdr.NumTurns)
	for i := range out {
		var rec struct {
			OriginalEdgeID uint32
			NameID         uint32
			Instruction    byte
			TravelMode     byte
			Flags          byte
		}
		if err := binary.Read(cr, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("read turn %d: %w", i, err)
		}
		out[i] = TurnMeta{
			OriginalEdgeID:       rec.OriginalEdgeID,
			NameID:               rec.NameID,
			Instruction:          Instruction(rec.Instruction),
			TravelMode:           rec.TravelMode,
			IsCompressedGeometry: rec.Flags&turnMetaFlagCompressedGeometry != 0,
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
