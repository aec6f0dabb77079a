// Package extsort is the pipeline's external-memory sort utility (spec
// section 4.3, design note: "stable, external, supports a user-supplied
// comparator"). No external-sort library appears anywhere in the
// retrieved corpus, so this is a small hand-rolled run-based merge sort —
// see DESIGN.md for the justification. Runs are spilled to
// os.CreateTemp files and serialized with encoding/gob, then merged
// with a k-way min-heap.
package extsort

import (
	"container/heap"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sort"

	"waygraph/pkg/perr"
)

// Writer appends records of type T to an unsorted spill file.
type Writer[T any] struct {
	f   *os.File
	enc *gob.Encoder
}

// NewWriter creates a spill file at path, truncating any existing content.
func NewWriter[T any](path string) (*Writer[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("extsort: create %s: %w", path, err)
	}
	return &Writer[T]{f: f, enc: gob.NewEncoder(f)}, nil
}

// Write appends one record.
func (w *Writer[T]) Write(v T) error {
	if err := w.enc.Encode(&v); err != nil {
		return fmt.Errorf("%w: extsort encode: %v", perr.OutOfSpace, err)
	}
	return nil
}

// Close flushes and closes the spill file.
func (w *Writer[T]) Close() error {
	return w.f.Close()
}

// Reader reads records of type T back from a spill or sorted file in
// the order they were written.
type Reader[T any] struct {
	f   *os.File
	dec *gob.Decoder
}

// NewReader opens path for sequential record reads.
func NewReader[T any](path string) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extsort: open %s: %w", path, err)
	}
	return &Reader[T]{f: f, dec: gob.NewDecoder(f)}, nil
}

// Read returns the next record, or io.EOF when the file is exhausted.
func (r *Reader[T]) Read() (T, error) {
	var v T
	if err := r.dec.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// Close closes the underlying file.
func (r *Reader[T]) Close() error {
	return r.f.Close()
}

// ReadAll drains every remaining record from r.
func (r *Reader[T]) ReadAll() ([]T, error) {
	var out []T
	for {
		v, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// DefaultRunSize bounds how many records are held in memory per sort
// run before being spilled and sorted on disk.
const DefaultRunSize = 500_000

// Sort reads every record from inputPath, sorts it externally according
// to less, and writes the result to outputPath. It proceeds in two
// phases: split the input into runSize-record chunks, sort each chunk
// in memory and spill it to its own temp file, then k-way merge every
// run into outputPath using a min-heap keyed by less.
func Sort[T any](inputPath, outputPath string, less func(a, b T) bool, runSize int) error {
	if runSize <= 0 {
		runSize = DefaultRunSize
	}

	runPaths, err := splitRuns[T](inputPath, less, runSize)
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range runPaths {
			os.Remove(p)
		}
	}()

	return mergeRuns[T](runPaths, outputPath, less)
}

func splitRuns[T any](inputPath string, less func(a, b T) bool, runSize int) ([]string, error) {
	in, err := NewReader[T](inputPath)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var runPaths []string
	buf := make([]T, 0, runSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		sort.SliceStable(buf, func(i, j int) bool { return less(buf[i], buf[j]) })

		tmp, err := os.CreateTemp("", "extsort-run-*")
		if err != nil {
			return fmt.Errorf("%w: extsort run temp file: %v", perr.OutOfSpace, err)
		}
		path := tmp.Name()
		tmp.Close()

		w, err := NewWriter[T](path)
		if err != nil {
			return err
		}
		for _, v := range buf {
			if err := w.Write(v); err != nil {
				w.Close()
				return err
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		runPaths = append(runPaths, path)
		buf = buf[:0]
		return nil
	}

	for {
		v, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extsort: read record: %w", err)
		}
		buf = append(buf, v)
		if len(buf) >= runSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return runPaths, nil
}

type mergeItem[T any] struct {
	value   T
	runIdx  int
}

type mergeHeap[T any] struct {
	items []mergeItem[T]
	less  func(a, b T) bool
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.runIdx < b.runIdx
}
func (h *mergeHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x any)    { h.items = append(h.items, x.(mergeItem[T])) }
func (h *mergeHeap[T]) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

func mergeRuns[T any](runPaths []string, outputPath string, less func(a, b T) bool) error {
	if len(runPaths) == 0 {
		w, err := NewWriter[T](outputPath)
		if err != nil {
			return err
		}
		return w.Close()
	}

	readers := make([]*Reader[T], len(runPaths))
	for i, p := range runPaths {
		r, err := NewReader[T](p)
		if err != nil {
			return err
		}
		readers[i] = r
	}
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	out, err := NewWriter[T](outputPath)
	if err != nil {
		return err
	}

	h := &mergeHeap[T]{less: less}
	heap.Init(h)
	for i, r := range readers {
		v, err := r.Read()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return fmt.Errorf("extsort: read run %d: %w", i, err)
		}
		heap.Push(h, mergeItem[T]{value: v, runIdx: i})
	}

	for h.Len() > 0 {
		top := heap.Pop(h).(mergeItem[T])
		if err := out.Write(top.value); err != nil {
			return err
		}
		v, err := readers[top.runIdx].Read()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return fmt.Errorf("extsort: read run %d: %w", top.runIdx, err)
		}
		heap.Push(h, mergeItem[T]{value: v, runIdx: top.runIdx})
	}

	return out.Close()
}
