package internal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hydroframe/go-parflow/parflow/api"
)

var ErrInvalidSlice = errors.New("invalid slice parameters")

// lazy defers the read of a fixed-shape float64 grid until an access
// is requested. Construction does no I/O: shape and dimensions come
// from a header the opener has already read. Every access acquires the
// lock, materializes the whole grid through readAll, and applies the
// requested index on the result. Nothing is cached between accesses.
type lazy struct {
	readAll func() ([]float64, error)
	shape   []int64
	dims    []string
	attrs   api.AttributeMap
	lock    sync.Locker
}

// NewLazy wraps a full-grid read function as a lazy api.VarGetter.
func NewLazy(readAll func() ([]float64, error), shape []int64,
	dims []string, attrs api.AttributeMap, lock sync.Locker) api.VarGetter {
	if lock == nil {
		lock = api.NoLock
	}
	return &lazy{
		readAll: readAll,
		shape:   shape,
		dims:    dims,
		attrs:   attrs,
		lock:    lock,
	}
}

func (l *lazy) realize() ([]float64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.readAll()
}

func (l *lazy) Section(ranges []api.Range) (*api.Array, error) {
	norm, outShape, err := NormalizeRanges(l.shape, ranges)
	if err != nil {
		return nil, err
	}
	data, err := l.realize()
	if err != nil {
		return nil, err
	}
	return ApplySection(data, l.shape, norm, outShape), nil
}

func (l *lazy) Values() (*api.Array, error) {
	return l.Section(nil)
}

func (l *lazy) GetSlice(begin, end int64) (*api.Array, error) {
	return l.Section([]api.Range{api.Span(begin, end)})
}

func (l *lazy) Len() int64 {
	if len(l.shape) == 0 {
		return 1
	}
	return l.shape[0]
}

func (l *lazy) Shape() []int64 {
	return l.shape
}

func (l *lazy) Dimensions() []string {
	return l.dims
}

func (l *lazy) Attributes() api.AttributeMap {
	return l.attrs
}

func (l *lazy) Type() string {
	return "double"
}

func (l *lazy) GoType() string {
	return "float64"
}

// NormalizeRanges validates a basic index expression against a shape.
// Missing trailing ranges select everything on their axis. It returns
// one concrete range per axis plus the result shape, which excludes
// scalar-selected axes.
func NormalizeRanges(shape []int64, ranges []api.Range) ([]api.Range, []int64, error) {
	if len(ranges) > len(shape) {
		return nil, nil, fmt.Errorf("%w: %d ranges for %d dimensions",
			ErrInvalidSlice, len(ranges), len(shape))
	}
	norm := make([]api.Range, len(shape))
	outShape := make([]int64, 0, len(shape))
	for i, n := range shape {
		r := api.All()
		if i < len(ranges) {
			r = ranges[i]
		}
		if r.Stop < 0 {
			r.Stop = n
		}
		switch {
		case r.Step < 1:
			return nil, nil, fmt.Errorf("%w: step %d on axis %d",
				ErrInvalidSlice, r.Step, i)
		case r.Start < 0 || r.Start > r.Stop || r.Stop > n:
			return nil, nil, fmt.Errorf("%w: [%d:%d) on axis %d of length %d",
				ErrInvalidSlice, r.Start, r.Stop, i, n)
		}
		norm[i] = r
		if !r.Scalar {
			outShape = append(outShape, rangeCount(r))
		}
	}
	return norm, outShape, nil
}

func rangeCount(r api.Range) int64 {
	if r.Scalar {
		return 1
	}
	return (r.Stop - r.Start + r.Step - 1) / r.Step
}

// ApplySection extracts a normalized index expression from a
// materialized buffer. The ranges must come from NormalizeRanges.
func ApplySection(data []float64, shape []int64, norm []api.Range,
	outShape []int64) *api.Array {
	rank := len(shape)
	strides := make([]int64, rank)
	stride := int64(1)
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	counts := make([]int64, rank)
	total := int64(1)
	for i, r := range norm {
		counts[i] = rangeCount(r)
		total *= counts[i]
	}
	out := make([]float64, 0, total)
	// Odometer over the selection, last axis fastest.
	pos := make([]int64, rank)
	for n := int64(0); n < total; n++ {
		off := int64(0)
		for i := range pos {
			off += (norm[i].Start + pos[i]*norm[i].Step) * strides[i]
		}
		out = append(out, data[off])
		for i := rank - 1; i >= 0; i-- {
			pos[i]++
			if pos[i] < counts[i] {
				break
			}
			pos[i] = 0
		}
	}
	return &api.Array{Data: out, Shape: outShape}
}
