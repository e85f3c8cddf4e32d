// Package api is common to the PFB and pfmetadata readers.
package api

import (
	"io"
	"sync"
)

type ReadSeekerCloser interface {
	io.ReadSeeker
	io.Closer
}

type AttributeMap interface {
	// Ordered list of keys
	Keys() []string
	// Indexed lookup
	Get(key string) (val any, has bool)
}

// Array is a materialized grid: samples in row-major order for the
// given shape. PFB stores doubles only, so there is no element type
// parameter.
type Array struct {
	Data  []float64
	Shape []int64
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.Shape)
}

// Size returns the total number of samples.
func (a *Array) Size() int64 {
	n := int64(1)
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// At returns the sample at the given per-axis indices.
// The number of indices must equal the rank.
func (a *Array) At(index ...int64) float64 {
	if len(index) != len(a.Shape) {
		panic("wrong number of indices")
	}
	off := int64(0)
	for i, ix := range index {
		off = off*a.Shape[i] + ix
	}
	return a.Data[off]
}

// Range selects elements along one axis: [Start, Stop) every Step.
// A Scalar range picks the single element at Start and drops the axis
// from the result. Stop < 0 means the axis length.
type Range struct {
	Start, Stop, Step int64
	Scalar            bool
}

// All selects every element of an axis.
func All() Range {
	return Range{Start: 0, Stop: -1, Step: 1}
}

// At selects the single element at index i, dropping the axis.
func At(i int64) Range {
	return Range{Start: i, Stop: i + 1, Step: 1, Scalar: true}
}

// Span selects [start, stop) with step 1.
func Span(start, stop int64) Range {
	return Range{Start: start, Stop: stop, Step: 1}
}

// Strided selects [start, stop) every step elements.
func Strided(start, stop, step int64) Range {
	return Range{Start: start, Stop: stop, Step: step}
}

type VarGetter interface {
	// Len is the length of the leading dimension, or 1 for a scalar.
	Len() int64

	// Shape returns the lengths of all dimensions of the variable.
	Shape() []int64

	Dimensions() []string

	// Values materializes the whole variable. For very large variables
	// it may be more appropriate to call GetSlice or Section instead.
	Values() (*Array, error)

	// GetSlice materializes [begin, end) along the leading dimension.
	GetSlice(begin, end int64) (*Array, error)

	// Section materializes a basic index expression, one Range per
	// axis. Missing trailing ranges select everything on their axis.
	Section(ranges []Range) (*Array, error)

	Attributes() AttributeMap

	// Type returns the base type in CDL format.
	Type() string
	// GoType returns the base type in Go format.
	GoType() string
}

type Variable struct {
	Values     *Array
	Dimensions []string
	Attributes AttributeMap
	Coords     map[string][]float64
}

type Dataset interface {
	// Close releases the dataset. Reads open and close their backing
	// files per call, so there are no long-lived handles to free.
	Close()

	// Attributes returns the global attributes for this dataset.
	Attributes() AttributeMap

	// ListVariables lists the variables in this dataset.
	ListVariables() []string

	// GetVariable materializes the named variable or returns an error
	// if not found.
	GetVariable(name string) (*Variable, error)

	// GetVarGetter returns the lazy handle for the named variable, for
	// callers that want to read sub-regions without materializing the
	// whole array.
	GetVarGetter(name string) (VarGetter, error)

	// ListDimensions lists the names of the dimensions in this dataset.
	ListDimensions() []string

	// GetDimension returns the size of the given dimension and sets
	// the bool to true if found.
	GetDimension(name string) (uint64, bool)

	// GetCoordinate returns the coordinate vector registered for the
	// given dimension and sets the bool to true if found.
	GetCoordinate(name string) ([]float64, bool)

	// SavePFB writes the dataset back out as PFB files, one per
	// variable, under dir. Not implemented.
	SavePFB(dir string) error
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// NoLock disables realization locking for single-threaded callers.
// The default is one serializable lock shared by every lazy array in
// the process.
var NoLock sync.Locker = nopLocker{}
