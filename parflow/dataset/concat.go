package dataset

import (
	"github.com/hydroframe/go-parflow/internal"
	"github.com/hydroframe/go-parflow/parflow/api"
)

// timeConcat presents an ordered series of per-timestep grids as one
// array with a new leading "time" axis. Realization is per timestep:
// slicing the time axis only reads the files inside the slice.
type timeConcat struct {
	steps   []api.VarGetter // ascending time order
	spatial []int64
	dims    []string // "time" plus the spatial dims
	attrs   api.AttributeMap
}

func newTimeConcat(steps []api.VarGetter, spatial []int64,
	spatialDims []string, attrs api.AttributeMap) api.VarGetter {
	dims := append([]string{"time"}, spatialDims...)
	return &timeConcat{
		steps:   steps,
		spatial: spatial,
		dims:    dims,
		attrs:   attrs,
	}
}

func (tc *timeConcat) Len() int64 {
	return int64(len(tc.steps))
}

func (tc *timeConcat) Shape() []int64 {
	return append([]int64{int64(len(tc.steps))}, tc.spatial...)
}

func (tc *timeConcat) Dimensions() []string {
	return tc.dims
}

func (tc *timeConcat) Attributes() api.AttributeMap {
	return tc.attrs
}

func (tc *timeConcat) Type() string {
	return "double"
}

func (tc *timeConcat) GoType() string {
	return "float64"
}

func (tc *timeConcat) Values() (*api.Array, error) {
	return tc.Section(nil)
}

func (tc *timeConcat) GetSlice(begin, end int64) (*api.Array, error) {
	return tc.Section([]api.Range{api.Span(begin, end)})
}

func (tc *timeConcat) Section(ranges []api.Range) (*api.Array, error) {
	norm, outShape, err := internal.NormalizeRanges(tc.Shape(), ranges)
	if err != nil {
		return nil, err
	}
	tr := norm[0]
	var data []float64
	for t := tr.Start; t < tr.Stop; t += tr.Step {
		sub, err := tc.steps[t].Section(norm[1:])
		if err != nil {
			return nil, err
		}
		data = append(data, sub.Data...)
	}
	if data == nil {
		data = []float64{}
	}
	return &api.Array{Data: data, Shape: outShape}, nil
}
