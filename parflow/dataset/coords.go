package dataset

import (
	"fmt"
	"sort"

	"github.com/hydroframe/go-parflow/parflow/pfb"
)

// axis builds origin + spacing*i for i in [0, count).
func axis(origin, spacing float64, count int) []float64 {
	c := make([]float64, count)
	for i := range c {
		c[i] = origin + spacing*float64(i)
	}
	return c
}

// Coordinates derives the per-axis coordinate vectors from a grid
// header. Pure computation, no I/O.
func Coordinates(p *pfb.PFB) map[string][]float64 {
	return map[string][]float64{
		"x": axis(p.X(), p.DX(), p.NX()),
		"y": axis(p.Y(), p.DY(), p.NY()),
		"z": axis(p.Z(), p.DZ(), p.NZ()),
	}
}

// checkDimsCoords verifies that the declared dimension names and the
// coordinate keys are the same set, ignoring order.
func checkDimsCoords(fname string, dims []string, coords map[string][]float64) error {
	sortedDims := make([]string, len(dims))
	copy(sortedDims, dims)
	sort.Strings(sortedDims)
	coordKeys := make([]string, 0, len(coords))
	for k := range coords {
		coordKeys = append(coordKeys, k)
	}
	sort.Strings(coordKeys)
	match := len(sortedDims) == len(coordKeys)
	if match {
		for i := range sortedDims {
			if sortedDims[i] != coordKeys[i] {
				match = false
				break
			}
		}
	}
	if !match {
		return fmt.Errorf("%w: mismatch in dims and coord names on file %s: dims %v, coords %v",
			ErrSchema, fname, sortedDims, coordKeys)
	}
	return nil
}
