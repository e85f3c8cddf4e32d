package pfb

import (
	"fmt"
)

// Write is the declared write-back surface: it would encode one grid
// of samples in storage order (nz, ny, nx) as a single-subgrid PFB
// file. Encoding is not implemented; every call fails.
func Write(fname string, data []float64, shape []int64) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, fname)
}
