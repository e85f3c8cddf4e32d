package dataset

import (
	"sync"

	"github.com/hydroframe/go-parflow/internal"
	"github.com/hydroframe/go-parflow/parflow/api"
	"github.com/hydroframe/go-parflow/parflow/pfb"
)

// gridLock serializes grid realization across every lazy array in the
// process. Created once at startup and shared by reference unless a
// caller passes its own locker or api.NoLock.
var gridLock sync.Locker = &sync.Mutex{}

// openGrid validates one PFB file's header and returns a lazy getter
// over it plus its derived coordinates. The header is read here; the
// samples are not read until the getter is realized. Each realization
// re-opens the file, so the getter holds no file handle.
func openGrid(fname string, attrs api.AttributeMap, lock sync.Locker) (api.VarGetter, map[string][]float64, error) {
	p, err := pfb.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	defer p.Close()
	dims := p.IndexOrder()
	coords := Coordinates(p)
	if err := checkDimsCoords(fname, dims, coords); err != nil {
		return nil, nil, err
	}
	if lock == nil {
		lock = gridLock
	}
	readAll := func() ([]float64, error) {
		q, err := pfb.Open(fname)
		if err != nil {
			return nil, err
		}
		defer q.Close()
		return q.ReadAll()
	}
	return internal.NewLazy(readAll, p.Shape(), dims, attrs, lock), coords, nil
}
