package internal

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hydroframe/go-parflow/parflow/api"
)

// countingReader is a test double for the grid read: it returns a
// fixed buffer and counts how many times it was invoked.
type countingReader struct {
	data  []float64
	err   error
	reads int
}

func (cr *countingReader) readAll() ([]float64, error) {
	cr.reads++
	if cr.err != nil {
		return nil, cr.err
	}
	return cr.data, nil
}

func iota24() []float64 {
	data := make([]float64, 24)
	for i := range data {
		data[i] = float64(i)
	}
	return data
}

var testShape = []int64{2, 3, 4}
var testDims = []string{"z", "y", "x"}

func TestLazyNoReadBeforeAccess(t *testing.T) {
	cr := &countingReader{data: iota24()}
	vg := NewLazy(cr.readAll, testShape, testDims, nil, api.NoLock)
	if cr.reads != 0 {
		t.Fatal("construction performed a read")
	}
	if vg.Len() != 2 {
		t.Error("wrong len:", vg.Len())
	}
	if !reflect.DeepEqual(vg.Shape(), testShape) {
		t.Error("wrong shape:", vg.Shape())
	}
	if !reflect.DeepEqual(vg.Dimensions(), testDims) {
		t.Error("wrong dims:", vg.Dimensions())
	}
	if vg.Type() != "double" || vg.GoType() != "float64" {
		t.Error("wrong type:", vg.Type(), vg.GoType())
	}
	if cr.reads != 0 {
		t.Fatal("metadata access performed a read")
	}

	a, err := vg.Values()
	if err != nil {
		t.Fatal(err)
	}
	if cr.reads != 1 {
		t.Error("first access read", cr.reads, "times, want 1")
	}
	if !reflect.DeepEqual(a.Shape, testShape) || !reflect.DeepEqual(a.Data, iota24()) {
		t.Error("wrong values:", a)
	}

	// No caching: every access re-reads.
	if _, err := vg.Values(); err != nil {
		t.Fatal(err)
	}
	if cr.reads != 2 {
		t.Error("second access read", cr.reads, "times in total, want 2")
	}
}

func TestLazySection(t *testing.T) {
	cases := []struct {
		name   string
		ranges []api.Range
		shape  []int64
		data   []float64
	}{
		{"full", nil, []int64{2, 3, 4}, iota24()},
		{"leading", []api.Range{api.Span(1, 2)},
			[]int64{1, 3, 4},
			[]float64{12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}},
		{"scalar-z", []api.Range{api.At(1)},
			[]int64{3, 4},
			[]float64{12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}},
		{"scalar-all-axes", []api.Range{api.At(1), api.At(2), api.At(3)},
			[]int64{},
			[]float64{23}},
		{"inner-span", []api.Range{api.All(), api.Span(1, 3), api.Span(0, 2)},
			[]int64{2, 2, 2},
			[]float64{4, 5, 8, 9, 16, 17, 20, 21}},
		{"strided-x", []api.Range{api.At(0), api.At(0), api.Strided(0, 4, 2)},
			[]int64{2},
			[]float64{0, 2}},
		{"strided-uneven", []api.Range{api.At(0), api.At(1), api.Strided(0, 3, 2)},
			[]int64{2},
			[]float64{4, 6}},
		{"empty", []api.Range{api.Span(1, 1)},
			[]int64{0, 3, 4},
			[]float64{}},
	}
	for _, c := range cases {
		cr := &countingReader{data: iota24()}
		vg := NewLazy(cr.readAll, testShape, testDims, nil, api.NoLock)
		a, err := vg.Section(c.ranges)
		if err != nil {
			t.Fatal(c.name, err)
		}
		if !reflect.DeepEqual(a.Shape, c.shape) {
			t.Errorf("%s: shape %v, want %v", c.name, a.Shape, c.shape)
		}
		if !reflect.DeepEqual(a.Data, c.data) {
			t.Errorf("%s: data %v, want %v", c.name, a.Data, c.data)
		}
	}
}

func TestLazyGetSlice(t *testing.T) {
	cr := &countingReader{data: iota24()}
	vg := NewLazy(cr.readAll, testShape, testDims, nil, api.NoLock)
	a, err := vg.GetSlice(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 3, 4}
	if !reflect.DeepEqual(a.Shape, want) {
		t.Error("wrong shape:", a.Shape)
	}
	for i := 0; i < 12; i++ {
		if a.Data[i] != float64(i) {
			t.Fatalf("data[%d] = %v", i, a.Data[i])
		}
	}
}

func TestLazyInvalidSection(t *testing.T) {
	bad := [][]api.Range{
		{api.Span(0, 5)},                              // stop past end
		{api.Span(2, 1)},                              // start past stop
		{api.Strided(0, 2, 0)},                        // zero step
		{api.All(), api.All(), api.All(), api.All()},  // too many ranges
		{api.Range{Start: -1, Stop: 2, Step: 1}},      // negative start
	}
	for i, ranges := range bad {
		cr := &countingReader{data: iota24()}
		vg := NewLazy(cr.readAll, testShape, testDims, nil, api.NoLock)
		_, err := vg.Section(ranges)
		if !errors.Is(err, ErrInvalidSlice) {
			t.Errorf("case %d: got %v, want ErrInvalidSlice", i, err)
		}
		if cr.reads != 0 {
			t.Errorf("case %d: invalid section performed a read", i)
		}
	}
}

// balancedLocker records lock/unlock pairing across accesses.
type balancedLocker struct {
	locks, unlocks int
}

func (bl *balancedLocker) Lock()   { bl.locks++ }
func (bl *balancedLocker) Unlock() { bl.unlocks++ }

func TestLazyLockReleasedOnFailure(t *testing.T) {
	readErr := errors.New("read failed")
	cr := &countingReader{err: readErr}
	bl := &balancedLocker{}
	vg := NewLazy(cr.readAll, testShape, testDims, nil, bl)
	if _, err := vg.Values(); !errors.Is(err, readErr) {
		t.Fatal("error not propagated")
	}
	if bl.locks != 1 || bl.unlocks != 1 {
		t.Error("lock not balanced:", bl.locks, bl.unlocks)
	}
	// The lock must be reacquirable after a failure.
	if _, err := vg.Values(); !errors.Is(err, readErr) {
		t.Fatal("error not propagated on retry")
	}
	if bl.locks != 2 || bl.unlocks != 2 {
		t.Error("lock not balanced after retry:", bl.locks, bl.unlocks)
	}
}

func TestLazyDefaultLock(t *testing.T) {
	// A nil lock falls back to the no-op sentinel here; the dataset
	// layer supplies the shared process lock.
	cr := &countingReader{data: iota24()}
	vg := NewLazy(cr.readAll, testShape, testDims, nil, nil)
	if _, err := vg.Values(); err != nil {
		t.Fatal(err)
	}
}
