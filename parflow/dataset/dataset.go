// Package dataset assembles named, dimensioned, coordinate-labeled
// lazy arrays from single PFB grids or pfmetadata manifests.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hydroframe/go-parflow/internal"
	"github.com/hydroframe/go-parflow/parflow/api"
	"github.com/hydroframe/go-parflow/parflow/meta"
	"github.com/hydroframe/go-parflow/parflow/pfb"
	"github.com/hydroframe/go-parflow/parflow/util"
)

var (
	ErrSchema   = errors.New("schema mismatch")
	ErrNotFound = errors.New("variable not found")
)

var (
	logger = internal.NewLogger()
)

// configurationVar is the manifest inputs entry that is skipped when
// reading inputs.
const configurationVar = "configuration"

type dsVar struct {
	getter api.VarGetter
	coords map[string][]float64
}

// Dataset is a named collection of variables, each a dimensioned lazy
// array with attached coordinates. It implements api.Dataset.
type Dataset struct {
	attrs  *util.OrderedMap
	vars   *util.OrderedMap
	dims   []string
	dimLen map[string]uint64
	coords map[string][]float64
}

func newDataset() *Dataset {
	attrs, err := util.NewOrderedMap(nil, nil)
	if err != nil {
		panic(err) // cannot happen with nil inputs
	}
	vars, err := util.NewOrderedMap(nil, nil)
	if err != nil {
		panic(err)
	}
	return &Dataset{
		attrs:  attrs,
		vars:   vars,
		dimLen: map[string]uint64{},
		coords: map[string][]float64{},
	}
}

// addVariable registers a lazy variable and merges its dimensions and
// coordinates into the dataset-level registries. Coordinate sets are
// independent per variable; the dataset-level registry keeps the
// first-registered vector for each name.
func (d *Dataset) addVariable(name string, vg api.VarGetter, coords map[string][]float64) {
	d.vars.Add(name, &dsVar{getter: vg, coords: coords})
	shape := vg.Shape()
	for i, dim := range vg.Dimensions() {
		if _, has := d.dimLen[dim]; !has {
			d.dims = append(d.dims, dim)
			d.dimLen[dim] = uint64(shape[i])
		}
	}
	for k, v := range coords {
		if _, has := d.coords[k]; !has {
			d.coords[k] = v
		}
	}
}

// Close releases the dataset. Reads open and close their backing files
// per call, so there is nothing to free.
func (d *Dataset) Close() {
}

// Attributes returns the global attributes for this dataset.
func (d *Dataset) Attributes() api.AttributeMap {
	return d.attrs
}

// ListVariables lists the variables in this dataset.
func (d *Dataset) ListVariables() []string {
	return d.vars.Keys()
}

func (d *Dataset) getVar(name string) (*dsVar, error) {
	v, has := d.vars.Get(name)
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v.(*dsVar), nil
}

// GetVarGetter returns the lazy handle for the named variable.
func (d *Dataset) GetVarGetter(name string) (api.VarGetter, error) {
	v, err := d.getVar(name)
	if err != nil {
		return nil, err
	}
	return v.getter, nil
}

// GetVariable materializes the named variable.
func (d *Dataset) GetVariable(name string) (*api.Variable, error) {
	v, err := d.getVar(name)
	if err != nil {
		return nil, err
	}
	vals, err := v.getter.Values()
	if err != nil {
		return nil, err
	}
	return &api.Variable{
		Values:     vals,
		Dimensions: v.getter.Dimensions(),
		Attributes: v.getter.Attributes(),
		Coords:     v.coords}, nil
}

// ListDimensions lists the names of the dimensions in this dataset.
func (d *Dataset) ListDimensions() []string {
	return d.dims
}

// GetDimension returns the size of the given dimension and sets the
// bool to true if found.
func (d *Dataset) GetDimension(name string) (uint64, bool) {
	n, has := d.dimLen[name]
	return n, has
}

// GetCoordinate returns the coordinate vector registered for the given
// dimension and sets the bool to true if found.
func (d *Dataset) GetCoordinate(name string) ([]float64, bool) {
	c, has := d.coords[name]
	return c, has
}

// SavePFB is the declared write-back surface. Not implemented.
func (d *Dataset) SavePFB(dir string) error {
	return fmt.Errorf("%w: saving dataset to %s", pfb.ErrNotImplemented, dir)
}

// SelectByLabel materializes the named variable with one axis fixed at
// the position whose coordinate equals value exactly.
func (d *Dataset) SelectByLabel(varName, dim string, value float64) (*api.Array, error) {
	v, err := d.getVar(varName)
	if err != nil {
		return nil, err
	}
	axisIdx := -1
	for i, name := range v.getter.Dimensions() {
		if name == dim {
			axisIdx = i
			break
		}
	}
	if axisIdx < 0 {
		return nil, fmt.Errorf("%w: variable %q has no dimension %q",
			ErrNotFound, varName, dim)
	}
	coord := v.coords[dim]
	pos := int64(-1)
	for i, c := range coord {
		if c == value {
			pos = int64(i)
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("%w: no %q coordinate equal to %v on variable %q",
			ErrNotFound, dim, value, varName)
	}
	ranges := make([]api.Range, axisIdx+1)
	for i := range ranges {
		ranges[i] = api.All()
	}
	ranges[axisIdx] = api.At(pos)
	return v.getter.Section(ranges)
}

// FromPFB builds a one-variable dataset from a single grid file.
func FromPFB(fname, name string, lock sync.Locker) (*Dataset, error) {
	attrs, err := util.NewOrderedMap(nil, nil)
	if err != nil {
		return nil, err
	}
	vg, coords, err := openGrid(fname, attrs, lock)
	if err != nil {
		return nil, err
	}
	d := newDataset()
	d.addVariable(name, vg, coords)
	return d, nil
}

// FromManifest builds a dataset from a parsed pfmetadata manifest:
// one variable per requested manifest entry, outputs always when
// readOutputs, inputs only when readInputs (skipping the
// "configuration" entry). A single entry's failure aborts the whole
// build; there is no partial result.
func FromManifest(m *meta.Manifest, readInputs, readOutputs bool, lock sync.Locker) (*Dataset, error) {
	version, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("%w: manifest provenance block absent", ErrSchema)
	}
	d := newDataset()
	d.attrs.Add("parflow_version", version)
	if readOutputs {
		if err := d.resolveGroup(m.Outputs, nil, lock); err != nil {
			return nil, err
		}
	}
	if readInputs {
		if err := d.resolveGroup(m.Inputs, func(name string) bool {
			return name == configurationVar
		}, lock); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dataset) resolveGroup(entries map[string]*meta.Entry,
	skip func(string) bool, lock sync.Locker) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if skip != nil && skip(name) {
			logger.Infof("skipping manifest entry %q", name)
			continue
		}
		vg, coords, err := resolveEntry(name, entries[name], lock)
		if err != nil {
			return err
		}
		d.addVariable(name, vg, coords)
	}
	return nil
}

// resolveEntry expands one time-varying manifest entry into its
// ordered file series and concatenates the per-timestep lazy grids
// along a new leading time axis. Every timestep must agree with the
// first on spatial shape, dimension order and coordinate values.
func resolveEntry(name string, e *meta.Entry, lock sync.Locker) (api.VarGetter, map[string][]float64, error) {
	if err := e.Validate(name); err != nil {
		return nil, nil, err
	}
	ref := &e.Data[0]
	files, err := ref.Filenames()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q: %w", name, err)
	}
	times, err := ref.TimeIndices()
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q: %w", name, err)
	}
	attrs, err := util.NewOrderedMap(nil, nil)
	if err != nil {
		return nil, nil, err
	}
	attrs.Add("units", e.UnitsOrDefault())

	steps := make([]api.VarGetter, len(files))
	var spatial []int64
	var spatialDims []string
	var coords map[string][]float64
	for i, fname := range files {
		vg, fileCoords, err := openGrid(fname, attrs, lock)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			spatial = vg.Shape()
			spatialDims = vg.Dimensions()
			coords = fileCoords
		} else if err := checkStepAgrees(files[0], fname, spatial, spatialDims,
			coords, vg, fileCoords); err != nil {
			return nil, nil, err
		}
		steps[i] = vg
	}

	timeCoord := make([]float64, len(times))
	for i, t := range times {
		timeCoord[i] = float64(t)
	}
	allCoords := map[string][]float64{"time": timeCoord}
	for k, v := range coords {
		allCoords[k] = v
	}
	return newTimeConcat(steps, spatial, spatialDims, attrs), allCoords, nil
}

// checkStepAgrees rejects a timestep whose grid disagrees with the
// series' first file. Silent truncation or broadcasting is never
// acceptable here.
func checkStepAgrees(first, fname string, spatial []int64, dims []string,
	coords map[string][]float64, vg api.VarGetter, fileCoords map[string][]float64) error {
	if !int64sEqual(vg.Shape(), spatial) {
		return fmt.Errorf("%w: file %s has shape %v, %s has %v",
			ErrSchema, fname, vg.Shape(), first, spatial)
	}
	if !stringsEqual(vg.Dimensions(), dims) {
		return fmt.Errorf("%w: file %s has dims %v, %s has %v",
			ErrSchema, fname, vg.Dimensions(), first, dims)
	}
	for k, want := range coords {
		got := fileCoords[k]
		if !float64sEqual(got, want) {
			return fmt.Errorf("%w: file %s disagrees with %s on the %q coordinate",
				ErrSchema, fname, first, k)
		}
	}
	return nil
}

func int64sEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func float64sEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
