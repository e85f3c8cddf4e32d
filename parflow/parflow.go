// Package parflow opens ParFlow simulation output as a labeled,
// coordinate-aware dataset of lazy arrays. The input is either one
// binary PFB grid file or a pfmetadata JSON manifest referencing time
// series of such grids.
package parflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hydroframe/go-parflow/parflow/api"
	"github.com/hydroframe/go-parflow/parflow/dataset"
	"github.com/hydroframe/go-parflow/parflow/meta"
	"github.com/hydroframe/go-parflow/parflow/pfb"
)

// Kind tags the result of classifying an input path.
type Kind int

const (
	KindUnknown Kind = iota
	KindPFB
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindPFB:
		return "pfb"
	case KindMetadata:
		return "pfmetadata"
	}
	return "unknown"
}

var ErrUnknown = errors.New("not a PFB or pfmetadata file")

// DefaultVariableName names the variable of a single-grid dataset.
const DefaultVariableName = "parflow_variable"

// Options control dataset assembly. The zero value is not the
// default: use DefaultOptions and adjust.
type Options struct {
	// VariableName names the single variable of a one-grid dataset.
	VariableName string
	// ReadInputs resolves the manifest's inputs entries too. The
	// "configuration" entry is always skipped.
	ReadInputs bool
	// ReadOutputs resolves the manifest's outputs entries.
	ReadOutputs bool
	// Lock serializes grid realization. Nil means the shared
	// process-wide lock; api.NoLock disables locking.
	Lock sync.Locker
}

func DefaultOptions() *Options {
	return &Options{
		VariableName: DefaultVariableName,
		ReadOutputs:  true,
	}
}

// Classify decides whether fname is a single PFB grid or a pfmetadata
// manifest. For a manifest the parsed document is returned alongside
// the kind, so callers never re-read it. A path that validates as
// neither fails with ErrUnknown; a path that cannot be read at all
// fails with the underlying I/O error.
func Classify(fname string) (Kind, *meta.Manifest, error) {
	p, err := pfb.Open(fname)
	if err == nil {
		p.Close()
		return KindPFB, nil, nil
	}
	if !errors.Is(err, pfb.ErrNotPFB) && !errors.Is(err, pfb.ErrCorruptedFile) {
		return KindUnknown, nil, err
	}
	m, merr := meta.Load(fname)
	if merr == nil {
		return KindMetadata, m, nil
	}
	if errors.Is(merr, meta.ErrNotMetadata) {
		return KindUnknown, nil, merr
	}
	return KindUnknown, nil, fmt.Errorf("%w: %s", ErrUnknown, fname)
}

// Open classifies fname and builds the dataset: one variable for a
// single grid, one per requested manifest entry for a manifest.
func Open(fname string, opts *Options) (api.Dataset, error) {
	opts = withDefaults(opts)
	kind, m, err := Classify(fname)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindPFB:
		return dataset.FromPFB(fname, opts.VariableName, opts.Lock)
	case KindMetadata:
		return dataset.FromManifest(m, opts.ReadInputs, opts.ReadOutputs, opts.Lock)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknown, fname)
}

// New builds a dataset from an already-parsed manifest, for callers
// holding the document in memory instead of on disk.
func New(m *meta.Manifest, opts *Options) (api.Dataset, error) {
	opts = withDefaults(opts)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return dataset.FromManifest(m, opts.ReadInputs, opts.ReadOutputs, opts.Lock)
}

// FromMap builds a dataset from an in-memory mapping with the
// manifest's structure.
func FromMap(doc map[string]any, opts *Options) (api.Dataset, error) {
	m, err := meta.FromMap(doc)
	if err != nil {
		return nil, err
	}
	return New(m, opts)
}

func withDefaults(opts *Options) *Options {
	if opts == nil {
		return DefaultOptions()
	}
	o := *opts
	if o.VariableName == "" {
		o.VariableName = DefaultVariableName
	}
	return &o
}
