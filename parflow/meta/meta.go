// Package meta parses ParFlow pfmetadata manifests: JSON documents
// naming the variables of a simulation run and how to locate the PFB
// files backing them, including time-series expansion rules.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrNotMetadata       = errors.New(`metadata missing required "parflow" key`)
	ErrBadEntry          = errors.New("malformed manifest entry")
	ErrUnsupportedFormat = errors.New("unsupported storage type")
	ErrNotImplemented    = errors.New("not implemented")
)

// UnitsNotSpecified is the units attribute for entries that declare none.
const UnitsNotSpecified = "not_specified"

// Manifest is a parsed pfmetadata document.
type Manifest struct {
	Parflow *Provenance       `json:"parflow"`
	Outputs map[string]*Entry `json:"outputs"`
	Inputs  map[string]*Entry `json:"inputs"`
}

// Provenance identifies the tool that produced the run.
type Provenance struct {
	Build Build `json:"build"`
}

type Build struct {
	Version string `json:"version"`
}

// Entry describes one named variable and its backing files.
type Entry struct {
	Type        string    `json:"type"`
	TimeVarying bool      `json:"time-varying"`
	Units       string    `json:"units"`
	Data        []DataRef `json:"data"`
}

// DataRef locates a file series: a half-open integer time range
// [start, stop, step) and a file-name template of the form
// "<base>.<pad>.<suffix>" where pad is a printf integer verb.
type DataRef struct {
	TimeRange  []int64 `json:"time-range"`
	FileSeries string  `json:"file-series"`
}

// Load reads and validates a pfmetadata document from a file.
func Load(fname string) (*Manifest, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return m, nil
}

// Parse decodes and validates a pfmetadata document.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FromMap validates an in-memory mapping as a pfmetadata document.
func FromMap(doc map[string]any) (*Manifest, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Validate checks the required top-level structure. Absence of the
// identifying "parflow" key is fatal, never a silent default.
func (m *Manifest) Validate() error {
	if m.Parflow == nil {
		return ErrNotMetadata
	}
	return nil
}

// Version returns the producing tool's version from the provenance
// block.
func (m *Manifest) Version() (string, error) {
	if m.Parflow == nil {
		return "", ErrNotMetadata
	}
	return m.Parflow.Build.Version, nil
}

// Validate checks that the named entry is something this reader can
// resolve: PFB storage, time-varying, with at least one data
// reference.
func (e *Entry) Validate(name string) error {
	if e.Type != "pfb" {
		return fmt.Errorf("%w %q for variable %q", ErrUnsupportedFormat, e.Type, name)
	}
	if !e.TimeVarying {
		return fmt.Errorf("%w: non-time-varying variable %q", ErrNotImplemented, name)
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: variable %q has no data references", ErrBadEntry, name)
	}
	return nil
}

// UnitsOrDefault returns the declared unit string, or
// UnitsNotSpecified when absent.
func (e *Entry) UnitsOrDefault() string {
	if e.Units == "" {
		return UnitsNotSpecified
	}
	return e.Units
}

// TimeIndices expands the time range into an explicit ascending
// sequence. One value means [0, stop), two mean [start, stop), three
// add the step, which must be positive.
func (d *DataRef) TimeIndices() ([]int64, error) {
	var start, stop, step int64
	switch len(d.TimeRange) {
	case 1:
		start, stop, step = 0, d.TimeRange[0], 1
	case 2:
		start, stop, step = d.TimeRange[0], d.TimeRange[1], 1
	case 3:
		start, stop, step = d.TimeRange[0], d.TimeRange[1], d.TimeRange[2]
	default:
		return nil, fmt.Errorf("%w: time-range %v", ErrBadEntry, d.TimeRange)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: time-range step %d", ErrBadEntry, step)
	}
	var indices []int64
	for t := start; t < stop; t += step {
		indices = append(indices, t)
	}
	return indices, nil
}

// splitSeries splits a file-series template on its last two dots into
// the base path, the zero-pad format token and the suffix.
func splitSeries(template string) (base, pad, suffix string, err error) {
	parts := strings.Split(template, ".")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("%w: file-series %q", ErrBadEntry, template)
	}
	base = strings.Join(parts[:len(parts)-2], ".")
	pad = parts[len(parts)-2]
	suffix = parts[len(parts)-1]
	if !strings.HasPrefix(pad, "%") || !strings.HasSuffix(pad, "d") {
		return "", "", "", fmt.Errorf("%w: pad token %q in file-series %q",
			ErrBadEntry, pad, template)
	}
	return base, pad, suffix, nil
}

// Filenames renders one file name per time index, in ascending time
// order.
func (d *DataRef) Filenames() ([]string, error) {
	indices, err := d.TimeIndices()
	if err != nil {
		return nil, err
	}
	base, pad, suffix, err := splitSeries(d.FileSeries)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(indices))
	for i, t := range indices {
		names[i] = fmt.Sprintf("%s.%s.%s", base, fmt.Sprintf(pad, t), suffix)
	}
	return names, nil
}
