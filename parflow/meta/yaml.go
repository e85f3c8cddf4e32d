package meta

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hydroframe/go-parflow/parflow/api"
)

// LoadYAML reads a ParFlow run-configuration YAML file into a nested
// map. The run configuration carries solver and domain keys that are
// not part of the pfmetadata manifest.
func LoadYAML(fname string) (map[string]any, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%s: %v", fname, err)
	}
	return doc, nil
}

// ProcessYAML would fold run-configuration keys into dataset
// coordinates and attributes. Not implemented.
func ProcessYAML(ds api.Dataset, doc map[string]any) error {
	return fmt.Errorf("%w: run-configuration post-processing", ErrNotImplemented)
}
