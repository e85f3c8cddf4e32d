// Diagnostic tool for inspecting ParFlow output files.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/hydroframe/go-parflow/parflow"
	"github.com/hydroframe/go-parflow/parflow/api"
	"github.com/hydroframe/go-parflow/parflow/meta"
	"github.com/hydroframe/go-parflow/parflow/pfb"
)

var (
	readInputs = pflag.Bool("inputs", false, "also resolve the manifest's inputs entries")
	noOutputs  = pflag.Bool("no-outputs", false, "skip the manifest's outputs entries")
	varName    = pflag.String("var", "", "materialize one variable and print a summary")
	runYAML    = pflag.String("run-yaml", "", "also dump the top-level keys of a run configuration YAML")
	logLevel   = pflag.Int("log-level", 1, "decoder log level, 0 (quiet) to 3 (debug)")
)

func main() {
	pflag.Parse()
	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pfdump [flags] <file.pfb | file.pfmetadata>")
		pflag.PrintDefaults()
		os.Exit(1)
	}
	fname := pflag.Arg(0)
	pfb.SetLogLevel(*logLevel)

	kind, _, err := parflow.Classify(fname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("=== %s (%s) ===\n", fname, kind)

	opts := parflow.DefaultOptions()
	opts.ReadInputs = *readInputs
	opts.ReadOutputs = !*noOutputs
	ds, err := parflow.Open(fname, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer ds.Close()

	attrs := ds.Attributes()
	for _, key := range attrs.Keys() {
		val, _ := attrs.Get(key)
		fmt.Printf("attr %s = %v\n", key, val)
	}
	for _, dim := range ds.ListDimensions() {
		n, _ := ds.GetDimension(dim)
		if coord, has := ds.GetCoordinate(dim); has && n > 0 {
			fmt.Printf("dim %s: %d [%g .. %g]\n", dim, n, coord[0], coord[n-1])
			continue
		}
		fmt.Printf("dim %s: %d\n", dim, n)
	}
	for _, name := range ds.ListVariables() {
		vg, err := ds.GetVarGetter(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("var %s%v %s\n", name, vg.Shape(), vg.Dimensions())
		va := vg.Attributes()
		for _, key := range va.Keys() {
			val, _ := va.Get(key)
			fmt.Printf("  attr %s = %v\n", key, val)
		}
	}

	if *varName != "" {
		if err := summarize(ds, *varName); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	if *runYAML != "" {
		doc, err := meta.LoadYAML(*runYAML)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("run configuration %s:\n", *runYAML)
		for _, k := range keys {
			fmt.Printf("  %s\n", k)
		}
	}
}

func summarize(ds api.Dataset, name string) error {
	v, err := ds.GetVariable(name)
	if err != nil {
		return err
	}
	a := v.Values
	if len(a.Data) == 0 {
		fmt.Printf("%s: empty\n", name)
		return nil
	}
	min, max, sum := a.Data[0], a.Data[0], 0.0
	for _, s := range a.Data {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		sum += s
	}
	fmt.Printf("%s%v: min %g, max %g, mean %g\n",
		name, a.Shape, min, max, sum/float64(len(a.Data)))
	return nil
}
