package parflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hydroframe/go-parflow/parflow/meta"
)

// writeGrid writes a minimal single-subgrid PFB fixture: a 4x3x2 grid
// of zeros with unit spacing.
func writeGrid(t *testing.T, fname string) {
	t.Helper()
	var buf bytes.Buffer
	put := func(v any) {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	put([]float64{0, 0, 0}) // origin
	put([]int32{4, 3, 2})   // counts
	put([]float64{1, 1, 1}) // spacing
	put(int32(1))
	put([]int32{0, 0, 0, 4, 3, 2, 1, 1, 1})
	put(make([]float64, 24))
	if err := os.WriteFile(fname, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeManifest(t *testing.T, dir string, steps int) string {
	t.Helper()
	for i := 0; i < steps; i++ {
		writeGrid(t, filepath.Join(dir, fmt.Sprintf("field.%03d.pfb", i)))
	}
	doc := fmt.Sprintf(`{
  "parflow": {"build": {"version": "3.10.0"}},
  "outputs": {
    "pressure": {
      "type": "pfb",
      "time-varying": true,
      "units": "m",
      "data": [{"time-range": [0, %d, 1], "file-series": "%s"}]
    }
  }
}`, steps, filepath.Join(dir, "field.%03d.pfb"))
	fname := filepath.Join(dir, "run.pfmetadata")
	if err := os.WriteFile(fname, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	grid := filepath.Join(dir, "grid.pfb")
	writeGrid(t, grid)
	kind, m, err := Classify(grid)
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindPFB || m != nil {
		t.Error("got", kind, m, "want KindPFB and no manifest")
	}

	manifest := writeManifest(t, dir, 1)
	kind, m, err = Classify(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindMetadata || m == nil {
		t.Fatal("got", kind, m, "want KindMetadata with a manifest")
	}
	if version, _ := m.Version(); version != "3.10.0" {
		t.Error("wrong version:", version)
	}

	garbage := filepath.Join(dir, "garbage.txt")
	if err := os.WriteFile(garbage, []byte("neither grid nor manifest, but long enough to read a header from"), 0644); err != nil {
		t.Fatal(err)
	}
	kind, _, err = Classify(garbage)
	if kind != KindUnknown || !errors.Is(err, ErrUnknown) {
		t.Error("got", kind, err, "want KindUnknown and ErrUnknown")
	}

	// JSON that is not a manifest names the missing key.
	badMeta := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badMeta, []byte(`{"outputs": {}}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err = Classify(badMeta)
	if !errors.Is(err, meta.ErrNotMetadata) {
		t.Error("got", err, "want meta.ErrNotMetadata")
	}

	_, _, err = Classify(filepath.Join(dir, "no-such-file"))
	if !os.IsNotExist(err) {
		t.Error("got", err, "want a not-exist error")
	}
}

func TestKindString(t *testing.T) {
	if KindPFB.String() != "pfb" || KindMetadata.String() != "pfmetadata" ||
		KindUnknown.String() != "unknown" {
		t.Error("wrong kind strings")
	}
}

func TestOpenSingleGrid(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "grid.pfb")
	writeGrid(t, fname)
	ds, err := Open(fname, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	names := ds.ListVariables()
	if !reflect.DeepEqual(names, []string{DefaultVariableName}) {
		t.Fatal("wrong variables:", names)
	}
	vg, err := ds.GetVarGetter(DefaultVariableName)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vg.Shape(), []int64{2, 3, 4}) {
		t.Error("wrong shape:", vg.Shape())
	}
}

func TestOpenSingleGridNamed(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "grid.pfb")
	writeGrid(t, fname)
	opts := DefaultOptions()
	opts.VariableName = "head"
	ds, err := Open(fname, opts)
	if err != nil {
		t.Fatal(err)
	}
	if names := ds.ListVariables(); !reflect.DeepEqual(names, []string{"head"}) {
		t.Error("wrong variables:", names)
	}
}

func TestOpenManifest(t *testing.T) {
	fname := writeManifest(t, t.TempDir(), 5)
	ds, err := Open(fname, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	vg, err := ds.GetVarGetter("pressure")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vg.Shape(), []int64{5, 2, 3, 4}) {
		t.Error("wrong shape:", vg.Shape())
	}
	version, has := ds.Attributes().Get("parflow_version")
	if !has || version != "3.10.0" {
		t.Error("wrong version attr:", version)
	}
}

func TestOpenUnknown(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "garbage.bin")
	if err := os.WriteFile(fname, []byte("garbage bytes that are neither format"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(fname, nil)
	if !errors.Is(err, ErrUnknown) {
		t.Error("got", err, "want ErrUnknown")
	}
}

func TestFromMapManifest(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		writeGrid(t, filepath.Join(dir, fmt.Sprintf("field.%03d.pfb", i)))
	}
	doc := map[string]any{
		"parflow": map[string]any{"build": map[string]any{"version": "3.11.0"}},
		"outputs": map[string]any{
			"pressure": map[string]any{
				"type":         "pfb",
				"time-varying": true,
				"data": []any{map[string]any{
					"time-range":  []any{0, 2, 1},
					"file-series": filepath.Join(dir, "field.%03d.pfb"),
				}},
			},
		},
	}
	ds, err := FromMap(doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	vg, err := ds.GetVarGetter("pressure")
	if err != nil {
		t.Fatal(err)
	}
	if vg.Len() != 2 {
		t.Error("wrong len:", vg.Len())
	}

	delete(doc, "parflow")
	if _, err := FromMap(doc, nil); !errors.Is(err, meta.ErrNotMetadata) {
		t.Error("got", err, "want meta.ErrNotMetadata")
	}
}
