package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	base := t.TempDir()
	roots := volume.Roots{
		Uploads:  filepath.Join(base, "uploads"),
		Output:   filepath.Join(base, "output"),
		Examples: filepath.Join(base, "examples"),
	}
	for _, dir := range []string{roots.Uploads, roots.Output, roots.Examples} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return Deps{Roots: roots}
}

func writeUpload(t *testing.T, d Deps, name string) {
	t.Helper()
	path := filepath.Join(d.Roots.Uploads, name)
	if err := os.WriteFile(path, []byte("ISO-10303-21;"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConvertHandlerWritesOutput(t *testing.T) {
	d := testDeps(t)
	writeUpload(t, d, "model.ifc")

	reg := worker.NewRegistry()
	RegisterConvert(reg, d)

	h, ok := reg.Resolve("tasks.run_ifcconvert")
	if !ok {
		t.Fatal("handler not registered")
	}

	payload, _ := json.Marshal(ConvertRequest{InputFilename: "model.ifc", OutputFilename: "model.glb"})
	result, err := h(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}

	res, ok := result.(Result)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("expected output file at %s: %v", res.OutputPath, err)
	}
}

func TestConvertHandlerMissingInput(t *testing.T) {
	d := testDeps(t)
	reg := worker.NewRegistry()
	RegisterConvert(reg, d)

	h, _ := reg.Resolve("tasks.run_ifcconvert")
	payload, _ := json.Marshal(ConvertRequest{InputFilename: "missing.ifc", OutputFilename: "out.glb"})
	if _, err := h(context.Background(), payload); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestPatchListHandler(t *testing.T) {
	d := testDeps(t)
	recipes := NewRecipeRegistry([]string{"ExtractElements", "Georeference"}, "", discardLogger())

	reg := worker.NewRegistry()
	RegisterPatch(reg, d, recipes)

	h, ok := reg.Resolve("tasks.list_ifcpatch_recipes")
	if !ok {
		t.Fatal("patch-list handler not registered")
	}

	payload, _ := json.Marshal(PatchListRequest{IncludeBuiltin: true, IncludeCustom: true})
	result, err := h(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}

	res, ok := result.(PatchListResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if res.BuiltinCount != 2 || res.TotalCount != 2 {
		t.Fatalf("unexpected counts: %+v", res)
	}
}
