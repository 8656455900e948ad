package server

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/render"
)

// fakeCompiler mimics tectonic: it writes a .pdf next to the input.
func fakeCompiler(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}

	script := `#!/bin/sh
in="$1"
out="$3"
base=$(basename "$in" .tex)
printf '%%PDF-1.5 fake' > "$out/$base.pdf"
`
	path := filepath.Join(t.TempDir(), "tectonic")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderTool_ReturnsAbsolutePath(t *testing.T) {
	outDir := t.TempDir()
	renderer, err := render.NewRenderer(render.Config{
		OutputDir:    outDir,
		TectonicPath: fakeCompiler(t),
		Logger:       logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	tool := renderTool(renderer, nil)
	got, err := tool.Invoke(context.Background(), map[string]any{
		"topic":         "graph networks",
		"latex_content": `\documentclass{article}`,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if filepath.Dir(got) != outDir {
		t.Errorf("result = %q, want path under %q", got, outDir)
	}
	if filepath.Ext(got) != ".pdf" {
		t.Errorf("result = %q, want a .pdf path", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("result does not point at the generated file: %v", err)
	}
}
