package renderer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/flowsketch/internal/diagram"
)

func TestRender_EmbedsSource(t *testing.T) {
	html, err := Render("flowchart TD\nA-->B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(html, "A-->B") {
		t.Error("expected diagram source embedded verbatim for the rendering script")
	}
	if !strings.Contains(html, `class="mermaid"`) {
		t.Error("expected a mermaid container div")
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("expected a complete HTML document")
	}
	if !strings.Contains(html, "mermaid.esm.min.mjs") {
		t.Error("expected the rendering script reference")
	}
}

func TestRender_EscapesSourceBlock(t *testing.T) {
	html, err := Render("flowchart TD\nA[<b>bold</b>] --> B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "A[&lt;b&gt;bold&lt;/b&gt;] --&gt; B") {
		t.Error("expected the <pre> source block to be entity-escaped")
	}
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render("flowchart TD\nA-->B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Render("flowchart TD\nA-->B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("expected identical output for identical input")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowchart_output.html")

	if err := WriteFile(path, "flowchart TD\nA-->B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "A-->B") {
		t.Error("expected output file to contain the diagram source")
	}
}

func TestWriteFile_UnwritableDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "nested", "out.html")

	err := WriteFile(path, "flowchart TD\nA-->B")
	if err == nil {
		t.Fatal("expected error for unwritable destination")
	}
	var ioErr *diagram.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("expected IOError, got %T", err)
	}
	if ioErr.Path != path {
		t.Errorf("expected error to carry the path, got %q", ioErr.Path)
	}
}
