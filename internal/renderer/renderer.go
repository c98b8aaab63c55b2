// Package renderer embeds accepted Mermaid source into a self-contained HTML
// page for client-side rendering.
package renderer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"

	"github.com/valpere/flowsketch/internal/diagram"
)

//go:embed template.html
var pageTemplate string

var page = template.Must(template.New("flowchart").Parse(pageTemplate))

type pageData struct {
	// Raw goes into the mermaid div unescaped; the rendering script reads the
	// element's literal text and entity-escaped arrows would break it.
	Raw template.HTML
	// Source is the same text escaped for the visible <pre> block.
	Source string
}

// Render maps Mermaid source to a complete HTML document string. Pure and
// deterministic: same source, same document.
func Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{Raw: template.HTML(source), Source: source}); err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders source and persists the page at path. A failed write is
// an IOError; the diagram text itself is unaffected.
func WriteFile(path, source string) error {
	html, err := Render(source)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return &diagram.IOError{Path: path, Err: err}
	}
	return nil
}
