// Package validator checks generated Mermaid source for syntactic validity
// and a minimal structural quality bar.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/valpere/flowsketch/internal/diagram"
)

// Default quality thresholds. A flowchart below them carries no information.
const (
	DefaultMinNodes = 2
	DefaultMinEdges = 1
)

// Verdict is the structured outcome of a validation pass. Feedback is a short
// human-readable defect description suitable for a revision prompt.
type Verdict struct {
	Valid    bool
	Defect   diagram.Defect
	Feedback string
	Nodes    int
	Edges    int
}

// Validator applies the syntax and quality checks. Malformed input is exactly
// what it exists to detect, so Check never panics or returns an error.
type Validator struct {
	minNodes int
	minEdges int
}

// New creates a Validator. Non-positive thresholds fall back to the defaults.
func New(minNodes, minEdges int) *Validator {
	if minNodes <= 0 {
		minNodes = DefaultMinNodes
	}
	if minEdges <= 0 {
		minEdges = DefaultMinEdges
	}
	return &Validator{minNodes: minNodes, minEdges: minEdges}
}

// headerRe matches the mandatory first statement of a flowchart.
var headerRe = regexp.MustCompile(`(?i)^(?:flowchart|graph)\s+(?:TD|TB|LR|RL|BT)\b`)

// arrowRe matches one edge connector, including dotted, thick, labeled-inline
// and open links, with an optional |label| suffix.
var arrowRe = regexp.MustCompile(`(?:-\.+->|==+>|--[^>]*?-->|--+>|--+)\s*(?:\|[^|]*\|)?`)

// identRe extracts the node identifier leading a statement segment; the rest
// of the segment is its shape and label.
var identRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)`)

// skipKeywords open statements that declare no nodes or edges of their own.
var skipKeywords = []string{
	"subgraph", "end", "direction", "style", "classDef", "class",
	"click", "linkStyle", "accTitle", "accDescr",
}

// Check classifies source as valid or as exactly one defect kind: EMPTY,
// SYNTAX_ERROR, or TOO_TRIVIAL.
func (v *Validator) Check(source string) Verdict {
	text := strings.TrimSpace(source)
	if text == "" {
		return invalid(diagram.DefectEmpty, "empty output")
	}

	nodes := make(map[string]struct{})
	edges := 0
	sawHeader := false

	for i, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}

		if !sawHeader {
			if !headerRe.MatchString(line) {
				return invalid(diagram.DefectSyntax, fmt.Sprintf(
					"line %d: first statement %q must be a 'flowchart' or 'graph' header with a direction (TD, LR, BT, RL)", i+1, line))
			}
			sawHeader = true
			continue
		}

		if isSkippable(line) {
			continue
		}

		if msg := checkBrackets(line); msg != "" {
			return invalid(diagram.DefectSyntax, fmt.Sprintf("line %d: %s", i+1, msg))
		}

		segments := arrowRe.Split(line, -1)
		if len(segments) > 1 {
			edges += len(segments) - 1
		}

		for _, segment := range segments {
			for _, part := range strings.Split(segment, "&") {
				part = strings.TrimSpace(part)
				if part == "" {
					if len(segments) > 1 {
						return invalid(diagram.DefectSyntax, fmt.Sprintf("line %d: edge with a missing endpoint", i+1))
					}
					continue
				}
				m := identRe.FindStringSubmatch(part)
				if m == nil {
					return invalid(diagram.DefectSyntax, fmt.Sprintf("line %d: statement %q does not start with a node identifier", i+1, part))
				}
				nodes[m[1]] = struct{}{}
			}
		}
	}

	if len(nodes) < v.minNodes || edges < v.minEdges {
		verdict := invalid(diagram.DefectTrivial, fmt.Sprintf(
			"diagram too trivial: %d node(s) and %d edge(s), need at least %d nodes and %d edges",
			len(nodes), edges, v.minNodes, v.minEdges))
		verdict.Nodes = len(nodes)
		verdict.Edges = edges
		return verdict
	}

	return Verdict{Valid: true, Nodes: len(nodes), Edges: edges}
}

func invalid(defect diagram.Defect, feedback string) Verdict {
	return Verdict{Defect: defect, Feedback: feedback}
}

func isSkippable(line string) bool {
	token := line
	if idx := strings.IndexAny(line, " \t"); idx > 0 {
		token = line[:idx]
	}
	for _, kw := range skipKeywords {
		if token == kw {
			return true
		}
	}
	return false
}

// checkBrackets verifies that every node shape opened on the line is closed.
// Shapes nest textually ("A((ok))") but never interleave.
func checkBrackets(line string) string {
	pairs := map[rune]rune{']': '[', ')': '(', '}': '{'}
	depth := map[rune]int{'[': 0, '(': 0, '{': 0}

	for _, r := range line {
		switch r {
		case '[', '(', '{':
			depth[r]++
		case ']', ')', '}':
			open := pairs[r]
			depth[open]--
			if depth[open] < 0 {
				return fmt.Sprintf("unmatched %q", string(r))
			}
		}
	}
	for open, d := range depth {
		if d != 0 {
			return fmt.Sprintf("unclosed %q", string(open))
		}
	}
	return ""
}
