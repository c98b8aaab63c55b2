package prompt

import (
	"strings"
	"testing"
)

func TestInitial_ContainsInput(t *testing.T) {
	p := Initial("Describe the onboarding process")

	if !strings.Contains(p, "Describe the onboarding process") {
		t.Error("expected prompt to contain the user input")
	}
	if !strings.Contains(p, "flowchart TD") {
		t.Error("expected prompt to state the required header")
	}
	if strings.Contains(p, "Defects to fix") {
		t.Error("initial prompt must not carry feedback")
	}
}

func TestRevision_ContainsAllParts(t *testing.T) {
	p := Revision("make me a chart", "flowchart TD\nA", "diagram too trivial: 1 node(s)")

	if !strings.Contains(p, "make me a chart") {
		t.Error("expected revision prompt to contain the original input")
	}
	if !strings.Contains(p, "flowchart TD\nA") {
		t.Error("expected revision prompt to contain the previous draft")
	}
	if !strings.Contains(p, "diagram too trivial: 1 node(s)") {
		t.Error("expected revision prompt to contain the defect feedback")
	}
	if !strings.Contains(p, "Correct exactly these defects") {
		t.Error("expected explicit correction instruction")
	}
}

func TestPrompts_NonEmpty(t *testing.T) {
	if len(Initial("")) == 0 {
		t.Error("expected non-empty initial prompt")
	}
	if len(Revision("", "", "")) == 0 {
		t.Error("expected non-empty revision prompt")
	}
}
