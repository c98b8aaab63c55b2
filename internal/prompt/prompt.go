// Package prompt assembles the instruction text sent to the language model.
package prompt

import (
	"fmt"
	"strings"
)

// formatRules are appended to every prompt so the model emits source the
// validator can parse.
const formatRules = `Output rules:
- Output ONLY the complete Mermaid code block, enclosed in triple backticks with the 'mermaid' language tag.
- The chart must start with 'flowchart TD' or 'flowchart LR'.
- Use meaningful node labels in [] or {} shapes, not bare letters where avoidable.
- Every connection must be a directional edge (-->), optionally labeled with |text|.
- No explanations, no commentary, just the code block.`

// Initial builds the first-iteration prompt: format instructions plus the
// user's input, no feedback.
func Initial(input string) string {
	var sb strings.Builder

	sb.WriteString("You convert requirements into clean Mermaid flowcharts. ")
	sb.WriteString("Capture the control flow, decisions, and important outcomes. Avoid redundant nodes.\n\n")
	sb.WriteString("Create a flowchart for the following input:\n")
	sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", input))
	sb.WriteString(formatRules)

	return sb.String()
}

// Revision builds a retry prompt carrying the previous candidate and the
// validator's defect description, with an instruction to correct exactly
// those defects.
func Revision(input, prevSource, feedback string) string {
	var sb strings.Builder

	sb.WriteString("You revise Mermaid flowcharts using reviewer feedback. Address every reported defect.\n\n")
	sb.WriteString("Original input:\n")
	sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", input))
	sb.WriteString("Previous Mermaid draft (rejected):\n")
	sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", prevSource))
	sb.WriteString(fmt.Sprintf("Defects to fix:\n%s\n\n", feedback))
	sb.WriteString("Correct exactly these defects while keeping everything that was already right.\n\n")
	sb.WriteString(formatRules)

	return sb.String()
}
