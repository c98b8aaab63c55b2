// Package postprocess removes common LLM artifacts from generated diagram
// output and extracts the Mermaid source from it.
//
// It is applied to the raw text returned by the model before the candidate
// reaches the validator.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean reduces raw model output to bare Mermaid source in three phases and
// returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Code fence extraction (```mermaid preferred, plain ``` accepted)
//  3. Instruction echo removal (prompt leakage)
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = extractFence(text)
	text = removeInstructionEchoes(text)
	return strings.TrimSpace(text)
}

// EnsureHeader prepends a 'flowchart TD' header when the source lacks one.
// Empty input stays empty so the validator can classify it.
func EnsureHeader(source string) string {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "flowchart") || strings.HasPrefix(lower, "graph") {
		return trimmed
	}
	return "flowchart TD\n" + trimmed
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: code fences ---

var (
	mermaidFenceRe = regexp.MustCompile("(?s)```mermaid[ \t]*\n(.*?)```")
	plainFenceRe   = regexp.MustCompile("(?s)```[ \t]*\n(.*?)```")
)

// extractFence returns the contents of the first fenced code block, preferring
// a ```mermaid fence. Text without a fence passes through unchanged.
func extractFence(text string) string {
	if m := mermaidFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := plainFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// --- Phase 3: instruction echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to.  Each pattern is anchored to the start of the string
// and requires a colon to reduce false positives on legitimate content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [corrected|revised|updated] [Mermaid] flowchart/diagram/code:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:corrected |revised |updated )?(?:mermaid )?(?:flowchart|diagram|code)\s*:`),
	// "[The] [corrected|revised] [Mermaid] flowchart/diagram/code:"
	regexp.MustCompile(`(?i)^(?:the )?(?:corrected |revised |updated )?(?:mermaid )?(?:flowchart|diagram|code)\s*:`),
	// "Certainly / Sure / Of course[,] here is the flowchart:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:corrected |revised |updated )?(?:mermaid )?(?:flowchart|diagram|code)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}
