package grading

import "strings"

// rejectedMarkers are substrings whose presence fails the safety
// pre-check. The check is deliberately narrow: an empty or off-topic
// answer is a gradable answer, not unsafe content.
var rejectedMarkers = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard the rubric",
	"you are now",
	"system prompt",
	"<script",
}

// precheckAnswer rejects genuinely unsafe or prompt-injecting content.
// Everything else — including an empty string — passes and is graded on
// its merits.
func precheckAnswer(answer string) error {
	lowered := strings.ToLower(answer)
	for _, marker := range rejectedMarkers {
		if strings.Contains(lowered, marker) {
			return E(CodeContentRejected, "answer failed content pre-check")
		}
	}
	return nil
}

// normalizeAnswer trims whitespace and collapses internal delimiter
// runs that could break out of the prompt's quoting.
func normalizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	return strings.ReplaceAll(answer, `"""`, `" " "`)
}
