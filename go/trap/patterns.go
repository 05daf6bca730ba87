package trap

import "regexp"

// Phrase patterns behind the leakage, pathway and targeting-specificity
// flags. Matching is case-insensitive and any single match fires the flag.
var (
	leakagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(i\s+will|we\s+will|going\s+to|plan\s+to|intend\s+to)\b`),
		regexp.MustCompile(`(?i)\b(tomorrow|tonight|next\s+week|at\s+\d{1,2}(:\d{2})?)\b`),
	}

	pathwayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(route|entrance|badge|schedule|residence|home\s+address|weapon|gun|rifle)\b`),
		regexp.MustCompile(`(?i)\b(venue|parking|security\s+gate|access)\b`),
	}

	targetingTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(on\s+\w+day|at\s+\d{1,2}(:\d{2})?|between\s+\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(today|tomorrow|this\s+week|next\s+week)\b`),
	}
)

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
