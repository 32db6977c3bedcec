package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxContentLen = 360

var (
	whitespaceRunRegex = regexp.MustCompile(`\s+`)
	listMarkerRegex    = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
	wordTokenRegex     = regexp.MustCompile(`[a-z0-9_\-]+`)

	// Hard privacy gate: anything matching these never reaches the store.
	sensitiveRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(sex|sexual|porn|nude|naked|erotic)\b`),
		regexp.MustCompile(`(?i)\b(pregnan\w*|diagnos\w*|prescription|medication|hiv|std|cancer|therapy session|mental illness)\b`),
		regexp.MustCompile(`(?i)\b(credit card|card number|cvv|iban|routing number|bank account|ssn|social security)\b`),
		regexp.MustCompile(`(?i)\b(password|passcode|pin code)\b`),
		regexp.MustCompile(`\b\d{13,19}\b`),
	}
)

// Sanitize trims, collapses whitespace runs, strips a leading list marker
// and caps the result at 360 characters. Always returns a string.
func Sanitize(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	content = whitespaceRunRegex.ReplaceAllString(content, " ")
	content = listMarkerRegex.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	return truncateRunes(content, maxContentLen)
}

// truncateRunes caps text at max characters, never splitting a multi-byte
// rune.
func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:max]))
}

// IsSensitive reports whether text falls into a protected category
// (sexual content, health, financial identifiers, credentials).
func IsSensitive(text string) bool {
	for _, re := range sensitiveRegexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// normalizeTags lowercases, dedupes and caps tags at 8.
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) >= 8 {
			break
		}
	}
	return out
}

func clampConfidence(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}

func tokenize(text string) []string {
	return wordTokenRegex.FindAllString(strings.ToLower(text), -1)
}

func tokenSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range tokenize(text) {
		out[tok] = struct{}{}
	}
	return out
}

// wordOverlap computes |A ∩ B| / max(|A|, |B|, 1) over lowercase word sets.
func wordOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	denom := len(setA)
	if len(setB) > denom {
		denom = len(setB)
	}
	if denom < 1 {
		denom = 1
	}
	shared := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}
