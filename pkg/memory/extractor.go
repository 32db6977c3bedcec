package memory

import (
	"regexp"
	"strings"
)

// Extraction runs fixed heuristic matchers instead of a model call so that
// memory writing stays deterministic and never delays the chat reply path.

const maxCandidatesPerTurn = 3

var (
	formatPrefRegex = regexp.MustCompile(`(?i)\b(?:please\s+)?(?:keep (?:it|answers|replies)|answer|reply|respond|explain)\s+((?:in\s+|with\s+|more\s+|less\s+)?[a-z ,\-]{3,60}?)(?:\s+(?:please|from now on))?[.!?]?$`)
	goalRegex       = regexp.MustCompile(`(?i)\b(?:my goal is|i want to|i would like to|help me)\s+([^.!?\n]{4,160})`)
	nameRegex       = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([A-Za-z][A-Za-z \-']{1,48})`)
	hobbyRegex      = regexp.MustCompile(`(?i)\b(?:my hobb(?:y|ies)(?: is| are| include)?|i enjoy|i practice|i'm into|i am into)\s+([^.!?\n]{3,120})`)
	likeRegex       = regexp.MustCompile(`(?i)\bi (?:really )?(?:like|love|prefer)\s+([^.!?\n]{3,120})`)
	dislikeRegex    = regexp.MustCompile(`(?i)\bi (?:really )?(?:dislike|hate|can't stand|cannot stand)\s+([^.!?\n]{3,120})`)
	frictionRegex   = regexp.MustCompile(`(?i)\b(?:confus\w*|struggl\w*|stuck|don't understand|do not understand|lost me|too hard|difficult for me|not clear|unclear)\b`)
)

// ExtractCandidates derives up to 3 candidate facts from the latest user
// message and the assistant reply. Matchers run in a fixed order against the
// user message; only the friction check reads the combined text.
func ExtractCandidates(userMessage, assistantMessage string) []Candidate {
	return extractCandidates(userMessage, assistantMessage, maxCandidatesPerTurn)
}

func extractCandidates(userMessage, assistantMessage string, max int) []Candidate {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil
	}

	candidates := []Candidate{}
	add := func(c Candidate) {
		if len(candidates) < max {
			candidates = append(candidates, c)
		}
	}

	if m := formatPrefRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypePreference,
			Content:    "User preference: " + strings.TrimSpace(m[1]),
			Tags:       []string{"preference", "format"},
			Confidence: 72,
		})
	}
	if m := goalRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypeGoal,
			Content:    "User goal: " + strings.TrimSpace(m[1]),
			Tags:       []string{"goal"},
			Confidence: 76,
		})
	}
	if m := nameRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypeProfile,
			Content:    "User name: " + strings.TrimSpace(m[1]),
			Tags:       []string{"profile", "name"},
			Confidence: 85,
		})
	}
	if m := hobbyRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypeProfile,
			Content:    "User interest: " + strings.TrimSpace(m[1]),
			Tags:       []string{"profile", "interest"},
			Confidence: 78,
		})
	}
	if m := likeRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypePreference,
			Content:    "User likes: " + strings.TrimSpace(m[1]),
			Tags:       []string{"preference"},
			Confidence: 74,
		})
	}
	if m := dislikeRegex.FindStringSubmatch(userMessage); len(m) >= 2 {
		add(Candidate{
			Type:       TypePreference,
			Content:    "User dislikes: " + strings.TrimSpace(m[1]),
			Tags:       []string{"preference"},
			Confidence: 74,
		})
	}

	combined := userMessage + " " + assistantMessage
	if frictionRegex.MatchString(combined) {
		add(Candidate{
			Type:       TypeLessonIssue,
			Content:    "Lesson friction: " + snippet(userMessage, 160),
			Tags:       []string{"lesson", "friction"},
			Confidence: 68,
		})
	} else {
		add(Candidate{
			Type:       TypeProgress,
			Content:    "Progress checkpoint: " + snippet(userMessage, 160),
			Tags:       []string{"progress"},
			Confidence: 62,
		})
	}

	return candidates
}

func snippet(text string, max int) string {
	return truncateRunes(strings.TrimSpace(text), max)
}
