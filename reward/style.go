package reward

import (
	"regexp"
	"strings"
)

var hedgingPhrases = []string{
	"i think", "i believe", "maybe", "perhaps", "possibly",
	"i'm not sure", "it could be", "it might be",
}

// NoHedging penalizes −0.3 when the completion hedges.
func NoHedging(sample Sample) float64 {
	lower := strings.ToLower(sample.Completion)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			return -0.3
		}
	}
	return 0
}

var apologyPhrases = []string{"sorry", "i apologize", "apologies", "unfortunately"}

// NoApology penalizes −0.2 for apologetic filler.
func NoApology(sample Sample) float64 {
	lower := strings.ToLower(sample.Completion)
	for _, phrase := range apologyPhrases {
		if strings.Contains(lower, phrase) {
			return -0.2
		}
	}
	return 0
}

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// NoRepetition penalizes −0.5 when fewer than 70% of sentences are unique.
func NoRepetition(sample Sample) float64 {
	raw := sentenceEnd.Split(sample.Completion, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < 2 {
		return 0
	}
	unique := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		unique[s] = true
	}
	if float64(len(unique))/float64(len(sentences)) < 0.7 {
		return -0.5
	}
	return 0
}

// Brevity rewards short spoken-style responses: +0.5 up to 40 words, +0.2 up
// to 80, −0.3 past 160.
func Brevity(sample Sample) float64 {
	words := len(strings.Fields(sample.Completion))
	switch {
	case words <= 40:
		return 0.5
	case words <= 80:
		return 0.2
	case words > 160:
		return -0.3
	default:
		return 0
	}
}

var speakableViolations = []*regexp.Regexp{
	regexp.MustCompile("[*_#`]"),                  // markdown formatting
	regexp.MustCompile(`(?m)^\s*[-•]\s`),          // bullet lists
	regexp.MustCompile(`https?://`),               // URLs
	regexp.MustCompile("[\U0001F300-\U0001FAFF]"), // emoji
}

// Speakable penalizes −0.2 per violation of spoken-text constraints: no
// markdown, no bullets, no URLs, no emoji.
func Speakable(sample Sample) float64 {
	score := 0.0
	for _, violation := range speakableViolations {
		if violation.MatchString(sample.Completion) {
			score -= 0.2
		}
	}
	return score
}
