package reward

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Sample is one scored completion. Expected is the reference answer, empty
// when the heuristic does not need one.
type Sample struct {
	Prompt     string
	Completion string
	Expected   string
}

// Func scores one sample. Positive rewards desired behaviour, negative
// penalizes.
type Func func(sample Sample) float64

// Named pairs a reward function with a stable name for logging.
type Named struct {
	Name string
	Fn   Func
}

var (
	reasoningTag = regexp.MustCompile(`(?s)<reasoning>\s*(.*?)\s*</reasoning>`)
	answerTag    = regexp.MustCompile(`(?s)<answer>\s*(.*?)\s*</answer>`)
	strictFormat = regexp.MustCompile(`(?s)^\s*<reasoning>.*?</reasoning>\s*<answer>.*?</answer>\s*$`)
)

// ExtractAnswer returns the <answer> block, or the whole completion trimmed
// when no tags are present.
func ExtractAnswer(completion string) string {
	if m := answerTag.FindStringSubmatch(completion); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(completion)
}

// ExtractReasoning returns the <reasoning> block, or "".
func ExtractReasoning(completion string) string {
	if m := reasoningTag.FindStringSubmatch(completion); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parseNumber(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	return v, err == nil
}

// Correctness gives +2.0 for an exact answer match, or a numeric match
// within 0.01.
func Correctness(sample Sample) float64 {
	answer := ExtractAnswer(sample.Completion)
	expected := strings.TrimSpace(sample.Expected)
	if answer == expected {
		return 2.0
	}
	a, okA := parseNumber(answer)
	e, okE := parseNumber(expected)
	if okA && okE && math.Abs(a-e) <= 0.01 {
		return 2.0
	}
	return 0
}

// Proximity grades numeric answers on a 0..2 gradient by relative error.
// Non-numeric answers score 0.
func Proximity(sample Sample) float64 {
	a, okA := parseNumber(ExtractAnswer(sample.Completion))
	e, okE := parseNumber(sample.Expected)
	if !okA || !okE {
		return 0
	}
	scale := math.Max(math.Abs(e), 1)
	score := 2 * (1 - math.Abs(a-e)/scale)
	return math.Max(0, score)
}

// PartialMatch gives +1.0 when the expected answer appears anywhere in the
// extracted answer, case-insensitively.
func PartialMatch(sample Sample) float64 {
	answer := strings.ToLower(ExtractAnswer(sample.Completion))
	expected := strings.ToLower(strings.TrimSpace(sample.Expected))
	if expected != "" && strings.Contains(answer, expected) {
		return 1.0
	}
	return 0
}

// Format gives +0.5 for a strictly tagged completion and +0.2 when both tag
// pairs are merely present.
func Format(sample Sample) float64 {
	if strictFormat.MatchString(sample.Completion) {
		return 0.5
	}
	if reasoningTag.MatchString(sample.Completion) && answerTag.MatchString(sample.Completion) {
		return 0.2
	}
	return 0
}

// StrictFormat gives +0.5 only for the strict tag layout.
func StrictFormat(sample Sample) float64 {
	if strictFormat.MatchString(sample.Completion) {
		return 0.5
	}
	return 0
}

// XMLTagCount gives +0.125 for each of the four tags appearing exactly once.
func XMLTagCount(sample Sample) float64 {
	score := 0.0
	for _, tag := range []string{"<reasoning>", "</reasoning>", "<answer>", "</answer>"} {
		if strings.Count(sample.Completion, tag) == 1 {
			score += 0.125
		}
	}
	return score
}

// ReasoningLength rewards substantive reasoning: +0.3 for 200+ chars,
// +0.1 for 50+.
func ReasoningLength(sample Sample) float64 {
	n := len(ExtractReasoning(sample.Completion))
	switch {
	case n >= 200:
		return 0.3
	case n >= 50:
		return 0.1
	default:
		return 0
	}
}

var stepLine = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|Step \d+|-\s)`)

// StepCount gives +0.1 per enumerated reasoning step, capped at +0.5.
func StepCount(sample Sample) float64 {
	steps := len(stepLine.FindAllString(ExtractReasoning(sample.Completion), -1))
	return math.Min(0.5, 0.1*float64(steps))
}

var calculation = regexp.MustCompile(`\d\s*[-+*/×÷]\s*\d[^=]*=`)

// CalculationShown gives +0.2 when the reasoning works an arithmetic step
// through to a result.
func CalculationShown(sample Sample) float64 {
	if calculation.MatchString(ExtractReasoning(sample.Completion)) {
		return 0.2
	}
	return 0
}

// IntegerAnswer gives +0.2 when the answer is a bare integer.
func IntegerAnswer(sample Sample) float64 {
	if _, err := strconv.Atoi(strings.TrimSpace(ExtractAnswer(sample.Completion))); err == nil {
		return 0.2
	}
	return 0
}

// MaxLength returns a penalty of −0.3 for completions longer than n chars.
func MaxLength(n int) Func {
	return func(sample Sample) float64 {
		if len(sample.Completion) > n {
			return -0.3
		}
		return 0
	}
}

// Keywords rewards bonus per listed keyword present in the completion.
func Keywords(words []string, bonus float64) Func {
	return func(sample Sample) float64 {
		lower := strings.ToLower(sample.Completion)
		score := 0.0
		for _, word := range words {
			if strings.Contains(lower, strings.ToLower(word)) {
				score += bonus
			}
		}
		return score
	}
}

// ForbiddenPhrases penalizes penalty per listed phrase present.
func ForbiddenPhrases(phrases []string, penalty float64) Func {
	return func(sample Sample) float64 {
		lower := strings.ToLower(sample.Completion)
		score := 0.0
		for _, phrase := range phrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				score -= penalty
			}
		}
		return score
	}
}
