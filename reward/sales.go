package reward

import "strings"

// bantSignals maps each qualification element to the phrases that show the
// completion addressed it.
var bantSignals = map[string][]string{
	"budget":    {"budget", "price range", "spend", "funding"},
	"authority": {"decision maker", "who decides", "authority", "sign off", "approve"},
	"need":      {"need", "problem", "pain point", "challenge", "requirement"},
	"timeline":  {"timeline", "timeframe", "when do you", "deadline", "by when"},
}

// Qualification rewards +0.25 for each BANT element the completion probes or
// records, up to +1.0 when all four are covered.
func Qualification(sample Sample) float64 {
	lower := strings.ToLower(sample.Completion)
	score := 0.0
	for _, signals := range bantSignals {
		for _, signal := range signals {
			if strings.Contains(lower, signal) {
				score += 0.25
				break
			}
		}
	}
	return score
}

var complianceViolations = []string{
	"guarantee", "guaranteed", "risk-free", "no risk",
	"best price anywhere", "never fails", "100% success",
}

var nextStepSignals = []string{
	"schedule a call", "book a", "follow up", "next step", "send you", "set up a meeting",
}

// SalesCompliance penalizes −0.25 per overpromising claim and rewards +0.25
// when the completion proposes a concrete next step.
func SalesCompliance(sample Sample) float64 {
	lower := strings.ToLower(sample.Completion)
	score := 0.0
	for _, violation := range complianceViolations {
		if strings.Contains(lower, violation) {
			score -= 0.25
		}
	}
	for _, signal := range nextStepSignals {
		if strings.Contains(lower, signal) {
			score += 0.25
			break
		}
	}
	return score
}
