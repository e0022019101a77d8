package reward

import "fmt"

// SuiteKind selects a pre-built set of reward functions.
type SuiteKind string

const (
	SuiteReasoning SuiteKind = "reasoning"
	SuiteSales     SuiteKind = "sales"
	SuiteVoice     SuiteKind = "voice"
	SuiteCode      SuiteKind = "code"
)

// baseSuite is the shared core every use case builds on: get the answer
// right and keep the tag layout.
func baseSuite() []Named {
	return []Named{
		{"correctness", Correctness},
		{"format", Format},
	}
}

// BuildSuite returns the named reward functions used to train each model
// family.
func BuildSuite(kind SuiteKind) ([]Named, error) {
	switch kind {
	case SuiteReasoning:
		return append(baseSuite(),
			Named{"reasoning_length", ReasoningLength},
			Named{"step_count", StepCount},
			Named{"no_hedging", NoHedging},
			Named{"integer_answer", IntegerAnswer},
		), nil
	case SuiteSales:
		return append(baseSuite(),
			Named{"qualification", Qualification},
			Named{"sales_compliance", SalesCompliance},
			Named{"no_apology", NoApology},
		), nil
	case SuiteVoice:
		return append(baseSuite(),
			Named{"brevity", Brevity},
			Named{"speakable", Speakable},
			Named{"no_hedging", NoHedging},
		), nil
	case SuiteCode:
		// Code completions are graded on whether they parse, not on
		// answer-tag correctness.
		return []Named{
			{"syntax_valid", SyntaxValid},
			{"format", Format},
			{"calculation_shown", CalculationShown},
		}, nil
	}
	return nil, fmt.Errorf("reward: unknown suite kind %q", kind)
}

// Score sums every function in the suite over one sample and returns the
// per-function breakdown alongside the total.
func Score(suite []Named, sample Sample) (total float64, breakdown map[string]float64) {
	breakdown = make(map[string]float64, len(suite))
	for _, named := range suite {
		v := named.Fn(sample)
		breakdown[named.Name] = v
		total += v
	}
	return total, breakdown
}
