package training

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	groq "vocalis/services/groq"
)

// VariationLLM is the slice of the inference client the variation step needs.
type VariationLLM interface {
	ChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (*groq.ChatResult, error)
}

const variationSystemPrompt = `You generate training data variations. Given one example of a customer inquiry and its extracted JSON, produce new variations that preserve the JSON schema exactly but change the wording, names, companies, cities, figures, and phrasing. Every variation must be realistic and self-consistent: the JSON must match the inquiry text.`

// buildVariationPrompt asks for n variations of a seed in a parseable block
// format.
func buildVariationPrompt(seed Example, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d variations of this example.\n\n", n)
	fmt.Fprintf(&b, "EXAMPLE INQUIRY:\n%s\n\nEXAMPLE JSON:\n%s\n\n", seed.Input, seed.Output)
	b.WriteString("Format each variation exactly like this:\n\n")
	b.WriteString("---VARIATION 1---\nINPUT:\n<the inquiry text>\nOUTPUT:\n<the JSON object>\n\n")
	fmt.Fprintf(&b, "Number them 1 through %d.", n)
	return b.String()
}

var variationHeader = regexp.MustCompile(`(?m)^---VARIATION \d+---\s*$`)

// ParseVariations splits an LLM response into examples. Blocks missing a
// non-empty INPUT or OUTPUT section are dropped.
func ParseVariations(text string) []Example {
	blocks := variationHeader.Split(text, -1)
	examples := make([]Example, 0, len(blocks))
	for _, block := range blocks {
		input, output, ok := splitVariationBlock(block)
		if !ok {
			continue
		}
		examples = append(examples, Example{Input: input, Output: output})
	}
	return examples
}

func splitVariationBlock(block string) (input, output string, ok bool) {
	inputIdx := strings.Index(block, "INPUT:")
	outputIdx := strings.Index(block, "OUTPUT:")
	if inputIdx < 0 || outputIdx < 0 || outputIdx < inputIdx {
		return "", "", false
	}
	input = strings.TrimSpace(block[inputIdx+len("INPUT:") : outputIdx])
	output = strings.TrimSpace(block[outputIdx+len("OUTPUT:"):])
	if input == "" || output == "" {
		return "", "", false
	}
	return input, output, true
}

// GenerateVariations asks the LLM for n variations of each seed. Failures on
// one seed are logged by the caller and do not abort the rest.
func GenerateVariations(ctx context.Context, llm VariationLLM, seed Example, n int) ([]Example, error) {
	result, err := llm.ChatCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: variationSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildVariationPrompt(seed, n)},
	})
	if err != nil {
		return nil, fmt.Errorf("variation generation: %w", err)
	}
	return ParseVariations(result.Text), nil
}
