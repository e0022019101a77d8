package worker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
	defaultTopP        = 0.9
	maxTokensCeiling   = 4096
)

// Message is one chat message in an inference request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InferenceInput is the payload of one inference job. Exactly one of Prompt
// and Messages must be set. Optional sampling fields use pointers so an
// explicit zero survives validation.
type InferenceInput struct {
	Prompt   string    `json:"prompt,omitempty"`
	Messages []Message `json:"messages,omitempty"`

	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
}

// Validate checks the input and collects every violation instead of stopping
// at the first. It also applies defaults for max_tokens, temperature and
// top_p when they are unset.
func (in *InferenceInput) Validate() error {
	var violations []string

	hasPrompt := in.Prompt != ""
	hasMessages := len(in.Messages) > 0
	if hasPrompt == hasMessages {
		violations = append(violations, "exactly one of 'prompt' or 'messages' must be provided")
	}

	if in.MaxTokens == 0 {
		in.MaxTokens = defaultMaxTokens
	} else if in.MaxTokens < 1 || in.MaxTokens > maxTokensCeiling {
		violations = append(violations, fmt.Sprintf("max_tokens must be in [1, %d], got %d", maxTokensCeiling, in.MaxTokens))
	}

	if in.Temperature == nil {
		t := defaultTemperature
		in.Temperature = &t
	} else if *in.Temperature < 0 || *in.Temperature > 2 {
		violations = append(violations, fmt.Sprintf("temperature must be in [0, 2], got %g", *in.Temperature))
	}

	if in.TopP == nil {
		p := defaultTopP
		in.TopP = &p
	} else if *in.TopP <= 0 || *in.TopP > 1 {
		violations = append(violations, fmt.Sprintf("top_p must be in (0, 1], got %g", *in.TopP))
	}

	if in.TopK < 0 {
		violations = append(violations, fmt.Sprintf("top_k must be >= 0, got %d", in.TopK))
	}

	if in.PresencePenalty < -2 || in.PresencePenalty > 2 {
		violations = append(violations, fmt.Sprintf("presence_penalty must be in [-2, 2], got %g", in.PresencePenalty))
	}
	if in.FrequencyPenalty < -2 || in.FrequencyPenalty > 2 {
		violations = append(violations, fmt.Sprintf("frequency_penalty must be in [-2, 2], got %g", in.FrequencyPenalty))
	}

	if len(violations) > 0 {
		return errors.New(strings.Join(violations, "; "))
	}
	return nil
}
