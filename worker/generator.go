package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// BackendConfig points the worker at an OpenAI-compatible inference server,
// typically a vLLM deployment on the same GPU.
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIGenerator implements Generator against an OpenAI-compatible backend.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg BackendConfig) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (g *OpenAIGenerator) request(input InferenceInput) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(input.Messages)+1)
	if input.Prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: input.Prompt,
		})
	}
	for _, m := range input.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:            g.model,
		Messages:         messages,
		MaxTokens:        input.MaxTokens,
		PresencePenalty:  float32(input.PresencePenalty),
		FrequencyPenalty: float32(input.FrequencyPenalty),
	}
	if input.Temperature != nil {
		req.Temperature = float32(*input.Temperature)
	}
	if input.TopP != nil {
		req.TopP = float32(*input.TopP)
	}
	return req
}

func (g *OpenAIGenerator) Generate(ctx context.Context, input InferenceInput) (Output, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(input))
	if err != nil {
		return Output{}, fmt.Errorf("backend completion (%s): %w", g.model, err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("backend completion (%s): no choices returned", g.model)
	}

	return Output{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (g *OpenAIGenerator) Stream(ctx context.Context, input InferenceInput, chunks chan<- string) (Output, error) {
	req := g.request(input)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Output{}, fmt.Errorf("backend stream (%s): %w", g.model, err)
	}
	defer stream.Close()

	var output Output
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return output, nil
		}
		if err != nil {
			return Output{}, fmt.Errorf("backend stream (%s): %w", g.model, err)
		}

		if resp.Usage != nil {
			output.Usage = Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		output.Text += delta
		select {
		case chunks <- delta:
		case <-ctx.Done():
			return Output{}, ctx.Err()
		}
	}
}
