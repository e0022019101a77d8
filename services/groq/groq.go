package groq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vocalis/core"

	"github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	// Default models per integration pattern.
	ModelChat       = "llama-3.3-70b-versatile"
	ModelVision     = "meta-llama/llama-4-scout-17b-16e-instruct"
	ModelWhisper    = "whisper-large-v3"
	ModelTTS        = "playai-tts"
	ModelReasoning  = "deepseek-r1-distill-llama-70b"
	ModelCompound   = "compound-beta"
	DefaultTTSVoice = "Fritz-PlayAI"

	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// ReasoningFormat controls how a reasoning model's chain of thought is
// returned by Reason.
type ReasoningFormat string

const (
	// ReasoningRaw keeps the chain of thought inline in the answer.
	ReasoningRaw ReasoningFormat = "raw"
	// ReasoningParsed separates the chain of thought from the answer.
	ReasoningParsed ReasoningFormat = "parsed"
	// ReasoningHidden strips the chain of thought entirely.
	ReasoningHidden ReasoningFormat = "hidden"
)

// Usage mirrors the token accounting returned with every completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the outcome of a chat-style call.
type ChatResult struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// ReasonResult splits a reasoning model's output per the requested format.
// Reasoning is empty for raw and hidden formats.
type ReasonResult struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning,omitempty"`
	Usage     Usage  `json:"usage"`
}

// SearchResult is the outcome of a compound web-search completion. Tools
// lists the server-side tool invocations the model executed, when reported.
type SearchResult struct {
	Text  string   `json:"text"`
	Tools []string `json:"tools,omitempty"`
	Usage Usage    `json:"usage"`
}

// ToolDispatcher executes a tool call requested by the model and returns the
// result payload to feed back into the conversation.
type ToolDispatcher func(ctx context.Context, name string, arguments string) (string, error)

// Client wraps the Groq API, one method per integration pattern. All methods
// are safe for concurrent use.
type Client struct {
	api    *openai.Client
	logger *core.Logger
}

// NewClient builds a Groq client from an API key.
func NewClient(apiKey string, logger *core.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("groq: API key is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqBaseURL
	return &Client{
		api:    openai.NewClientWithConfig(config),
		logger: logger,
	}, nil
}

// ChatCompletion runs a blocking chat completion against the default chat
// model and returns the text plus token usage.
func (c *Client) ChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (*ChatResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       ModelChat,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: chat completion (%s): %w", ModelChat, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: chat completion (%s): no choices returned", ModelChat)
	}
	return &ChatResult{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageFrom(resp.Usage),
	}, nil
}

// StreamChatCompletion streams token deltas to out as they arrive. The
// channel is closed when the stream ends.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, out chan<- string) error {
	defer close(out)

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       ModelChat,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("groq: stream chat completion (%s): %w", ModelChat, err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("groq: stream chat completion (%s): %w", ModelChat, err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case out <- delta:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AnalyzeImage asks the vision model about an image. imageURL may be an
// https URL or a data URL.
func (c *Client) AnalyzeImage(ctx context.Context, prompt, imageURL string) (*ChatResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ModelVision,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: image analysis (%s): %w", ModelVision, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: image analysis (%s): no choices returned", ModelVision)
	}
	return &ChatResult{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageFrom(resp.Usage),
	}, nil
}

// Transcribe runs Whisper speech-to-text over an audio file and returns the
// verbose response with segment timings.
func (c *Client) Transcribe(ctx context.Context, path string) (*openai.AudioResponse, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    ModelWhisper,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: transcription (%s): %w", ModelWhisper, err)
	}
	return &resp, nil
}

// Synthesize converts text to WAV audio with the PlayAI TTS model. An empty
// voice selects the default.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = DefaultTTSVoice
	}
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(ModelTTS),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: speech synthesis (%s): %w", ModelTTS, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("groq: speech synthesis (%s): read audio: %w", ModelTTS, err)
	}
	return audio, nil
}

// ChatWithTools runs the two-phase tool loop: the first completion may
// request tool calls, the dispatcher executes them, and a second completion
// over the augmented conversation produces the final answer.
func (c *Client) ChatWithTools(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	tools []openai.Tool,
	dispatch ToolDispatcher,
) (*ChatResult, error) {
	if dispatch == nil {
		return nil, errors.New("groq: tool dispatcher is required")
	}

	first, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       ModelChat,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Tools:       tools,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: tool completion (%s): %w", ModelChat, err)
	}
	if len(first.Choices) == 0 {
		return nil, fmt.Errorf("groq: tool completion (%s): no choices returned", ModelChat)
	}

	choice := first.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		// Model answered directly without touching the tools.
		return &ChatResult{
			Text:  choice.Message.Content,
			Usage: usageFrom(first.Usage),
		}, nil
	}

	conversation := append(messages, choice.Message)
	for _, call := range choice.Message.ToolCalls {
		c.logger.Debugf("groq: dispatching tool %s", call.Function.Name)
		result, err := dispatch(ctx, call.Function.Name, call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("groq: tool %s failed: %w", call.Function.Name, err)
		}
		conversation = append(conversation, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}

	second, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       ModelChat,
		Messages:    conversation,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: tool followup (%s): %w", ModelChat, err)
	}
	if len(second.Choices) == 0 {
		return nil, fmt.Errorf("groq: tool followup (%s): no choices returned", ModelChat)
	}

	return &ChatResult{
		Text: second.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     first.Usage.PromptTokens + second.Usage.PromptTokens,
			CompletionTokens: first.Usage.CompletionTokens + second.Usage.CompletionTokens,
			TotalTokens:      first.Usage.TotalTokens + second.Usage.TotalTokens,
		},
	}, nil
}

// Reason runs a completion against a reasoning model. The chain of thought
// arrives wrapped in <think> tags; the format decides whether it is kept
// inline, split out, or dropped.
func (c *Client) Reason(ctx context.Context, prompt string, format ReasoningFormat) (*ReasonResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ModelReasoning,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: defaultMaxTokens * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: reasoning completion (%s): %w", ModelReasoning, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: reasoning completion (%s): no choices returned", ModelReasoning)
	}

	content := resp.Choices[0].Message.Content
	result := &ReasonResult{Usage: usageFrom(resp.Usage)}

	switch format {
	case ReasoningParsed:
		reasoning, answer := splitThinkBlock(content)
		result.Reasoning = reasoning
		result.Answer = answer
	case ReasoningHidden:
		_, answer := splitThinkBlock(content)
		result.Answer = answer
	default: // ReasoningRaw
		result.Answer = content
	}
	return result, nil
}

// SearchChat runs a prompt through the compound model, which performs web
// search server-side before answering.
func (c *Client) SearchChat(ctx context.Context, prompt string) (*SearchResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ModelCompound,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: search completion (%s): %w", ModelCompound, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: search completion (%s): no choices returned", ModelCompound)
	}

	result := &SearchResult{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageFrom(resp.Usage),
	}
	for _, call := range resp.Choices[0].Message.ToolCalls {
		result.Tools = append(result.Tools, call.Function.Name)
	}
	return result, nil
}

// splitThinkBlock separates a leading <think>...</think> block from the
// remainder of the content.
func splitThinkBlock(content string) (reasoning, answer string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<think>") {
		return "", trimmed
	}
	end := strings.Index(trimmed, "</think>")
	if end < 0 {
		return "", trimmed
	}
	reasoning = strings.TrimSpace(trimmed[len("<think>"):end])
	answer = strings.TrimSpace(trimmed[end+len("</think>"):])
	return reasoning, answer
}

func usageFrom(u openai.Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
