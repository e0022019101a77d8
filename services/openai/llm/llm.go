package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"vocalis/core"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"
)

// Known OpenAI-compatible providers. The provider name in Config selects the
// base URL; an explicit Config.BaseURL wins over the table.
var providerBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"together":   "https://api.together.xyz/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"cerebras":   "https://api.cerebras.ai/v1",
	"xai":        "https://api.x.ai/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"perplexity": "https://api.perplexity.ai",
}

const (
	defaultProvider = "groq"
	defaultModel    = "llama-3.3-70b-versatile"
)

// Config holds the configuration for an OpenAI-compatible completion service.
type Config struct {
	APIKey      string
	Provider    string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Streaming   bool
}

// OpenAILLMService runs chat completions against any OpenAI-compatible
// endpoint. Groq is the default provider.
type OpenAILLMService struct {
	client *openai.Client
	config Config
	logger *core.Logger

	activeStreams map[string]*openai.ChatCompletionStream
	streamsMutex  sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc

	isInitialized bool
	mu            sync.RWMutex
}

// NewOpenAILLMService creates a new completion service. Unset fields get
// Groq-flavored defaults.
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.Provider == "" {
		config.Provider = defaultProvider
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		config:        config,
		logger:        logger,
		activeStreams: make(map[string]*openai.ChatCompletionStream),
	}
}

// resolveBaseURL returns the endpoint for the configured provider.
func (s *OpenAILLMService) resolveBaseURL() (string, error) {
	if s.config.BaseURL != "" {
		return s.config.BaseURL, nil
	}
	if url, ok := providerBaseURLs[strings.ToLower(s.config.Provider)]; ok {
		return url, nil
	}
	return "", fmt.Errorf("unknown LLM provider %q", s.config.Provider)
}

func (s *OpenAILLMService) newClient() (*openai.Client, error) {
	baseURL, err := s.resolveBaseURL()
	if err != nil {
		return nil, err
	}
	clientConfig := openai.DefaultConfig(s.config.APIKey)
	clientConfig.BaseURL = baseURL
	return openai.NewClientWithConfig(clientConfig), nil
}

func (s *OpenAILLMService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	client, err := s.newClient()
	if err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.client = client
	s.isInitialized = true
	return nil
}

func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.client = nil
	s.isInitialized = false

	return nil
}

// Reset abandons any in-flight completion. Streams are closed, the internal
// context is replaced, and a fresh client is created. This is how a barge-in
// stops generation mid-response.
func (s *OpenAILLMService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()

	if s.cancel != nil {
		s.cancel()
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	client, err := s.newClient()
	if err != nil {
		return err
	}
	s.client = client
	s.activeStreams = make(map[string]*openai.ChatCompletionStream)

	return nil
}

func (s *OpenAILLMService) stopAllStreams() {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()

	for id, stream := range s.activeStreams {
		if stream != nil {
			stream.Close()
		}
		delete(s.activeStreams, id)
	}
}

func (s *OpenAILLMService) registerStream(id string, stream *openai.ChatCompletionStream) {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	s.activeStreams[id] = stream
}

func (s *OpenAILLMService) unregisterStream(id string) {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	delete(s.activeStreams, id)
}

func (s *OpenAILLMService) generateStreamID() string {
	return fmt.Sprintf("%p-%d", s, len(s.activeStreams))
}

// RunCompletion runs a completion, streaming tokens to outChan as they
// arrive. Tool invocations the model requests are accumulated across chunks
// and delivered whole on toolInvocationChan.
func (s *OpenAILLMService) RunCompletion(
	llmContext core.LLMContext,
	outChan chan<- string,
	toolInvocationChan chan<- core.LLMToolCall,
	fatalServiceErrorChan chan<- error,
	completionStartChan chan<- struct{},
	completionEndChan chan<- struct{},
) {
	s.mu.RLock()
	if !s.isInitialized {
		s.mu.RUnlock()
		fatalServiceErrorChan <- errors.New("LLM service not initialized")
		return
	}
	s.mu.RUnlock()

	select {
	case <-s.ctx.Done():
		fatalServiceErrorChan <- errors.New("service was reset during completion")
		return
	default:
	}

	select {
	case completionStartChan <- struct{}{}:
	default:
	}

	messages, err := s.convertMessages(llmContext.Messages)
	if err != nil {
		fatalServiceErrorChan <- fmt.Errorf("failed to convert messages: %w", err)
		return
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stream:      s.config.Streaming,
	}

	if len(llmContext.Tools) > 0 {
		tools, err := s.convertTools(llmContext.Tools)
		if err != nil {
			fatalServiceErrorChan <- fmt.Errorf("failed to convert tools: %w", err)
			return
		}
		req.Tools = tools
	}

	if s.config.Streaming {
		err = s.runStreamingCompletion(req, outChan, toolInvocationChan)
	} else {
		err = s.runNonStreamingCompletion(req, outChan, toolInvocationChan)
	}
	if err != nil {
		// No end signal on failure: a truncated response must not pass for
		// a completed one.
		fatalServiceErrorChan <- err
		return
	}

	select {
	case completionEndChan <- struct{}{}:
	default:
	}
}

// GenerateJsonOutput runs a non-streaming completion in JSON mode and decodes
// the response into out.
func (s *OpenAILLMService) GenerateJsonOutput(ctx context.Context, llmContext core.LLMContext, out any) error {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()

	if !initialized {
		return errors.New("LLM service not initialized")
	}

	messages, err := s.convertMessages(llmContext.Messages)
	if err != nil {
		return fmt.Errorf("failed to convert messages: %w", err)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("JSON completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("JSON completion returned no choices")
	}

	if err := sonic.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("failed to decode JSON completion: %w", err)
	}
	return nil
}

// runStreamingCompletion returns nil on a normally finished stream and on a
// reset mid-stream (barge-in); any other transport failure is an error the
// caller reports instead of signalling completion.
func (s *OpenAILLMService) runStreamingCompletion(
	req openai.ChatCompletionRequest,
	outChan chan<- string,
	toolInvocationChan chan<- core.LLMToolCall,
) error {
	select {
	case <-s.ctx.Done():
		return errors.New("service was reset during streaming")
	default:
	}

	stream, err := s.client.CreateChatCompletionStream(s.ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create completion stream: %w", err)
	}

	streamID := s.generateStreamID()
	s.registerStream(streamID, stream)
	defer func() {
		s.unregisterStream(streamID)
		stream.Close()
	}()

	var toolCallBuilder = make(map[int]*openai.ToolCall)

	for {
		select {
		case <-s.ctx.Done():
			// Service was reset, stop streaming immediately.
			return nil
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if s.ctx.Err() != nil {
				// Reset raced the read; not a provider failure.
				return nil
			}
			return fmt.Errorf("completion stream failed mid-response: %w", err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			select {
			case <-s.ctx.Done():
				return nil
			case outChan <- choice.Delta.Content:
			}
		}

		// Tool calls stream in fragments keyed by index.
		for _, toolCall := range choice.Delta.ToolCalls {
			if toolCall.Index == nil {
				continue
			}
			idx := *toolCall.Index

			if _, exists := toolCallBuilder[idx]; !exists {
				toolCallBuilder[idx] = &openai.ToolCall{
					Index:    toolCall.Index,
					ID:       toolCall.ID,
					Type:     toolCall.Type,
					Function: openai.FunctionCall{},
				}
			}

			if toolCall.Function.Name != "" {
				toolCallBuilder[idx].Function.Name = toolCall.Function.Name
			}
			if toolCall.Function.Arguments != "" {
				toolCallBuilder[idx].Function.Arguments += toolCall.Function.Arguments
			}
			if toolCall.ID != "" {
				toolCallBuilder[idx].ID = toolCall.ID
			}
		}

		if choice.FinishReason == "tool_calls" {
			for _, toolCall := range toolCallBuilder {
				if toolCall.Function.Name != "" {
					select {
					case <-s.ctx.Done():
						return nil
					case toolInvocationChan <- s.convertToolCall(*toolCall):
					}
				}
			}
			toolCallBuilder = make(map[int]*openai.ToolCall)
		}
	}
	return nil
}

func (s *OpenAILLMService) runNonStreamingCompletion(
	req openai.ChatCompletionRequest,
	outChan chan<- string,
	toolInvocationChan chan<- core.LLMToolCall,
) error {
	select {
	case <-s.ctx.Done():
		return errors.New("service was reset during completion")
	default:
	}

	resp, err := s.client.CreateChatCompletion(s.ctx, req)
	if err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil
	}
	choice := resp.Choices[0]

	if choice.Message.Content != "" {
		select {
		case <-s.ctx.Done():
			return nil
		case outChan <- choice.Message.Content:
		}
	}

	for _, toolCall := range choice.Message.ToolCalls {
		select {
		case <-s.ctx.Done():
			return nil
		case toolInvocationChan <- s.convertToolCall(toolCall):
		}
	}
	return nil
}

func (s *OpenAILLMService) convertMessages(messages []core.LLMMessage) ([]openai.ChatCompletionMessage, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Message,
		}

		if msg.Media != nil && len(*msg.Media) > 0 {
			content := []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: msg.Message,
				},
			}

			for _, media := range *msg.Media {
				content = append(content, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: mediaDataURL(media),
					},
				})
			}

			m.MultiContent = content
			m.Content = "" // Content must be empty when MultiContent is set.
		}

		converted = append(converted, m)
	}

	return converted, nil
}

func (s *OpenAILLMService) convertTools(tools []core.LLMTool) ([]openai.Tool, error) {
	converted := make([]openai.Tool, 0, len(tools))

	for _, tool := range tools {
		parameters := make(map[string]interface{})
		properties := make(map[string]interface{})
		required := make([]string, 0)

		for _, param := range tool.Parameters {
			prop := map[string]interface{}{
				"type":        string(param.Type),
				"description": param.Description,
			}

			if param.Example != "" {
				prop["example"] = param.Example
			}

			properties[param.Name] = prop

			if param.Required {
				required = append(required, param.Name)
			}
		}

		parameters["type"] = "object"
		parameters["properties"] = properties
		if len(required) > 0 {
			parameters["required"] = required
		}

		paramsJSON, err := sonic.Marshal(parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal parameters: %w", err)
		}

		converted = append(converted, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.ToolId,
				Description: tool.Description,
				Parameters:  paramsJSON,
			},
		})
	}

	return converted, nil
}

func (s *OpenAILLMService) convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleUser:
		return openai.ChatMessageRoleUser
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case core.LLMMessageRoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func (s *OpenAILLMService) convertToolCall(toolCall openai.ToolCall) core.LLMToolCall {
	var parameters map[string]interface{}

	if toolCall.Function.Arguments != "" {
		err := sonic.Unmarshal([]byte(toolCall.Function.Arguments), &parameters)
		if err != nil {
			// Pass the raw arguments along rather than dropping the call.
			parameters = map[string]interface{}{
				"raw_arguments": toolCall.Function.Arguments,
			}
		}
	}

	return core.LLMToolCall{
		ToolId:     toolCall.Function.Name,
		Parameters: &parameters,
	}
}

func mediaDataURL(media core.LLMMedia) string {
	return fmt.Sprintf("data:%s;base64,%s",
		media.MediaType, base64.StdEncoding.EncodeToString(media.Data))
}
