package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"vocalis/core"
	groq "vocalis/services/groq"
)

func main() {
	var (
		imageURL  string
		audioPath string
		speechOut string
	)
	flag.StringVar(&imageURL, "image", "", "image URL for the vision demo (skipped when empty)")
	flag.StringVar(&audioPath, "audio", "", "audio file for the transcription demo (skipped when empty)")
	flag.StringVar(&speechOut, "speech-out", "", "write synthesized speech WAV here (skipped when empty)")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file found")
	}
	logger := core.GetLogger()

	client, err := groq.NewClient(os.Getenv("GROQ_API_KEY"), logger)
	if err != nil {
		logger.Fatal("failed to create client", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 1. Chat completion.
	chat, err := client.ChatCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Explain what a heat pump does in two sentences."},
	})
	report("chat", err, func() { fmt.Println(chat.Text) })

	// 2. Streaming chat.
	chunks := make(chan string, 16)
	go func() {
		for chunk := range chunks {
			fmt.Print(chunk)
		}
		fmt.Println()
	}()
	err = client.StreamChatCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Count from one to five, one word per line."},
	}, chunks)
	report("stream", err, nil)

	// 3. Vision.
	if imageURL != "" {
		vision, err := client.AnalyzeImage(ctx, "Describe this image in one sentence.", imageURL)
		report("vision", err, func() { fmt.Println(vision.Text) })
	}

	// 4. Transcription.
	if audioPath != "" {
		transcript, err := client.Transcribe(ctx, audioPath)
		report("transcribe", err, func() { fmt.Println(transcript.Text) })
	}

	// 5. Speech synthesis.
	if speechOut != "" {
		audio, err := client.Synthesize(ctx, "Hello from the speech synthesis demo.", "")
		report("synthesize", err, func() {
			if err := os.WriteFile(speechOut, audio, 0o644); err != nil {
				logger.Error("failed to write speech file", "error", err)
				return
			}
			fmt.Printf("wrote %d bytes to %s\n", len(audio), speechOut)
		})
	}

	// 6. Tool calling.
	weatherTool := openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "get_weather",
			Description: "Get the current weather for a city.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{"type": "string"},
				},
				"required": []string{"city"},
			},
		},
	}
	tooled, err := client.ChatWithTools(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "What's the weather in Austin right now?"},
	}, []openai.Tool{weatherTool}, func(ctx context.Context, name, arguments string) (string, error) {
		return `{"city": "Austin", "temp_f": 74, "conditions": "sunny"}`, nil
	})
	report("tools", err, func() { fmt.Println(tooled.Text) })

	// 7. Reasoning with parsed think blocks.
	reasoned, err := client.Reason(ctx, "A train travels 60 miles in 45 minutes. What is its speed in mph?", groq.ReasoningParsed)
	report("reason", err, func() {
		fmt.Printf("reasoning: %.120s...\nanswer: %s\n", reasoned.Reasoning, reasoned.Answer)
	})

	// 8. Web-search-backed chat.
	searched, err := client.SearchChat(ctx, "What did the most recent ASHRAE standard update change?")
	report("search", err, func() {
		fmt.Println(searched.Text)
		if len(searched.Tools) > 0 {
			fmt.Println("tools used:", searched.Tools)
		}
	})
}

func report(name string, err error, onSuccess func()) {
	fmt.Printf("\n=== %s ===\n", name)
	if err != nil {
		fmt.Printf("failed: %v\n", err)
		return
	}
	if onSuccess != nil {
		onSuccess()
	}
}
