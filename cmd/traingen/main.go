package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"vocalis/core"
	groq "vocalis/services/groq"
	"vocalis/training"
)

func main() {
	var (
		outPath      string
		count        int
		templateOnly bool
		previewN     int
		validatePath string
		xlsxPath     string
	)
	flag.StringVar(&outPath, "out", "dataset.jsonl", "output JSONL path")
	flag.IntVar(&count, "count", 100, "target dataset size")
	flag.BoolVar(&templateOnly, "template-only", false, "skip LLM variation generation")
	flag.IntVar(&previewN, "preview", 0, "print the first N records instead of writing")
	flag.StringVar(&validatePath, "validate", "", "validate an existing JSONL dataset and exit")
	flag.StringVar(&xlsxPath, "xlsx", "", "also export a review spreadsheet to this path")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file found")
	}
	logger := core.GetLogger()

	if validatePath != "" {
		if err := training.Validate(validatePath); err != nil {
			logger.Fatal("dataset invalid", "error", err)
		}
		fmt.Printf("%s is valid\n", validatePath)
		return
	}

	var llm training.VariationLLM
	if !templateOnly {
		client, err := groq.NewClient(os.Getenv("GROQ_API_KEY"), logger)
		if err != nil {
			logger.Warn("no LLM available, falling back to templates only", "error", err)
		} else {
			llm = client
		}
	}

	generator := training.NewGenerator(training.Config{
		Count:        count,
		TemplateOnly: templateOnly,
	}, llm, logger)

	records, err := generator.Generate(context.Background())
	if err != nil {
		logger.Fatal("generation failed", "error", err)
	}

	if previewN > 0 {
		for i, record := range training.Preview(records, previewN) {
			fmt.Printf("--- record %d ---\n", i+1)
			for _, message := range record.Conversations {
				fmt.Printf("[%s] %s\n", message.Role, message.Content)
			}
		}
		return
	}

	if err := training.WriteJSONL(outPath, records); err != nil {
		logger.Fatal("failed to write dataset", "error", err)
	}
	logger.Info("dataset written", "path", outPath, "records", len(records))

	if xlsxPath != "" {
		if err := training.ExportXLSX(xlsxPath, records); err != nil {
			logger.Fatal("failed to export spreadsheet", "error", err)
		}
		logger.Info("review spreadsheet written", "path", xlsxPath)
	}
}
