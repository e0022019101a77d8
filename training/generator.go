package training

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"

	"github.com/bytedance/sonic"

	"vocalis/core"
)

// Config controls one generation run.
type Config struct {
	// Count is the target dataset size.
	Count int
	// VariationsPerSeed is how many LLM variations to request per seed.
	// Ignored when TemplateOnly is set or no LLM is configured.
	VariationsPerSeed int
	// TemplateOnly skips the LLM variation step.
	TemplateOnly bool
	// Seed seeds the shuffle and template RNG. Zero means nondeterministic.
	Seed int64
}

// Generator assembles a training dataset from seeds, LLM variations, and
// domain templates.
type Generator struct {
	config Config
	llm    VariationLLM
	logger *core.Logger
	rng    *rand.Rand
}

func NewGenerator(config Config, llm VariationLLM, logger *core.Logger) *Generator {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Count <= 0 {
		config.Count = 100
	}
	if config.VariationsPerSeed <= 0 {
		config.VariationsPerSeed = 5
	}
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewSource(config.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Generator{
		config: config,
		llm:    llm,
		logger: logger,
		rng:    rng,
	}
}

// Generate runs the full pipeline: seeds, variations, templates, formatting,
// dedupe, quality filter, shuffle.
func (g *Generator) Generate(ctx context.Context) ([]TrainingRecord, error) {
	examples := SeedExamples()

	if !g.config.TemplateOnly && g.llm != nil {
		for _, seed := range SeedExamples() {
			variations, err := GenerateVariations(ctx, g.llm, seed, g.config.VariationsPerSeed)
			if err != nil {
				g.logger.Warn("variation generation failed for seed, continuing", "error", err)
				continue
			}
			examples = append(examples, variations...)
		}
	}

	if missing := g.config.Count - len(examples); missing > 0 {
		examples = append(examples, GenerateFromTemplates(missing, g.rng)...)
	}

	records := make([]TrainingRecord, 0, len(examples))
	for _, example := range examples {
		records = append(records, FormatForTraining(LeadExtractionSystemPrompt, example))
	}

	before := len(records)
	records = Dedupe(records)
	records = QualityFilter(records)
	g.logger.Info("dataset assembled",
		"raw", before, "after_filters", len(records))

	g.rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	if len(records) > g.config.Count {
		records = records[:g.config.Count]
	}
	return records, nil
}

// Dedupe drops records whose user+assistant text already appeared.
func Dedupe(records []TrainingRecord) []TrainingRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, record := range records {
		sum := md5.Sum([]byte(record.UserText() + record.AssistantText()))
		key := hex.EncodeToString(sum[:])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, record)
	}
	return out
}

// QualityFilter keeps records whose assistant text parses as JSON and whose
// user text length is in [50, 2000].
func QualityFilter(records []TrainingRecord) []TrainingRecord {
	out := records[:0:0]
	for _, record := range records {
		userLen := len(record.UserText())
		if userLen < 50 || userLen > 2000 {
			continue
		}
		var parsed map[string]any
		if err := sonic.Unmarshal([]byte(record.AssistantText()), &parsed); err != nil {
			continue
		}
		out = append(out, record)
	}
	return out
}

// WriteJSONL writes one record per line.
func WriteJSONL(path string, records []TrainingRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, record := range records {
		line, err := sonic.Marshal(record)
		if err != nil {
			return fmt.Errorf("write dataset: marshal record: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
	}
	return w.Flush()
}

// Preview returns up to n records for inspection.
func Preview(records []TrainingRecord, n int) []TrainingRecord {
	if len(records) <= n {
		return records
	}
	return records[:n]
}

// Validate checks an existing JSONL dataset: every line parses, every record
// is a system/user/assistant triple in that order with non-empty content.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}
	defer f.Close()

	wantRoles := []string{"system", "user", "assistant"}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var record TrainingRecord
		if err := sonic.Unmarshal(scanner.Bytes(), &record); err != nil {
			return fmt.Errorf("validate dataset: line %d: %w", lineNo, err)
		}
		if len(record.Conversations) != len(wantRoles) {
			return fmt.Errorf("validate dataset: line %d: expected %d messages, got %d",
				lineNo, len(wantRoles), len(record.Conversations))
		}
		for i, message := range record.Conversations {
			if message.Role != wantRoles[i] {
				return fmt.Errorf("validate dataset: line %d: message %d has role %q, want %q",
					lineNo, i, message.Role, wantRoles[i])
			}
			if message.Content == "" {
				return fmt.Errorf("validate dataset: line %d: message %d is empty", lineNo, i)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}
	if lineNo == 0 {
		return fmt.Errorf("validate dataset: file is empty")
	}
	return nil
}
