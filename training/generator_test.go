package training

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
)

func TestGenerateFromTemplates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	examples := GenerateFromTemplates(200, rng)
	require.Len(t, examples, 200)

	qualified := 0
	for _, example := range examples {
		assert.NotEmpty(t, example.Input)
		if strings.Contains(example.Output, `"qualified": true`) {
			qualified++
			assert.NotContains(t, example.Output, `"budget": null`)
		} else {
			assert.Contains(t, example.Output, `"budget": null`)
		}
	}
	// Roughly two in three leads carry a budget.
	assert.Greater(t, qualified, 100)
	assert.Less(t, qualified, 180)
}

func TestFormatForTraining(t *testing.T) {
	record := FormatForTraining("extract leads", Example{
		Input:  "inquiry text",
		Output: `{"qualified": false}`,
	})

	require.Len(t, record.Conversations, 3)
	assert.Equal(t, "system", record.Conversations[0].Role)
	assert.Equal(t, "extract leads", record.Conversations[0].Content)
	assert.Equal(t, "inquiry text", record.UserText())
	assert.Equal(t, `{"qualified": false}`, record.AssistantText())
}

func TestDedupe(t *testing.T) {
	a := FormatForTraining("sys", Example{Input: "same input", Output: "{}"})
	b := FormatForTraining("sys", Example{Input: "same input", Output: "{}"})
	c := FormatForTraining("sys", Example{Input: "different input", Output: "{}"})

	out := Dedupe([]TrainingRecord{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, "same input", out[0].UserText())
	assert.Equal(t, "different input", out[1].UserText())
}

func TestQualityFilter(t *testing.T) {
	longEnough := strings.Repeat("we need a contractor ", 5)
	good := FormatForTraining("sys", Example{Input: longEnough, Output: `{"qualified": true}`})
	tooShort := FormatForTraining("sys", Example{Input: "hi", Output: `{"qualified": true}`})
	tooLong := FormatForTraining("sys", Example{Input: strings.Repeat("x", 2001), Output: `{}`})
	badJSON := FormatForTraining("sys", Example{Input: longEnough, Output: "not json"})

	out := QualityFilter([]TrainingRecord{good, tooShort, tooLong, badJSON})
	require.Len(t, out, 1)
	assert.Equal(t, longEnough, out[0].UserText())
}

func TestGeneratorTemplateOnly(t *testing.T) {
	gen := NewGenerator(Config{
		Count:        50,
		TemplateOnly: true,
		Seed:         7,
	}, nil, core.NewDevelopmentLogger())

	records, err := gen.Generate(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), 50)

	for _, record := range records {
		require.Len(t, record.Conversations, 3)
		assert.Equal(t, LeadExtractionSystemPrompt, record.Conversations[0].Content)
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	cfg := Config{Count: 30, TemplateOnly: true, Seed: 99}
	first, err := NewGenerator(cfg, nil, core.NewDevelopmentLogger()).Generate(context.Background())
	require.NoError(t, err)
	second, err := NewGenerator(cfg, nil, core.NewDevelopmentLogger()).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGeneratorSkipsFailingSeeds(t *testing.T) {
	llm := &fakeVariationLLM{err: assert.AnError}
	gen := NewGenerator(Config{Count: 20, Seed: 3}, llm, core.NewDevelopmentLogger())

	records, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestWriteJSONLAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.jsonl")

	gen := NewGenerator(Config{Count: 25, TemplateOnly: true, Seed: 11}, nil, core.NewDevelopmentLogger())
	records, err := gen.Generate(context.Background())
	require.NoError(t, err)

	require.NoError(t, WriteJSONL(path, records))
	require.NoError(t, Validate(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, len(records))
}

func TestValidateRejectsBadDatasets(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	assert.Error(t, Validate(write("empty.jsonl", "")))
	assert.Error(t, Validate(write("notjson.jsonl", "{broken\n")))
	assert.Error(t, Validate(write("tworoles.jsonl",
		`{"conversations":[{"role":"system","content":"a"},{"role":"user","content":"b"}]}`+"\n")))
	assert.Error(t, Validate(write("wrongorder.jsonl",
		`{"conversations":[{"role":"user","content":"a"},{"role":"system","content":"b"},{"role":"assistant","content":"c"}]}`+"\n")))
	assert.Error(t, Validate(write("emptycontent.jsonl",
		`{"conversations":[{"role":"system","content":"a"},{"role":"user","content":""},{"role":"assistant","content":"c"}]}`+"\n")))
	assert.Error(t, Validate(filepath.Join(dir, "missing.jsonl")))
}

func TestPreview(t *testing.T) {
	records := []TrainingRecord{
		FormatForTraining("s", Example{Input: "a", Output: "{}"}),
		FormatForTraining("s", Example{Input: "b", Output: "{}"}),
		FormatForTraining("s", Example{Input: "c", Output: "{}"}),
	}
	assert.Len(t, Preview(records, 2), 2)
	assert.Len(t, Preview(records, 10), 3)
}
