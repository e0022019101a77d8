package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCodeBlock(t *testing.T) {
	text := "Here you go:\n```go\nfunc Add(a, b int) int { return a + b }\n```\ndone."
	assert.Equal(t, "func Add(a, b int) int { return a + b }", ExtractCodeBlock(text, "go"))
	assert.Equal(t, "", ExtractCodeBlock(text, "python"))

	untagged := "```\nx := 1\n```"
	assert.Equal(t, "x := 1", ExtractCodeBlock(untagged, ""))

	assert.Equal(t, "", ExtractCodeBlock("no fences here", "go"))
}

func TestSyntaxValid(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       float64
	}{
		{
			"declaration in go fence",
			"```go\nfunc Add(a, b int) int { return a + b }\n```",
			1.0,
		},
		{
			"full file with package clause",
			"```go\npackage main\n\nfunc main() {}\n```",
			1.0,
		},
		{
			"bare statements in untagged fence",
			"```\nx := 1\ny := x + 2\n_ = y\n```",
			1.0,
		},
		{
			"broken code",
			"```go\nfunc Add(a, b int int { return a + b\n```",
			0.0,
		},
		{
			"answer tag fallback",
			"<answer>var Limit = 10</answer>",
			1.0,
		},
		{
			"plain prose",
			"The answer is to add the numbers together carefully",
			0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SyntaxValid(Sample{Completion: tt.completion}))
		})
	}
}
