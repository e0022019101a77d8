package reward

import (
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// ExtractCodeBlock returns the first fenced code block tagged with the given
// language, or "" when none is present. An empty language matches any fence.
func ExtractCodeBlock(text, language string) string {
	pattern := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(language) + "\\s*(.*?)\\s*```")
	if m := pattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// SyntaxValid gives +1.0 when the completion's code parses. The code is taken
// from a go-tagged fence, then any fence, then the answer tag. Snippets
// without a package clause get wrapped before parsing so bare declarations
// and statement lists both count.
func SyntaxValid(sample Sample) float64 {
	code := ExtractCodeBlock(sample.Completion, "go")
	if code == "" {
		code = ExtractCodeBlock(sample.Completion, "")
	}
	if code == "" {
		code = ExtractAnswer(sample.Completion)
	}
	if code == "" {
		return 0
	}
	if parsesAsGo(code) {
		return 1.0
	}
	return 0
}

func parsesAsGo(code string) bool {
	candidates := []string{code}
	if !strings.HasPrefix(strings.TrimSpace(code), "package ") {
		candidates = []string{
			"package main\n\n" + code,
			"package main\n\nfunc _() {\n" + code + "\n}\n",
		}
	}
	for _, candidate := range candidates {
		fset := token.NewFileSet()
		if _, err := parser.ParseFile(fset, "", candidate, 0); err == nil {
			return true
		}
	}
	return false
}
