package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "We open at nine.", "We open at nine."},
		{"bold and italics stripped", "**Great** news, *really* great.", "Great news, really great."},
		{"headers and code stripped", "# Heading with `code`", "Heading with code"},
		{"strikethrough and underline stripped", "~~old~~ __new__ price", "old new price"},
		{"emoji removed", "See you soon \U0001F600!", "See you soon !"},
		{"whitespace collapsed", "too   many\n\nspaces", "too many spaces"},
		{"leading and trailing trimmed", "  padded  ", "padded"},
		{"empty input", "", ""},
		{"accents preserved", "Perdón, ¿podrías repetirlo?", "Perdón, ¿podrías repetirlo?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeForSpeech(tt.in))
		})
	}
}
