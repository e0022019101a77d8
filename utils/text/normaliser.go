package text

import (
	"regexp"
	"strings"
)

// NormalizeForSpeech strips formatting that reads badly when synthesized:
// markdown markers, emoji, and runs of whitespace. The TTS handler runs every
// sentence through this before buffering it to the synthesizer.
func NormalizeForSpeech(text string) string {
	text = markdownReplacer.Replace(text)
	text = emojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var markdownReplacer = strings.NewReplacer(
	"**", "",
	"*", "",
	"__", "",
	"~~", "",
	"`", "",
	"#", "",
)

var (
	// Anything outside letters, numbers, punctuation, and separators.
	emojiRegex          = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
