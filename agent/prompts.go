package agent

// System prompts and spoken error messages, keyed by language. Spanish
// covers the es voice presets; everything else falls back to English.

const systemPromptEN = `You are a helpful voice assistant on a phone call.
Keep responses short and conversational: one to three sentences, no lists,
no markdown, no emojis. Spell out numbers and abbreviations the way a
person would say them aloud. If you did not understand the caller, ask
them to repeat themselves.`

const systemPromptES = `Eres un asistente de voz en una llamada telefónica.
Mantén las respuestas cortas y conversacionales: de una a tres frases, sin
listas, sin markdown, sin emojis. Pronuncia los números y abreviaturas como
lo haría una persona al hablar. Si no entendiste a la persona, pídele que
lo repita.`

const errorMessageEN = "Sorry, I ran into a problem. Could you say that again?"
const errorMessageES = "Perdón, tuve un problema. ¿Podrías repetirlo?"

// DefaultSystemPrompt returns the conversational system prompt for a
// language code.
func DefaultSystemPrompt(language string) string {
	if language == "es" {
		return systemPromptES
	}
	return systemPromptEN
}

// SpokenErrorMessage is what the agent says aloud when generation fails.
func SpokenErrorMessage(language string) string {
	if language == "es" {
		return errorMessageES
	}
	return errorMessageEN
}
