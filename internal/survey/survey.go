// Package survey implements the post-handoff satisfaction survey: the offer,
// the question sequence, and answer parsing.
package survey

import (
	"strings"
)

// Questions are asked in order after the user accepts the survey offer.
var Questions = []string{
	"1️⃣ ¿Pudimos resolver tu consulta?\n\n1. Sí\n2. No",
	"2️⃣ ¿Te atendimos con amabilidad?\n\n1. Sí\n2. No",
	"3️⃣ ¿Volverías a usar este canal de atención?\n\n1. Sí\n2. No",
}

// Offer is the survey invitation sent when the agent finishes.
const Offer = "🙌 ¡Gracias por contactarnos!\n\n¿Te gustaría responder una breve encuesta de 3 preguntas sobre la atención? Respondé *sí* o *no*."

// Thanks closes a completed survey.
const Thanks = "💚 ¡Muchas gracias por tu tiempo! Tus respuestas nos ayudan a mejorar."

// Goodbye closes a declined survey or an unclear answer to the offer.
const Goodbye = "¡Gracias por contactarnos! Que tengas un buen día. 👋"

var yesTokens = []string{"si", "sí", "s", "1", "yes", "dale", "ok", "claro", "obvio", "por supuesto"}
var noTokens = []string{"no", "n", "2", "nop", "negativo"}

// ParseYesNo interprets a yes/no answer. The second result reports whether
// the text was understood at all.
func ParseYesNo(text string) (yes bool, ok bool) {
	t := normalize(text)
	for _, tok := range yesTokens {
		if t == tok {
			return true, true
		}
	}
	for _, tok := range noTokens {
		if t == tok {
			return false, true
		}
	}
	return false, false
}

// NormalizeAnswer converts a survey answer into the archived form:
// "si"/"no" when parseable, the trimmed raw text otherwise.
func NormalizeAnswer(text string) string {
	if yes, ok := ParseYesNo(text); ok {
		if yes {
			return "si"
		}
		return "no"
	}
	return strings.TrimSpace(text)
}

func normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(t, "!.¡")
}
