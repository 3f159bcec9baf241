package flow

import "strings"

// interrupt identifies a global command that preempts the current state.
type interrupt int

const (
	interruptNone interrupt = iota
	interruptReset
	interruptContactInfo
	interruptHumanRequest
	interruptMenuReturn
)

var resetPhrases = []string{
	"reset", "reiniciar", "empezar de nuevo", "cancelar todo", "borrar todo",
}

var contactInfoPhrases = []string{
	"su telefono", "su teléfono", "numero de telefono", "número de teléfono",
	"que telefono", "qué teléfono", "horario de atencion", "horario de atención",
	"dias de atencion", "días de atención", "donde estan", "dónde están",
	"donde quedan", "dónde quedan", "como los contacto", "cómo los contacto",
	"como me comunico", "cómo me comunico",
}

// Multi-word phrases match anywhere in the message; single words only match
// the whole message, so field values that mention them don't trigger a handoff.
var humanRequestPhrases = []string{
	"hablar con una persona", "hablar con alguien", "hablar con un humano",
	"persona real", "atencion humana", "atención humana", "un humano",
}

var humanRequestWords = []string{
	"humano", "agente", "asesor", "operador", "representante",
}

var menuReturnPhrases = []string{
	"menu", "menú", "volver al menu", "volver al menú", "volver al inicio", "inicio",
}

// detectInterrupt checks the message against the global commands, in
// precedence order: reset, contact info, human request, menu return.
func detectInterrupt(text string) interrupt {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range resetPhrases {
		if t == p || strings.HasPrefix(t, p+" ") {
			return interruptReset
		}
	}
	for _, p := range contactInfoPhrases {
		if strings.Contains(t, p) {
			return interruptContactInfo
		}
	}
	for _, p := range humanRequestPhrases {
		if strings.Contains(t, p) {
			return interruptHumanRequest
		}
	}
	for _, w := range humanRequestWords {
		if t == w {
			return interruptHumanRequest
		}
	}
	for _, p := range menuReturnPhrases {
		if t == p {
			return interruptMenuReturn
		}
	}
	return interruptNone
}
