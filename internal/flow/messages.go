// Package flow implements the conversation state machine that guides a
// WhatsApp user through lead data collection and human handoff.
package flow

import (
	"fmt"
	"strings"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/plan"
)

// categoryLabels are the human names used in menus and lead summaries.
var categoryLabels = map[models.InquiryCategory]string{
	models.CategoryQuote:          "Presupuesto",
	models.CategoryTechnicalVisit: "Visita técnica",
	models.CategoryUrgency:        "Urgencia",
	models.CategoryOther:          "Otras consultas",
}

// CategoryLabel returns the display name of a category.
func CategoryLabel(c models.InquiryCategory) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func greetingMessage(p config.CompanyProfile) string {
	return fmt.Sprintf(
		"¡Hola! 👋 Soy %s, la asistente virtual de %s.\n\n¿En qué podemos ayudarte?\n\n"+
			"1️⃣ Presupuesto\n2️⃣ Visita técnica\n3️⃣ Urgencia\n4️⃣ Otras consultas\n\n"+
			"Respondé con el número de la opción.",
		p.BotName, p.CompanyName)
}

func menuRetryMessage() string {
	return "No entendí tu respuesta 😅. Elegí una opción del 1 al 4:\n\n" +
		"1️⃣ Presupuesto\n2️⃣ Visita técnica\n3️⃣ Urgencia\n4️⃣ Otras consultas"
}

func urgencyMessage(p config.CompanyProfile) string {
	return fmt.Sprintf(
		"🚨 Para urgencias llamanos ahora mismo:\n\n📞 %s\n\nNuestro horario de atención es %s. ¡Te esperamos!",
		strings.Join(p.ContactPhones, "\n📞 "), p.BusinessHours)
}

func contactInfoMessage(p config.CompanyProfile) string {
	return fmt.Sprintf(
		"📞 Nuestros teléfonos: %s\n🕐 Horario de atención: %s",
		strings.Join(p.ContactPhones, " / "), p.BusinessHours)
}

func bulkPromptMessage() string {
	return "Para avanzar necesitamos algunos datos. Podés mandarlos todos juntos en un solo mensaje:\n\n" +
		"📧 Email\n📍 Dirección\n🕐 Días y horarios de visita\n📝 Qué necesitás"
}

func locationQuestionMessage(address string) string {
	return fmt.Sprintf(
		"📍 Sobre la dirección *%s*, ¿está en CABA o en Provincia de Buenos Aires?\n\n1. CABA\n2. Provincia",
		address)
}

func locationRetryMessage() string {
	return "Respondé *1* para CABA o *2* para Provincia de Buenos Aires."
}

func confirmationMessage(conv *models.Conversation, p plan.Plan) string {
	var b strings.Builder
	b.WriteString("✅ Estos son los datos que registramos:\n\n")
	b.WriteString(fmt.Sprintf("🗂 Motivo: %s\n", CategoryLabel(conv.Category)))
	for _, f := range p.Fields {
		value := conv.Contact.Field(f.Name)
		if value == plan.SkippedSentinel {
			value = "no informado"
		}
		b.WriteString(fmt.Sprintf("• %s: %s\n", f.Label, value))
	}
	b.WriteString("\n¿Está todo bien? Respondé *sí* para enviar o *no* para corregir.")
	return b.String()
}

func confirmRetryMessage() string {
	return "Respondé *sí* para enviar los datos o *no* para corregir algo."
}

func correctionMenuMessage(p plan.Plan) string {
	var b strings.Builder
	b.WriteString("¿Qué dato querés corregir?\n\n")
	for i, f := range p.Fields {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Label))
	}
	b.WriteString(fmt.Sprintf("%d. Todo de nuevo", len(p.Fields)+1))
	return b.String()
}

func correctionRetryMessage(p plan.Plan) string {
	return fmt.Sprintf("Elegí una opción del 1 al %d.", len(p.Fields)+1)
}

func correctionFieldPrompt(f plan.FieldSpec) string {
	return fmt.Sprintf("✏️ Ingresá el nuevo valor para *%s*:", f.Label)
}

// LeadSentMessage confirms the lead went out. The bot sends it once the
// submission actually succeeded, not when the user confirms.
func LeadSentMessage(p config.CompanyProfile) string {
	return fmt.Sprintf(
		"🎉 ¡Listo! Recibimos tu consulta y el equipo de %s se va a contactar a la brevedad.\n\n¡Gracias por escribirnos! 👋",
		p.CompanyName)
}

func handoffEnqueuedMessage(position int) string {
	if position <= 1 {
		return "🧑‍💼 Te estamos conectando con una persona del equipo. ¡Un momento por favor!"
	}
	return fmt.Sprintf(
		"🧑‍💼 Te vamos a conectar con una persona del equipo.\n\nHay %d consulta(s) antes que la tuya. Te avisamos apenas te toque.",
		position-1)
}

// HandoffEnqueuedMessage is the user-facing reply after entering the queue.
func HandoffEnqueuedMessage(position int) string {
	return handoffEnqueuedMessage(position)
}

// HandoffActiveMessage tells the user the agent is with them now.
const HandoffActiveMessage = "🧑‍💼 ¡Ya estás con una persona del equipo! Contanos en qué te ayudamos."

func resetMessage(p config.CompanyProfile) string {
	return "🔄 Empecemos de nuevo.\n\n" + greetingMessage(p)
}

func resolutionQuestionMessage() string {
	return "🧑‍💼 ¿Pudimos resolver tu consulta? Respondé *sí* o *no*."
}

func resolutionYesMessage() string {
	return "¡Qué bueno! Gracias por contactarnos. 👋"
}

func resolutionNoMessage() string {
	return "Entendido, te seguimos atendiendo. 🧑‍💼"
}
