// Package plan defines which contact fields each inquiry category collects,
// in what order, and with which prompts.
package plan

import (
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// FieldSpec describes one field of a collection plan.
type FieldSpec struct {
	Name     string // contact field name, see models.Field* constants
	Prompt   string // question sent when asking for this field
	Label    string // short label used in confirmation and correction menus
	Optional bool   // the user may skip this field with SkipWord
	SkipWord string // word that skips an optional field
}

// Plan is the ordered list of fields a category collects.
type Plan struct {
	Category models.InquiryCategory
	Fields   []FieldSpec
	// BulkEntry selects free-form collection as the entry mode: the user is
	// asked for everything at once and missing fields are collected one by
	// one afterwards. When false, collection is sequential from the start.
	BulkEntry bool
}

var plans = map[models.InquiryCategory]Plan{
	models.CategoryQuote: {
		Category: models.CategoryQuote,
		Fields:   fullFields,
	},
	models.CategoryTechnicalVisit: {
		Category: models.CategoryTechnicalVisit,
		Fields:   fullFields,
		// Visit requests tend to arrive as one message describing the
		// problem, the address and the availability, so ask for everything
		// at once and chase only what is missing.
		BulkEntry: true,
	},
	models.CategoryOther: {
		Category: models.CategoryOther,
		Fields: []FieldSpec{
			{
				Name:     models.FieldEmail,
				Prompt:   "📧 ¿Cuál es tu email de contacto?\n\nSi preferís que te contactemos solo por WhatsApp, escribí *omitir*.",
				Label:    "Email",
				Optional: true,
				SkipWord: "omitir",
			},
			{
				Name:   models.FieldDescription,
				Prompt: "📝 Contanos en qué te podemos ayudar.",
				Label:  "Consulta",
			},
		},
	},
}

var fullFields = []FieldSpec{
	{
		Name:   models.FieldEmail,
		Prompt: "📧 ¿Cuál es tu email de contacto?",
		Label:  "Email",
	},
	{
		Name:   models.FieldAddress,
		Prompt: "📍 ¿Cuál es la dirección donde se realizaría el trabajo?",
		Label:  "Dirección",
	},
	{
		Name:   models.FieldVisitWindow,
		Prompt: "🕐 ¿En qué días y horarios podríamos visitarte?",
		Label:  "Horario de visita",
	},
	{
		Name:   models.FieldDescription,
		Prompt: "📝 Contanos brevemente qué necesitás (equipos, cantidad, estado, etc.).",
		Label:  "Descripción",
	},
}

// For returns the plan for a category. The second result is false for
// categories that collect nothing (urgency has no plan).
func For(category models.InquiryCategory) (Plan, bool) {
	p, ok := plans[category]
	return p, ok
}

// Field returns the spec for the named field within the plan.
func (p Plan) Field(name string) (FieldSpec, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the plan's field names in collection order.
func (p Plan) FieldNames() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	return names
}

// Missing returns, in plan order, the fields that have no value yet.
// Optional fields count as missing until filled or explicitly skipped;
// skipped fields must be recorded by the caller via the skip sentinel.
func (p Plan) Missing(contact *models.ContactRecord) []string {
	var missing []string
	for _, f := range p.Fields {
		if contact.Field(f.Name) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// IsLast reports whether name is the final field of the plan.
func (p Plan) IsLast(name string) bool {
	if len(p.Fields) == 0 {
		return false
	}
	return p.Fields[len(p.Fields)-1].Name == name
}

// SkippedSentinel is stored in an optional field the user chose to skip, so
// Missing stops asking for it. It is rendered as "no informado" to humans.
const SkippedSentinel = "-"
