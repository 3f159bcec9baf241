// Package validate implements syntactic validation of contact fields.
package validate

import (
	"regexp"
	"strings"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// Minimum lengths per field, matching what the lead intake requires.
const (
	MinEmailLength       = 5
	MinAddressLength     = 3
	MinVisitWindowLength = 5
	MinDescriptionLength = 10
)

var emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// FieldError describes why one field failed validation.
type FieldError struct {
	Field   string
	Message string // Spanish, user-facing
}

// Field checks a single field value and returns "" when valid, or the
// user-facing problem description when not. Values are trimmed first.
func Field(name, value string) string {
	value = strings.TrimSpace(value)
	switch name {
	case models.FieldEmail:
		if len(value) < MinEmailLength || !emailRegex.MatchString(value) {
			return "El email no parece válido. Ejemplo: nombre@empresa.com"
		}
	case models.FieldAddress:
		if len(value) < MinAddressLength {
			return "La dirección es demasiado corta. Incluí calle y número."
		}
	case models.FieldVisitWindow:
		if len(value) < MinVisitWindowLength {
			return "Contanos un poco más sobre los días y horarios disponibles."
		}
	case models.FieldDescription:
		if len(value) < MinDescriptionLength {
			return "La descripción es demasiado corta. Contanos un poco más de detalle."
		}
	default:
		return "Campo desconocido."
	}
	return ""
}

// Fields validates every provided field and returns all failures, in the
// order given by fieldOrder. Fields not present in values are skipped.
func Fields(values map[string]string, fieldOrder []string) []FieldError {
	var errs []FieldError
	for _, name := range fieldOrder {
		value, ok := values[name]
		if !ok {
			continue
		}
		if msg := Field(name, value); msg != "" {
			errs = append(errs, FieldError{Field: name, Message: msg})
		}
	}
	return errs
}

// Clean trims a raw user value. It returns the cleaned value and whether
// anything usable remains.
func Clean(value string) (string, bool) {
	value = strings.TrimSpace(value)
	return value, value != ""
}
