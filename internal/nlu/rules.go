package nlu

import (
	"context"
	"regexp"
	"strings"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// RuleEngine is the deterministic fallback: keyword matching for
// classification and region detection, heuristics for field extraction.
type RuleEngine struct{}

// NewRuleEngine creates the rule-based engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

var categoryKeywords = map[models.InquiryCategory][]string{
	models.CategoryQuote:          {"presupuesto", "cotizacion", "cotización", "cotizar", "precio", "costo"},
	models.CategoryTechnicalVisit: {"visita", "tecnico", "técnico", "tecnica", "técnica", "inspeccion", "inspección", "revision", "revisión"},
	models.CategoryUrgency:        {"urgencia", "urgente", "emergencia", "incendio", "ya mismo"},
	models.CategoryOther:          {"consulta", "pregunta", "informacion", "información", "otra"},
}

// ClassifyCategory matches menu numbers and keywords.
func (e *RuleEngine) ClassifyCategory(_ context.Context, text string) (models.InquiryCategory, bool, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "1":
		return models.CategoryQuote, true, nil
	case "2":
		return models.CategoryTechnicalVisit, true, nil
	case "3":
		return models.CategoryUrgency, true, nil
	case "4":
		return models.CategoryOther, true, nil
	}
	for _, cat := range []models.InquiryCategory{
		models.CategoryUrgency, models.CategoryQuote, models.CategoryTechnicalVisit, models.CategoryOther,
	} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(t, kw) {
				return cat, true, nil
			}
		}
	}
	return "", false, nil
}

var (
	extractEmailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// A street marker followed by a name and number, e.g. "Av. Corrientes 1234".
	streetMarkerRegex = regexp.MustCompile(`(?i)^(?:calle|av\.?|avda\.?|avenida|ruta|camino|diagonal|pasaje)\s+[a-z0-9áéíóúñ.\s]{2,}\d{1,5}`)
	// A bare "Name 123" segment, optionally followed by a locality.
	bareAddressRegex = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]*(?:\s[A-Za-zÁÉÍÓÚÑáéíóúñ.]+){0,3}\s\d{1,5}(?:,\s*[A-Za-zÁÉÍÓÚÑáéíóúñ\s]+)?$`)
)

var scheduleKeywords = []string{
	"lunes", "martes", "miercoles", "miércoles", "jueves", "viernes", "sabado", "sábado",
	"hs", "horas", "horario", "mañana", "tarde", "de 9", "de 8", "a 18", "a 17",
}

// ExtractFields segments the message and classifies each segment with
// cheap heuristics. Used for short messages and as the LLM fallback.
func (e *RuleEngine) ExtractFields(_ context.Context, text string) (map[string]string, error) {
	fields := make(map[string]string)

	if m := extractEmailRegex.FindString(text); m != "" {
		fields[models.FieldEmail] = m
	}

	var descriptionParts []string
	for _, segment := range splitSegments(text) {
		lower := strings.ToLower(segment)
		switch {
		case extractEmailRegex.MatchString(segment):
			// Already captured above; skip so it doesn't pollute the description.
		case fields[models.FieldVisitWindow] == "" && containsAny(lower, scheduleKeywords):
			fields[models.FieldVisitWindow] = segment
		case fields[models.FieldAddress] == "" && looksLikeAddress(segment):
			fields[models.FieldAddress] = segment
		default:
			descriptionParts = append(descriptionParts, segment)
		}
	}
	if len(descriptionParts) > 0 {
		desc := strings.Join(descriptionParts, ". ")
		if len(desc) >= 10 {
			fields[models.FieldDescription] = desc
		}
	}
	return fields, nil
}

func looksLikeAddress(segment string) bool {
	s := strings.TrimSpace(segment)
	return streetMarkerRegex.MatchString(s) || bareAddressRegex.MatchString(s)
}

// Street abbreviations whose trailing period must not end a sentence.
var streetAbbrevs = map[string]bool{
	"av": true, "avda": true, "gral": true, "dr": true, "dra": true,
	"sta": true, "nro": true,
}

// splitSegments cuts the message into one segment per line and per sentence.
// Sentences only end at a period followed by a space, so periods inside
// email addresses never split, and a period after a street abbreviation is
// kept with its street.
func splitSegments(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range splitSentences(line) {
			seg = strings.TrimSpace(strings.Trim(seg, " ,;."))
			if seg != "" {
				out = append(out, seg)
			}
		}
	}
	return out
}

func splitSentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line)-1; i++ {
		if line[i] != '.' || line[i+1] != ' ' {
			continue
		}
		words := strings.Fields(line[start:i])
		if len(words) > 0 && streetAbbrevs[strings.ToLower(words[len(words)-1])] {
			continue
		}
		out = append(out, line[start:i])
		start = i + 1
	}
	if start < len(line) {
		out = append(out, line[start:])
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var cabaSynonyms = []string{
	"caba", "capital federal", "capital", "ciudad autonoma", "ciudad autónoma",
	"microcentro", "palermo", "recoleta", "belgrano", "caballito", "flores",
	"almagro", "villa crespo", "san telmo", "la boca", "barracas", "boedo",
	"once", "retiro", "nuñez", "núñez", "devoto", "villa urquiza", "chacarita",
	"colegiales", "saavedra", "parque patricios", "pompeya", "mataderos",
	"liniers", "villa luro", "monserrat", "congreso", "tribunales", "abasto",
}

var provinciaSynonyms = []string{
	"provincia", "pba", "gba", "gran buenos aires", "zona norte", "zona sur",
	"zona oeste", "la plata", "quilmes", "avellaneda", "lanus", "lanús",
	"lomas de zamora", "banfield", "temperley", "adrogue", "adrogué",
	"moron", "morón", "castelar", "ituzaingo", "ituzaingó", "merlo", "moreno",
	"san justo", "ramos mejia", "ramos mejía", "haedo", "ciudadela",
	"san martin", "san martín", "vicente lopez", "vicente lópez", "olivos",
	"martinez", "martínez", "san isidro", "tigre", "pilar", "escobar",
	"san miguel", "hurlingham", "caseros", "tres de febrero", "berazategui",
	"florencio varela", "ezeiza", "canning", "monte grande",
}

// DetectRegion matches the address against neighborhood and locality
// synonyms. Confidence is 10 on a match and 0 otherwise.
func (e *RuleEngine) DetectRegion(_ context.Context, address string) (models.Region, int, error) {
	lower := strings.ToLower(address)
	for _, syn := range cabaSynonyms {
		if strings.Contains(lower, syn) {
			return models.RegionCABA, 10, nil
		}
	}
	for _, syn := range provinciaSynonyms {
		if strings.Contains(lower, syn) {
			return models.RegionProvincia, 10, nil
		}
	}
	return models.RegionUnknown, 0, nil
}
