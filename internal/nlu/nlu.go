// Package nlu provides text understanding for the chatbot: inquiry
// classification, contact field extraction, and address region detection.
//
// An OpenAI-backed engine does the heavy lifting; a deterministic rule-based
// engine serves as fallback so the bot keeps working without an API key or
// when the API misbehaves.
package nlu

import (
	"context"
	"log/slog"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// Minimum message length for attempting LLM bulk extraction. Shorter
// messages go straight to the rule-based parser.
const MinBulkExtractionLength = 20

// MinRegionConfidence is the confidence (0-10) an engine must report for a
// region guess to be accepted without asking the user.
const MinRegionConfidence = 7

// Engine understands free-form user text.
type Engine interface {
	// ClassifyCategory maps a message to an inquiry category. The bool
	// reports whether a confident match was found.
	ClassifyCategory(ctx context.Context, text string) (models.InquiryCategory, bool, error)

	// ExtractFields pulls contact fields out of a free-form message. Keys
	// are the models.Field* names; absent fields are absent keys.
	ExtractFields(ctx context.Context, text string) (map[string]string, error)

	// DetectRegion guesses whether an address is in CABA or Provincia,
	// with a 0-10 confidence.
	DetectRegion(ctx context.Context, address string) (models.Region, int, error)
}

// Resolver combines a primary engine with the rule-based fallback. Errors
// from the primary degrade to the fallback instead of failing the caller.
type Resolver struct {
	primary  Engine // may be nil
	fallback *RuleEngine
}

// NewResolver creates a resolver over the given primary engine. A nil
// primary means every call uses the rule-based engine directly.
func NewResolver(primary Engine) *Resolver {
	return &Resolver{primary: primary, fallback: NewRuleEngine()}
}

// ClassifyCategory tries the rule-based matcher first (menu words are cheap
// and unambiguous) and only then the primary engine.
func (r *Resolver) ClassifyCategory(ctx context.Context, text string) (models.InquiryCategory, bool) {
	if cat, ok, _ := r.fallback.ClassifyCategory(ctx, text); ok {
		return cat, true
	}
	if r.primary == nil {
		return "", false
	}
	cat, ok, err := r.primary.ClassifyCategory(ctx, text)
	if err != nil {
		slog.Warn("Resolver.ClassifyCategory: primary engine failed, no match", "error", err)
		return "", false
	}
	return cat, ok
}

// ExtractFields runs LLM extraction for long messages and falls back to the
// rule-based parser when the message is short, the engine fails, or the
// engine finds fewer than two fields.
func (r *Resolver) ExtractFields(ctx context.Context, text string) map[string]string {
	if r.primary == nil || len(text) <= MinBulkExtractionLength {
		fields, _ := r.fallback.ExtractFields(ctx, text)
		return fields
	}
	fields, err := r.primary.ExtractFields(ctx, text)
	if err != nil {
		slog.Warn("Resolver.ExtractFields: primary engine failed, using rule parser", "error", err)
		fields, _ = r.fallback.ExtractFields(ctx, text)
		return fields
	}
	if len(fields) < 2 {
		parsed, _ := r.fallback.ExtractFields(ctx, text)
		if len(parsed) > len(fields) {
			slog.Debug("Resolver.ExtractFields: rule parser found more fields", "llm", len(fields), "rules", len(parsed))
			return parsed
		}
	}
	return fields
}

// DetectRegion resolves the region of an address. Synonym matches are
// authoritative; the primary engine is only consulted when synonyms fail,
// and its answer is accepted only above MinRegionConfidence.
func (r *Resolver) DetectRegion(ctx context.Context, address string) models.Region {
	region, _, _ := r.fallback.DetectRegion(ctx, address)
	if region != models.RegionUnknown {
		return region
	}
	if r.primary == nil {
		return models.RegionUnknown
	}
	region, confidence, err := r.primary.DetectRegion(ctx, address)
	if err != nil {
		slog.Warn("Resolver.DetectRegion: primary engine failed", "error", err)
		return models.RegionUnknown
	}
	if confidence < MinRegionConfidence {
		slog.Debug("Resolver.DetectRegion: low confidence, asking the user", "region", region, "confidence", confidence)
		return models.RegionUnknown
	}
	return region
}
