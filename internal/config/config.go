// Package config loads the company profile that parameterizes the chatbot:
// names, contact phones, business hours, lead delivery addresses, and the
// handoff tuning knobs.
//
// Resolution order: built-in defaults, then an optional YAML profile file,
// then environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/util"
)

// Default handoff tuning values, in minutes.
const (
	DefaultHandoffTTLMinutes    = 120
	DefaultSurveyOfferMinutes   = 10
	DefaultSurveyAbandonMinutes = 30
	DefaultResolutionMinutes    = 15
)

// CompanyProfile parameterizes the bot for one company.
type CompanyProfile struct {
	Key           string   `yaml:"key"`
	CompanyName   string   `yaml:"company_name"`
	BotName       string   `yaml:"bot_name"`
	ContactPhones []string `yaml:"contact_phones"`
	BusinessHours string   `yaml:"business_hours"`

	LeadEmailTo   string `yaml:"lead_email_to"`
	LeadEmailFrom string `yaml:"lead_email_from"`

	// AgentNumber is the WhatsApp number of the human agent.
	AgentNumber string `yaml:"agent_number"`

	SurveyEnabled bool `yaml:"survey_enabled"`

	// Sweep windows, in minutes.
	HandoffTTLMinutes    int `yaml:"handoff_ttl_minutes"`
	SurveyOfferMinutes   int `yaml:"survey_offer_minutes"`
	SurveyAbandonMinutes int `yaml:"survey_abandon_minutes"`
	ResolutionMinutes    int `yaml:"resolution_minutes"`
}

// defaultProfile is the built-in Argenfuego profile.
func defaultProfile() CompanyProfile {
	return CompanyProfile{
		Key:                  "argenfuego",
		CompanyName:          "Argenfuego",
		BotName:              "Eva",
		ContactPhones:        []string{"011-4567-8900"},
		BusinessHours:        "lunes a viernes de 9 a 18 hs",
		HandoffTTLMinutes:    DefaultHandoffTTLMinutes,
		SurveyOfferMinutes:   DefaultSurveyOfferMinutes,
		SurveyAbandonMinutes: DefaultSurveyAbandonMinutes,
		ResolutionMinutes:    DefaultResolutionMinutes,
	}
}

// Load builds the company profile from defaults, the optional YAML file at
// path (empty path skips the file), and environment overrides.
func Load(path string) (CompanyProfile, error) {
	profile := defaultProfile()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return profile, fmt.Errorf("failed to read company profile %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return profile, fmt.Errorf("failed to parse company profile %s: %w", path, err)
		}
		slog.Debug("Config.Load: company profile file applied", "path", path, "key", profile.Key)
	}

	applyEnvOverrides(&profile)

	if profile.HandoffTTLMinutes <= 0 {
		profile.HandoffTTLMinutes = DefaultHandoffTTLMinutes
	}
	if profile.SurveyOfferMinutes <= 0 {
		profile.SurveyOfferMinutes = DefaultSurveyOfferMinutes
	}
	if profile.SurveyAbandonMinutes <= 0 {
		profile.SurveyAbandonMinutes = DefaultSurveyAbandonMinutes
	}
	if profile.ResolutionMinutes <= 0 {
		profile.ResolutionMinutes = DefaultResolutionMinutes
	}

	slog.Debug("Config.Load: company profile ready",
		"key", profile.Key,
		"bot", profile.BotName,
		"survey_enabled", profile.SurveyEnabled,
		"handoff_ttl_minutes", profile.HandoffTTLMinutes)
	return profile, nil
}

func applyEnvOverrides(p *CompanyProfile) {
	if v := os.Getenv("COMPANY_NAME"); v != "" {
		p.CompanyName = v
	}
	if v := os.Getenv("BOT_NAME"); v != "" {
		p.BotName = v
	}
	if v := os.Getenv("CONTACT_PHONES"); v != "" {
		var phones []string
		for _, phone := range strings.Split(v, ",") {
			if phone = strings.TrimSpace(phone); phone != "" {
				phones = append(phones, phone)
			}
		}
		if len(phones) > 0 {
			p.ContactPhones = phones
		}
	}
	if v := os.Getenv("BUSINESS_HOURS"); v != "" {
		p.BusinessHours = v
	}
	if v := os.Getenv("LEAD_EMAIL_TO"); v != "" {
		p.LeadEmailTo = v
	}
	if v := os.Getenv("LEAD_EMAIL_FROM"); v != "" {
		p.LeadEmailFrom = v
	}
	if v := os.Getenv("AGENT_WHATSAPP_NUMBER"); v != "" {
		p.AgentNumber = v
	}
	p.SurveyEnabled = util.ParseBoolEnv("SURVEY_ENABLED", p.SurveyEnabled)
	p.HandoffTTLMinutes = parseIntEnv("HANDOFF_TTL_MINUTES", p.HandoffTTLMinutes)
	p.SurveyOfferMinutes = parseIntEnv("SURVEY_OFFER_MINUTES", p.SurveyOfferMinutes)
	p.SurveyAbandonMinutes = parseIntEnv("SURVEY_ABANDON_MINUTES", p.SurveyAbandonMinutes)
	p.ResolutionMinutes = parseIntEnv("RESOLUTION_MINUTES", p.ResolutionMinutes)
}

func parseIntEnv(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		slog.Warn("Config: invalid integer value, using default", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}
	return n
}
