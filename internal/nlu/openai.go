package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// chatCompleter is the minimal slice of the OpenAI client the engine needs.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the OpenAI engine.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the OpenAI engine.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// OpenAIEngine implements Engine on top of the OpenAI chat completions API.
type OpenAIEngine struct {
	chat  chatCompleter
	model openai.ChatModel
}

// NewOpenAIEngine creates the engine, falling back to OPENAI_API_KEY from
// the environment when no key option is given.
func NewOpenAIEngine(opts ...Option) (*OpenAIEngine, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("NLU OpenAI engine configured", "model", cfg.Model)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIEngine{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

func (e *OpenAIEngine) complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	resp, err := e.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

const classifySystemPrompt = `Sos un clasificador de consultas para una empresa de seguridad contra incendios.
Clasificá el mensaje del usuario en una de estas categorías:
- presupuesto: pide precio o cotización de equipos o servicios
- visita_tecnica: pide una visita, inspección o revisión en el lugar
- urgencia: tiene una emergencia o necesita atención inmediata
- otras: cualquier otra consulta
Respondé SOLO con JSON: {"categoria": "<categoria>", "confianza": <0-10>}`

// ClassifyCategory asks the model to map the message to an inquiry category.
func (e *OpenAIEngine) ClassifyCategory(ctx context.Context, text string) (models.InquiryCategory, bool, error) {
	out, err := e.complete(ctx, classifySystemPrompt, text, 50)
	if err != nil {
		return "", false, err
	}
	var parsed struct {
		Categoria string `json:"categoria"`
		Confianza int    `json:"confianza"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse classification %q: %w", out, err)
	}
	cat := models.InquiryCategory(parsed.Categoria)
	if !models.IsValidInquiryCategory(cat) || parsed.Confianza < 7 {
		slog.Debug("OpenAIEngine.ClassifyCategory: no confident match", "categoria", parsed.Categoria, "confianza", parsed.Confianza)
		return "", false, nil
	}
	return cat, true, nil
}

const extractSystemPrompt = `Extraé datos de contacto del mensaje de un cliente.
Respondé SOLO con JSON con las claves que encuentres entre:
"email", "direccion", "horario_visita", "descripcion".
Omití las claves que no estén presentes en el mensaje. No inventes datos.`

// ExtractFields asks the model for a JSON object with the contact fields
// present in the message.
func (e *OpenAIEngine) ExtractFields(ctx context.Context, text string) (map[string]string, error) {
	out, err := e.complete(ctx, extractSystemPrompt, text, 300)
	if err != nil {
		return nil, err
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction %q: %w", out, err)
	}
	fields := make(map[string]string)
	for _, name := range []string{models.FieldEmail, models.FieldAddress, models.FieldVisitWindow, models.FieldDescription} {
		if v := strings.TrimSpace(parsed[name]); v != "" {
			fields[name] = v
		}
	}
	slog.Debug("OpenAIEngine.ExtractFields succeeded", "fields", len(fields))
	return fields, nil
}

const regionSystemPrompt = `Determiná si una dirección está en CABA (Ciudad Autónoma de Buenos Aires)
o en la Provincia de Buenos Aires.
Respondé SOLO con JSON: {"region": "caba"|"provincia"|"unknown", "confianza": <0-10>}`

// DetectRegion asks the model whether the address is in CABA or Provincia.
func (e *OpenAIEngine) DetectRegion(ctx context.Context, address string) (models.Region, int, error) {
	out, err := e.complete(ctx, regionSystemPrompt, address, 50)
	if err != nil {
		return models.RegionUnknown, 0, err
	}
	var parsed struct {
		Region    string `json:"region"`
		Confianza int    `json:"confianza"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &parsed); err != nil {
		return models.RegionUnknown, 0, fmt.Errorf("failed to parse region %q: %w", out, err)
	}
	switch models.Region(parsed.Region) {
	case models.RegionCABA:
		return models.RegionCABA, parsed.Confianza, nil
	case models.RegionProvincia:
		return models.RegionProvincia, parsed.Confianza, nil
	default:
		return models.RegionUnknown, parsed.Confianza, nil
	}
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// JSON answers in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
