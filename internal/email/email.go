// Package email delivers finished leads to the company inbox via SendGrid.
package email

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/plan"
)

// Sender delivers a lead. Implementations must be safe for concurrent use.
type Sender interface {
	SendLead(ctx context.Context, lead models.LeadRecord) error
}

// Opts holds configuration options for the SendGrid sender.
type Opts struct {
	APIKey   string
	To       string
	From     string
	FromName string
}

// Option defines a configuration option for the SendGrid sender.
type Option func(*Opts)

// WithAPIKey sets the SendGrid API key, overriding SENDGRID_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithRecipient sets the inbox that receives the leads.
func WithRecipient(to string) Option {
	return func(o *Opts) { o.To = to }
}

// WithSender sets the from address and display name.
func WithSender(from, name string) Option {
	return func(o *Opts) {
		o.From = from
		o.FromName = name
	}
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends one email per finalized lead.
type SendGridSender struct {
	client sendClient
	to     string
	from   string
	name   string
}

// NewSendGridSender creates a sender. The API key falls back to the
// SENDGRID_API_KEY environment variable.
func NewSendGridSender(opts ...Option) (*SendGridSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("SENDGRID_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid API key not set")
	}
	if cfg.To == "" {
		return nil, fmt.Errorf("lead recipient address not set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("lead sender address not set")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		to:     cfg.To,
		from:   cfg.From,
		name:   cfg.FromName,
	}, nil
}

// SendLead emails the lead to the company inbox.
func (s *SendGridSender) SendLead(ctx context.Context, lead models.LeadRecord) error {
	from := mail.NewEmail(s.name, s.from)
	to := mail.NewEmail("", s.to)
	subject := leadSubject(lead)
	plain := leadBody(lead)
	msg := mail.NewSingleEmail(from, subject, to, plain, "<pre>"+plain+"</pre>")

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send lead email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected lead email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func leadSubject(lead models.LeadRecord) string {
	name := lead.SenderName
	if name == "" {
		name = lead.Phone
	}
	return fmt.Sprintf("Nueva consulta de %s: %s", name, categoryLabel(lead.Category))
}

// leadBody renders the lead as plain text. Fields the plan never asked for
// are omitted; skipped optional fields show as "no informado".
func leadBody(lead models.LeadRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Motivo: %s\n", categoryLabel(lead.Category))
	fmt.Fprintf(&b, "Teléfono: %s\n", lead.Phone)
	if lead.SenderName != "" {
		fmt.Fprintf(&b, "Nombre: %s\n", lead.SenderName)
	}

	p, ok := plan.For(lead.Category)
	if !ok {
		return b.String()
	}
	for _, spec := range p.Fields {
		value := lead.Contact.Field(spec.Name)
		if value == plan.SkippedSentinel {
			value = "no informado"
		}
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", spec.Label, value)
	}
	fmt.Fprintf(&b, "\nRecibido: %s\n", lead.CreatedAt.Format("02/01/2006 15:04"))
	return b.String()
}

func categoryLabel(c models.InquiryCategory) string {
	switch c {
	case models.CategoryQuote:
		return "Presupuesto"
	case models.CategoryTechnicalVisit:
		return "Visita técnica"
	case models.CategoryUrgency:
		return "Urgencia"
	case models.CategoryOther:
		return "Otras consultas"
	}
	return string(c)
}
