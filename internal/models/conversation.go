package models

import "time"

// InquiryCategory classifies what the user is contacting the company about.
type InquiryCategory string

const (
	// CategoryQuote is a request for a budget estimate.
	CategoryQuote InquiryCategory = "presupuesto"
	// CategoryTechnicalVisit is a request for an on-site technical visit.
	CategoryTechnicalVisit InquiryCategory = "visita_tecnica"
	// CategoryUrgency is an emergency; the bot redirects to the phone lines.
	CategoryUrgency InquiryCategory = "urgencia"
	// CategoryOther covers every other kind of inquiry.
	CategoryOther InquiryCategory = "otras"
)

// IsValidInquiryCategory checks if the given category is supported.
func IsValidInquiryCategory(c InquiryCategory) bool {
	switch c {
	case CategoryQuote, CategoryTechnicalVisit, CategoryUrgency, CategoryOther:
		return true
	default:
		return false
	}
}

// Region represents the geographic area an address belongs to.
type Region string

const (
	// RegionCABA is the Ciudad Autónoma de Buenos Aires.
	RegionCABA Region = "caba"
	// RegionProvincia is the Provincia de Buenos Aires.
	RegionProvincia Region = "provincia"
	// RegionUnknown means the region could not be determined.
	RegionUnknown Region = "unknown"
)

// Contact field names. These double as the keys the field extractor returns.
const (
	FieldEmail       = "email"
	FieldAddress     = "direccion"
	FieldVisitWindow = "horario_visita"
	FieldDescription = "descripcion"
)

// ContactRecord holds the data collected from the user for a lead.
type ContactRecord struct {
	Email       string `json:"email,omitempty"`
	Address     string `json:"direccion,omitempty"`
	VisitWindow string `json:"horario_visita,omitempty"`
	Description string `json:"descripcion,omitempty"`
}

// Field returns the value of the named contact field, or "" for unknown names.
func (c *ContactRecord) Field(name string) string {
	switch name {
	case FieldEmail:
		return c.Email
	case FieldAddress:
		return c.Address
	case FieldVisitWindow:
		return c.VisitWindow
	case FieldDescription:
		return c.Description
	default:
		return ""
	}
}

// SetField assigns the named contact field. Returns ErrUnknownField for unknown names.
func (c *ContactRecord) SetField(name, value string) error {
	switch name {
	case FieldEmail:
		c.Email = value
	case FieldAddress:
		c.Address = value
	case FieldVisitWindow:
		c.VisitWindow = value
	case FieldDescription:
		c.Description = value
	default:
		return ErrUnknownField
	}
	return nil
}

// ClearFields blanks the named contact fields.
func (c *ContactRecord) ClearFields(names ...string) {
	for _, name := range names {
		c.SetField(name, "")
	}
}

// CollectProgress tracks where sequential and correction collection stands.
// The zero value means no collection is in progress.
type CollectProgress struct {
	// Missing lists the fields still to be collected, in plan order.
	Missing []string `json:"missing,omitempty"`
	// Current is the field the last prompt asked for.
	Current string `json:"current,omitempty"`
	// Correcting is the field being re-entered from the correction menu.
	Correcting string `json:"correcting,omitempty"`
	// PendingAddress holds an address awaiting region disambiguation.
	PendingAddress string `json:"pending_address,omitempty"`
	// ResumeState is where the conversation returns after location validation.
	ResumeState ConversationState `json:"resume_state,omitempty"`
}

// SurveyProgress tracks the post-handoff satisfaction survey for a conversation.
type SurveyProgress struct {
	Offered  bool     `json:"offered,omitempty"`
	Question int      `json:"question,omitempty"` // 1-based index of the pending question
	Answers  []string `json:"answers,omitempty"`
	// ResolutionAsked marks that the closing resolution question went out.
	ResolutionAsked bool `json:"resolution_asked,omitempty"`
}

// Conversation is the in-memory record of one user's session, keyed by phone number.
type Conversation struct {
	ID         string            `json:"id"`
	SenderName string            `json:"sender_name,omitempty"`
	State      ConversationState `json:"state"`
	Category   InquiryCategory   `json:"category,omitempty"`
	Contact    ContactRecord     `json:"contact"`
	Progress   CollectProgress   `json:"progress"`
	Survey     SurveyProgress    `json:"survey"`
	// HandoffContext is the message that triggered the human handoff, shown
	// to the agent so they know what the user needs.
	HandoffContext string    `json:"handoff_context_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Reset wipes everything except the identity fields, returning the
// conversation to the initial state.
func (c *Conversation) Reset() {
	c.State = StateInit
	c.Category = ""
	c.Contact = ContactRecord{}
	c.Progress = CollectProgress{}
	c.Survey = SurveyProgress{}
	c.HandoffContext = ""
}

// LeadRecord is the finished lead submitted to the company.
type LeadRecord struct {
	ID         string          `json:"id"`
	Phone      string          `json:"phone"`
	SenderName string          `json:"sender_name,omitempty"`
	Category   InquiryCategory `json:"category"`
	Contact    ContactRecord   `json:"contact"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SurveyResult is a completed or partially completed satisfaction survey.
type SurveyResult struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Answers   []string  `json:"answers"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// ClosureReason explains why a handed-off conversation was closed.
type ClosureReason string

const (
	// ClosureReasonAgentDone means the agent closed the conversation explicitly.
	ClosureReasonAgentDone ClosureReason = "agent_done"
	// ClosureReasonInactivity means the sweeper closed it after the idle TTL.
	ClosureReasonInactivity ClosureReason = "inactivity"
	// ClosureReasonSurveyTimeout means the survey stalled and was abandoned.
	ClosureReasonSurveyTimeout ClosureReason = "survey_timeout"
)

// ClosureRecord is the archive entry written when a handoff ends.
type ClosureRecord struct {
	ID        string        `json:"id"`
	Phone     string        `json:"phone"`
	Reason    ClosureReason `json:"reason"`
	CreatedAt time.Time     `json:"created_at"`
}
