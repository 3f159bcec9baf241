package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/nlu"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/plan"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/survey"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/validate"
)

// Result is what one turn of the conversation produces. Replies go to the
// user; the flags are side effects the caller carries out after the
// conversation state has been updated.
type Result struct {
	Replies []string

	// EnqueueHandoff puts the conversation into the agent queue.
	EnqueueHandoff bool
	// SubmitLead means the contact data is complete and confirmed.
	SubmitLead bool
	// EndConversation deletes the session once the replies are sent.
	EndConversation bool
	// ForwardToAgent relays this text to the human agent.
	ForwardToAgent string
	// SurveyDone means conv.Survey holds a finished (or declined) survey.
	SurveyDone bool
}

func (r *Result) reply(msgs ...string) {
	r.Replies = append(r.Replies, msgs...)
}

// Engine advances conversations through the lead collection state machine.
type Engine struct {
	profile  config.CompanyProfile
	resolver *nlu.Resolver
}

// NewEngine creates the conversation engine.
func NewEngine(profile config.CompanyProfile, resolver *nlu.Resolver) *Engine {
	return &Engine{profile: profile, resolver: resolver}
}

// Advance processes one user message against the conversation state and
// mutates conv in place. The caller must hold the conversation's lock.
func (e *Engine) Advance(ctx context.Context, conv *models.Conversation, text string) Result {
	var res Result
	slog.Debug("Engine.Advance", "id", conv.ID, "state", conv.State)

	// Handed-off conversations belong to the human agent; the state machine
	// only steps in for the resolution question and the survey.
	if conv.State.IsHandedOff() {
		e.advanceHandedOff(conv, text, &res)
		return res
	}

	switch detectInterrupt(text) {
	case interruptReset:
		conv.Reset()
		conv.State = models.StateAwaitingMenuChoice
		res.reply(resetMessage(e.profile))
		return res
	case interruptContactInfo:
		res.reply(contactInfoMessage(e.profile))
		if prompt := e.repromptFor(conv); prompt != "" {
			res.reply(prompt)
		}
		return res
	case interruptHumanRequest:
		conv.State = models.StateHandedOffToHuman
		conv.HandoffContext = strings.TrimSpace(text)
		res.EnqueueHandoff = true
		return res
	case interruptMenuReturn:
		// Already at the menu: treat the words as menu input instead.
		if conv.State != models.StateInit && conv.State != models.StateAwaitingMenuChoice {
			conv.Reset()
			conv.State = models.StateAwaitingMenuChoice
			res.reply(greetingMessage(e.profile))
			return res
		}
	}

	switch conv.State {
	case models.StateInit:
		conv.State = models.StateAwaitingMenuChoice
		res.reply(greetingMessage(e.profile))
	case models.StateAwaitingMenuChoice:
		e.advanceMenuChoice(ctx, conv, text, &res)
	case models.StateCollectingBulk:
		e.advanceBulk(ctx, conv, text, &res)
	case models.StateCollectingSequential, models.StateCollectingIndividualField:
		e.advanceFieldAnswer(ctx, conv, text, &res)
	case models.StateValidatingLocation:
		e.advanceLocation(conv, text, &res)
	case models.StateConfirming:
		e.advanceConfirmation(conv, text, &res)
	case models.StateSending:
		// A previous submission attempt failed; any message retries it.
		res.SubmitLead = true
	case models.StateCorrecting:
		e.advanceCorrectionChoice(conv, text, &res)
	case models.StateCorrectingField:
		e.advanceCorrectionValue(ctx, conv, text, &res)
	default:
		// Finalized or unknown: start over.
		conv.Reset()
		conv.State = models.StateAwaitingMenuChoice
		res.reply(greetingMessage(e.profile))
	}
	return res
}

// OfferSurvey moves a handed-off conversation to the survey offer.
func (e *Engine) OfferSurvey(conv *models.Conversation) Result {
	var res Result
	conv.State = models.StateAwaitingSurveyResponse
	conv.Survey.Offered = true
	res.reply(survey.Offer)
	return res
}

// AskResolution sends the closing resolution question to a handed-off user.
func (e *Engine) AskResolution(conv *models.Conversation) Result {
	var res Result
	conv.Survey.ResolutionAsked = true
	res.reply(resolutionQuestionMessage())
	return res
}

func (e *Engine) advanceMenuChoice(ctx context.Context, conv *models.Conversation, text string, res *Result) {
	category, ok := e.resolver.ClassifyCategory(ctx, text)
	if !ok {
		res.reply(menuRetryMessage())
		return
	}
	conv.Category = category

	if category == models.CategoryUrgency {
		conv.State = models.StateFinalized
		res.reply(urgencyMessage(e.profile))
		res.EndConversation = true
		return
	}

	p, ok := plan.For(category)
	if !ok {
		res.reply(menuRetryMessage())
		return
	}
	if p.BulkEntry {
		conv.State = models.StateCollectingBulk
		res.reply(bulkPromptMessage())
		return
	}
	conv.State = models.StateCollectingSequential
	e.promptNextField(conv, p, res, "")
}

func (e *Engine) advanceBulk(ctx context.Context, conv *models.Conversation, text string, res *Result) {
	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}

	extracted := e.resolver.ExtractFields(ctx, text)
	errs := validate.Fields(extracted, p.FieldNames())
	invalid := make(map[string]bool, len(errs))
	for _, fe := range errs {
		invalid[fe.Field] = true
	}

	var pendingAddress string
	for _, name := range p.FieldNames() {
		value, ok := extracted[name]
		if !ok || invalid[name] {
			continue
		}
		value = strings.TrimSpace(value)
		if name == models.FieldAddress {
			pendingAddress = value
			continue
		}
		conv.Contact.SetField(name, value)
	}

	if len(errs) > 0 {
		var lines []string
		lines = append(lines, "Algunos datos necesitan una revisión:")
		for _, fe := range errs {
			lines = append(lines, "• "+fe.Message)
		}
		res.reply(strings.Join(lines, "\n"))
	}

	if pendingAddress != "" {
		if e.setAddress(ctx, conv, pendingAddress, models.StateCollectingIndividualField) {
			res.reply(locationQuestionMessage(pendingAddress))
			return
		}
	}

	conv.State = models.StateCollectingIndividualField
	e.promptNextField(conv, p, res, "")
}

func (e *Engine) advanceFieldAnswer(ctx context.Context, conv *models.Conversation, text string, res *Result) {
	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}
	field := conv.Progress.Current
	spec, ok := p.Field(field)
	if !ok {
		e.promptNextField(conv, p, res, "")
		return
	}

	value, hasValue := validate.Clean(text)
	if !hasValue {
		res.reply(spec.Prompt)
		return
	}

	if spec.Optional && strings.EqualFold(value, spec.SkipWord) {
		conv.Contact.SetField(field, plan.SkippedSentinel)
		e.promptNextField(conv, p, res, "✅ ¡Anotado!")
		return
	}

	if msg := validate.Field(field, value); msg != "" {
		res.reply(msg, spec.Prompt)
		return
	}

	if field == models.FieldAddress {
		if e.setAddress(ctx, conv, value, conv.State) {
			res.reply(locationQuestionMessage(value))
			return
		}
	} else {
		conv.Contact.SetField(field, value)
	}
	e.promptNextField(conv, p, res, "✅ ¡Anotado!")
}

func (e *Engine) advanceLocation(conv *models.Conversation, text string, res *Result) {
	t := strings.ToLower(strings.TrimSpace(text))
	var suffix string
	switch {
	case t == "1" || strings.Contains(t, "caba") || strings.Contains(t, "capital"):
		suffix = ", CABA"
	case t == "2" || strings.Contains(t, "provincia"):
		suffix = ", Provincia de Buenos Aires"
	default:
		res.reply(locationRetryMessage())
		return
	}

	conv.Contact.Address = conv.Progress.PendingAddress + suffix
	conv.Progress.PendingAddress = ""
	resume := conv.Progress.ResumeState
	conv.Progress.ResumeState = ""

	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}
	if resume == models.StateConfirming {
		conv.Progress.Correcting = ""
		e.moveToConfirm(conv, p, res)
		return
	}
	if resume == "" {
		resume = models.StateCollectingIndividualField
	}
	conv.State = resume
	e.promptNextField(conv, p, res, "✅ ¡Anotado!")
}

func (e *Engine) advanceConfirmation(conv *models.Conversation, text string, res *Result) {
	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}
	yes, understood := survey.ParseYesNo(text)
	if !understood {
		res.reply(confirmRetryMessage())
		return
	}
	if yes {
		// The caller reports the outcome: success finalizes the
		// conversation, failure leaves it here so any message retries.
		conv.State = models.StateSending
		res.SubmitLead = true
		return
	}
	conv.State = models.StateCorrecting
	res.reply(correctionMenuMessage(p))
}

func (e *Engine) advanceCorrectionChoice(conv *models.Conversation, text string, res *Result) {
	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "todo" || t == strconv.Itoa(len(p.Fields)+1) {
		conv.Contact = models.ContactRecord{}
		conv.Progress = models.CollectProgress{}
		conv.State = models.StateCollectingSequential
		e.promptNextField(conv, p, res, "🔄 Empecemos con los datos de nuevo.")
		return
	}
	n, err := strconv.Atoi(t)
	if err != nil || n < 1 || n > len(p.Fields) {
		res.reply(correctionRetryMessage(p))
		return
	}
	spec := p.Fields[n-1]
	conv.Progress.Correcting = spec.Name
	conv.State = models.StateCorrectingField
	res.reply(correctionFieldPrompt(spec))
}

func (e *Engine) advanceCorrectionValue(ctx context.Context, conv *models.Conversation, text string, res *Result) {
	p, ok := plan.For(conv.Category)
	if !ok {
		conv.State = models.StateAwaitingMenuChoice
		res.reply(menuRetryMessage())
		return
	}
	field := conv.Progress.Correcting
	spec, ok := p.Field(field)
	if !ok {
		e.moveToConfirm(conv, p, res)
		return
	}

	value, hasValue := validate.Clean(text)
	if !hasValue {
		res.reply(correctionFieldPrompt(spec))
		return
	}
	if spec.Optional && strings.EqualFold(value, spec.SkipWord) {
		conv.Contact.SetField(field, plan.SkippedSentinel)
		conv.Progress.Correcting = ""
		e.moveToConfirm(conv, p, res)
		return
	}
	if msg := validate.Field(field, value); msg != "" {
		res.reply(msg, correctionFieldPrompt(spec))
		return
	}

	if field == models.FieldAddress {
		if e.setAddress(ctx, conv, value, models.StateConfirming) {
			res.reply(locationQuestionMessage(value))
			return
		}
	} else {
		conv.Contact.SetField(field, value)
	}
	conv.Progress.Correcting = ""
	e.moveToConfirm(conv, p, res)
}

func (e *Engine) advanceHandedOff(conv *models.Conversation, text string, res *Result) {
	switch conv.State {
	case models.StateAwaitingSurveyResponse:
		if yes, ok := survey.ParseYesNo(text); ok && yes {
			conv.State = models.StateSurveyInProgress
			conv.Survey.Question = 1
			res.reply(survey.Questions[0])
			return
		}
		res.reply(survey.Goodbye)
		res.SurveyDone = true
		res.EndConversation = true
	case models.StateSurveyInProgress:
		conv.Survey.Answers = append(conv.Survey.Answers, survey.NormalizeAnswer(text))
		if conv.Survey.Question >= len(survey.Questions) {
			res.reply(survey.Thanks)
			res.SurveyDone = true
			res.EndConversation = true
			return
		}
		conv.Survey.Question++
		res.reply(survey.Questions[conv.Survey.Question-1])
	default: // StateHandedOffToHuman
		if conv.Survey.ResolutionAsked {
			if yes, ok := survey.ParseYesNo(text); ok {
				conv.Survey.ResolutionAsked = false
				if yes {
					res.reply(resolutionYesMessage())
					res.EndConversation = true
					return
				}
				res.reply(resolutionNoMessage())
				res.EnqueueHandoff = true
				return
			}
		}
		res.ForwardToAgent = text
	}
}

// setAddress stores an address, resolving its region. It returns true when
// the user must be asked, in which case the conversation has been moved to
// the location validation state with resume recorded.
func (e *Engine) setAddress(ctx context.Context, conv *models.Conversation, address string, resume models.ConversationState) bool {
	region := e.resolver.DetectRegion(ctx, address)
	lower := strings.ToLower(address)
	switch region {
	case models.RegionCABA:
		if !strings.Contains(lower, "caba") && !strings.Contains(lower, "capital") {
			address += ", CABA"
		}
		conv.Contact.Address = address
	case models.RegionProvincia:
		if !strings.Contains(lower, "provincia") {
			address += ", Provincia de Buenos Aires"
		}
		conv.Contact.Address = address
	default:
		conv.Progress.PendingAddress = address
		conv.Progress.ResumeState = resume
		conv.State = models.StateValidatingLocation
		return true
	}
	return false
}

// promptNextField asks for the next missing field, or moves to confirmation
// when the plan is complete. prefix, when non-empty, leads the reply.
func (e *Engine) promptNextField(conv *models.Conversation, p plan.Plan, res *Result, prefix string) {
	missing := p.Missing(&conv.Contact)
	conv.Progress.Missing = missing
	if len(missing) == 0 {
		conv.Progress.Current = ""
		e.moveToConfirm(conv, p, res)
		return
	}
	conv.Progress.Current = missing[0]
	spec, _ := p.Field(missing[0])
	if prefix != "" {
		res.reply(prefix + "\n\n" + spec.Prompt)
	} else {
		res.reply(spec.Prompt)
	}
}

func (e *Engine) moveToConfirm(conv *models.Conversation, p plan.Plan, res *Result) {
	conv.State = models.StateConfirming
	conv.Progress.Current = ""
	conv.Progress.Missing = nil
	res.reply(confirmationMessage(conv, p))
}

// repromptFor rebuilds the question the current state is waiting on, used
// after answering a contact info interrupt.
func (e *Engine) repromptFor(conv *models.Conversation) string {
	switch conv.State {
	case models.StateAwaitingMenuChoice, models.StateInit:
		return menuRetryMessage()
	case models.StateCollectingBulk:
		return bulkPromptMessage()
	case models.StateCollectingSequential, models.StateCollectingIndividualField:
		if p, ok := plan.For(conv.Category); ok {
			if spec, ok := p.Field(conv.Progress.Current); ok {
				return spec.Prompt
			}
		}
	case models.StateValidatingLocation:
		return locationQuestionMessage(conv.Progress.PendingAddress)
	case models.StateConfirming:
		if p, ok := plan.For(conv.Category); ok {
			return confirmationMessage(conv, p)
		}
	case models.StateCorrecting:
		if p, ok := plan.For(conv.Category); ok {
			return correctionMenuMessage(p)
		}
	case models.StateCorrectingField:
		if p, ok := plan.For(conv.Category); ok {
			if spec, ok := p.Field(conv.Progress.Correcting); ok {
				return correctionFieldPrompt(spec)
			}
		}
	}
	return ""
}
