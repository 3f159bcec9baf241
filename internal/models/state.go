// Package models defines state management structures for chatbot conversations.
package models

// ConversationState represents the current state of a user conversation.
type ConversationState string

const (
	// StateInit is the entry state before the greeting has been sent.
	StateInit ConversationState = "init"
	// StateAwaitingMenuChoice waits for the user to pick a menu option.
	StateAwaitingMenuChoice ConversationState = "awaiting_menu_choice"
	// StateCollectingBulk collects every contact field from a single free-form message.
	StateCollectingBulk ConversationState = "collecting_bulk"
	// StateCollectingSequential collects contact fields one at a time in plan order.
	StateCollectingSequential ConversationState = "collecting_sequential"
	// StateCollectingIndividualField re-collects the fields a bulk message left missing or invalid.
	StateCollectingIndividualField ConversationState = "collecting_individual_field"
	// StateValidatingLocation disambiguates whether an address is in CABA or Provincia.
	StateValidatingLocation ConversationState = "validating_location"
	// StateConfirming shows the collected data and waits for a yes/no answer.
	StateConfirming ConversationState = "confirming"
	// StateCorrecting waits for the user to pick which field to correct.
	StateCorrecting ConversationState = "correcting"
	// StateCorrectingField waits for the new value of the field being corrected.
	StateCorrectingField ConversationState = "correcting_field"
	// StateSending submits the lead; terminal except for the goodbye message.
	StateSending ConversationState = "sending"
	// StateFinalized marks a finished conversation awaiting cleanup.
	StateFinalized ConversationState = "finalized"
	// StateHandedOffToHuman parks the conversation while a human agent attends it.
	StateHandedOffToHuman ConversationState = "handed_off_to_human"
	// StateAwaitingSurveyResponse waits for the user to accept or decline the survey.
	StateAwaitingSurveyResponse ConversationState = "awaiting_survey_response"
	// StateSurveyInProgress walks the user through the survey questions.
	StateSurveyInProgress ConversationState = "survey_in_progress"
)

// IsValidConversationState checks if the given state is one of the known states.
func IsValidConversationState(s ConversationState) bool {
	switch s {
	case StateInit, StateAwaitingMenuChoice, StateCollectingBulk, StateCollectingSequential,
		StateCollectingIndividualField, StateValidatingLocation, StateConfirming,
		StateCorrecting, StateCorrectingField, StateSending, StateFinalized,
		StateHandedOffToHuman, StateAwaitingSurveyResponse, StateSurveyInProgress:
		return true
	default:
		return false
	}
}

// IsHandedOff reports whether the state belongs to the human-attention phase,
// including the post-handoff survey states.
func (s ConversationState) IsHandedOff() bool {
	switch s {
	case StateHandedOffToHuman, StateAwaitingSurveyResponse, StateSurveyInProgress:
		return true
	default:
		return false
	}
}

// IsCollecting reports whether the state is one of the data collection states.
func (s ConversationState) IsCollecting() bool {
	switch s {
	case StateCollectingBulk, StateCollectingSequential, StateCollectingIndividualField:
		return true
	default:
		return false
	}
}
