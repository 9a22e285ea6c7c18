// Package lifecycle encodes the contract state machine: the finite set
// of contract statuses and the guarded transitions between them. The
// table below is the single source of truth; services never assign a
// contract status directly.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type Event string

const (
	EventSubmitForSurvey       Event = "SUBMIT_FOR_SURVEY"
	EventSurveyCompleted       Event = "SURVEY_COMPLETED"
	EventApprove               Event = "APPROVE"
	EventRejectSurvey          Event = "REJECT_SURVEY"
	EventGenerateOfficial      Event = "GENERATE_OFFICIAL"
	EventSendToSign            Event = "SEND_TO_SIGN"
	EventCustomerSigns         Event = "CUSTOMER_SIGNS"
	EventCustomerRejectsSign   Event = "CUSTOMER_REJECTS_SIGN"
	EventSendToInstallation    Event = "SEND_TO_INSTALLATION"
	EventInstallationCompleted Event = "INSTALLATION_COMPLETED"
	EventSuspend               Event = "SUSPEND"
	EventTerminate             Event = "TERMINATE"
	EventApproveTransfer       Event = "APPROVE_TRANSFER"
	EventApproveAnnul          Event = "APPROVE_ANNUL"
	EventReactivate            Event = "REACTIVATE"
	EventRenew                 Event = "RENEW"
	EventExpire                Event = "EXPIRE"
)

// ErrIllegalTransition is returned when an event is not valid from the
// contract's current status. The wrapped message carries both so the
// caller can present a precise failure.
var ErrIllegalTransition = errors.New("illegal state transition")

// transitions maps (current status, event) to the next status.
// GENERATE_OFFICIAL leaves the source contract in APPROVED; the new
// DRAFT contract it creates is an effect handled by the service layer.
var transitions = map[model.ContractStatus]map[Event]model.ContractStatus{
	model.ContractStatusDraft: {
		EventSubmitForSurvey: model.ContractStatusPending,
	},
	model.ContractStatusPending: {
		EventSurveyCompleted: model.ContractStatusPendingSurveyReview,
	},
	model.ContractStatusPendingSurveyReview: {
		EventApprove:      model.ContractStatusApproved,
		EventRejectSurvey: model.ContractStatusPending,
	},
	model.ContractStatusApproved: {
		EventGenerateOfficial: model.ContractStatusApproved,
		EventSendToSign:       model.ContractStatusPendingCustomerSign,
	},
	model.ContractStatusPendingCustomerSign: {
		EventCustomerSigns:       model.ContractStatusPendingSign,
		EventCustomerRejectsSign: model.ContractStatusApproved,
	},
	model.ContractStatusPendingSign: {
		EventSendToInstallation: model.ContractStatusSigned,
	},
	model.ContractStatusSigned: {
		EventInstallationCompleted: model.ContractStatusActive,
	},
	model.ContractStatusActive: {
		EventSuspend:         model.ContractStatusSuspended,
		EventTerminate:       model.ContractStatusTerminated,
		EventApproveTransfer: model.ContractStatusActive,
		EventApproveAnnul:    model.ContractStatusTerminated,
		EventExpire:          model.ContractStatusExpired,
	},
	model.ContractStatusSuspended: {
		EventReactivate: model.ContractStatusActive,
		EventTerminate:  model.ContractStatusTerminated,
	},
	model.ContractStatusExpired: {
		EventRenew: model.ContractStatusActive,
	},
}

// Next resolves the status a contract moves to when event fires from
// current. Pairs outside the transition table fail with
// ErrIllegalTransition.
func Next(current model.ContractStatus, event Event) (model.ContractStatus, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: cannot %s from %s", ErrIllegalTransition, event, current)
}

// Allowed lists the events that may fire from the given status, for
// callers that offer transition actions up front.
func Allowed(current model.ContractStatus) []Event {
	row := transitions[current]
	events := make([]Event, 0, len(row))
	for event := range row {
		events = append(events, event)
	}
	return events
}

// Terminal reports whether no event can move the contract out of the
// given status. EXPIRED is not terminal: it is re-enterable via RENEW.
func Terminal(status model.ContractStatus) bool {
	return len(transitions[status]) == 0
}
