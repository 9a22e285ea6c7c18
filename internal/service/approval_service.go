package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/lifecycle"
	"github.com/nurpe/wcpms-billing/internal/model"
	"github.com/nurpe/wcpms-billing/internal/repository"
)

// ApprovalService handles transfer and annulment requests: the
// multi-party sign-off that precedes an ownership change or a
// termination. A request is resolved exactly once; the contract
// transition it triggers commits in the same transaction.
type ApprovalService struct {
	requests  repository.RequestRepository
	contracts repository.ContractRepository
	customers repository.CustomerRepository
	audits    repository.AuditRepository
	notifier  Notifier
}

func NewApprovalService(
	requests repository.RequestRepository,
	contracts repository.ContractRepository,
	customers repository.CustomerRepository,
	audits repository.AuditRepository,
	notifier Notifier,
) *ApprovalService {
	return &ApprovalService{
		requests:  requests,
		contracts: contracts,
		customers: customers,
		audits:    audits,
		notifier:  notifier,
	}
}

type SubmitRequestInput struct {
	Type         model.RequestType
	ContractID   uint
	RequesterID  *uint
	ToCustomerID *uint
	Reason       string
	Evidence     string
}

// Submit creates a PENDING request against an active contract. Only one
// pending request per type is allowed on a contract at a time.
func (s *ApprovalService) Submit(ctx context.Context, input SubmitRequestInput, actor model.Principal) (*model.ApprovalRequest, error) {
	if input.Type != model.RequestTypeAnnul && input.Type != model.RequestTypeTransfer {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrInvalidInput, input.Type)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrInvalidInput)
	}
	if input.Type == model.RequestTypeTransfer && input.ToCustomerID == nil {
		return nil, fmt.Errorf("%w: a transfer request needs a beneficiary customer", ErrInvalidInput)
	}

	request := &model.ApprovalRequest{
		Type:         input.Type,
		ContractID:   input.ContractID,
		RequesterID:  input.RequesterID,
		ToCustomerID: input.ToCustomerID,
		Reason:       strings.TrimSpace(input.Reason),
		Evidence:     input.Evidence,
		Status:       model.ApprovalStatusPending,
	}

	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		contract, err := s.contracts.FindByID(ctx, tx, input.ContractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", input.ContractID))
		}
		if contract.Status != model.ContractStatusActive {
			return fmt.Errorf("%w: %s requests are only accepted against ACTIVE contracts, contract %s is %s",
				ErrGuardViolation, input.Type, contract.ContractNumber, contract.Status)
		}
		if input.ToCustomerID != nil {
			if _, err := s.customers.FindByID(ctx, tx, *input.ToCustomerID); err != nil {
				return mapNotFound(err, fmt.Sprintf("customer %d", *input.ToCustomerID))
			}
		}
		pending, err := s.requests.ExistsPending(ctx, tx, input.ContractID, input.Type)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: contract %s already has a pending %s request",
				ErrGuardViolation, contract.ContractNumber, input.Type)
		}
		if err := s.requests.Create(ctx, tx, request); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectRequest,
			SubjectID:   request.ID,
			Event:       "SUBMITTED",
			Detail:      fmt.Sprintf("%s request submitted for contract %s", input.Type, contract.ContractNumber),
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Approve resolves a pending request and fires the corresponding
// contract transition: ownership change for transfers, termination for
// annulments.
func (s *ApprovalService) Approve(ctx context.Context, requestID uint, actor model.Principal) (*model.ApprovalRequest, error) {
	var (
		request  *model.ApprovalRequest
		contract *model.Contract
		event    lifecycle.Event
	)
	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		var err error
		request, err = s.requests.FindByID(ctx, tx, requestID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("request %d", requestID))
		}
		if request.Resolved() {
			return fmt.Errorf("%w: request %d is already %s", ErrAlreadyResolved, request.ID, request.Status)
		}

		contract, err = s.contracts.FindByID(ctx, tx, request.ContractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", request.ContractID))
		}

		event = lifecycle.EventApproveAnnul
		if request.Type == model.RequestTypeTransfer {
			event = lifecycle.EventApproveTransfer
		}
		next, err := lifecycle.Next(contract.Status, event)
		if err != nil {
			return err
		}

		detail := fmt.Sprintf("annulment approved, contract %s terminated", contract.ContractNumber)
		if request.Type == model.RequestTypeTransfer {
			contract.CustomerID = request.ToCustomerID
			contract.Customer = nil
			contract.GuestName = ""
			contract.GuestPhone = ""
			detail = fmt.Sprintf("ownership of contract %s transferred to customer %d",
				contract.ContractNumber, *request.ToCustomerID)
		}
		contract.Status = next
		if err := s.contracts.Update(ctx, tx, contract); err != nil {
			return err
		}

		now := time.Now()
		request.Status = model.ApprovalStatusApproved
		request.ApprovedByID = actorID(actor)
		request.ResolvedAt = &now
		if err := s.requests.Update(ctx, tx, request); err != nil {
			return err
		}

		if err := s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectRequest,
			SubjectID:   request.ID,
			Event:       "APPROVED",
			Detail:      detail,
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		}); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectContract,
			SubjectID:   contract.ID,
			Event:       string(event),
			Detail:      detail,
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ContractStatusChanged(ctx, contract, string(event))
	}
	return request, nil
}

// Reject resolves a pending request without touching the contract. The
// approver's note is mandatory.
func (s *ApprovalService) Reject(ctx context.Context, requestID uint, note string, actor model.Principal) (*model.ApprovalRequest, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: a note is required when rejecting a request", ErrInvalidInput)
	}

	var request *model.ApprovalRequest
	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		var err error
		request, err = s.requests.FindByID(ctx, tx, requestID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("request %d", requestID))
		}
		if request.Resolved() {
			return fmt.Errorf("%w: request %d is already %s", ErrAlreadyResolved, request.ID, request.Status)
		}

		now := time.Now()
		request.Status = model.ApprovalStatusRejected
		request.ApproverNote = note
		request.ApprovedByID = actorID(actor)
		request.ResolvedAt = &now
		if err := s.requests.Update(ctx, tx, request); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectRequest,
			SubjectID:   request.ID,
			Event:       "REJECTED",
			Detail:      note,
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}
