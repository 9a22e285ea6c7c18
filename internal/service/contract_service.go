package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/config"
	"github.com/nurpe/wcpms-billing/internal/lifecycle"
	"github.com/nurpe/wcpms-billing/internal/model"
	"github.com/nurpe/wcpms-billing/internal/repository"
)

// ContractService drives the contract lifecycle. Every mutating call
// resolves the transition against the lifecycle table, applies the
// guarded effect and appends an audit entry, all in one transaction.
type ContractService struct {
	contracts repository.ContractRepository
	customers repository.CustomerRepository
	audits    repository.AuditRepository
	notifier  Notifier
	cfg       *config.Config
}

func NewContractService(
	contracts repository.ContractRepository,
	customers repository.CustomerRepository,
	audits repository.AuditRepository,
	notifier Notifier,
	cfg *config.Config,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		customers: customers,
		audits:    audits,
		notifier:  notifier,
		cfg:       cfg,
	}
}

type CreateContractInput struct {
	CustomerID      *uint
	GuestName       string
	GuestPhone      string
	PriceTypeCode   string
	ApplicationDate *time.Time
	StartDate       *time.Time
	EndDate         *time.Time
	PaymentMethod   model.PaymentMethod
	ContractValue   decimal.Decimal
	Notes           string
}

type SurveyResult struct {
	SurveyDate      time.Time
	TechnicalDesign string
	EstimatedCost   decimal.Decimal
}

// CreateDraft registers a customer-submitted request as a DRAFT
// contract with a generated contract number.
func (s *ContractService) CreateDraft(ctx context.Context, input CreateContractInput, actor model.Principal) (*model.Contract, error) {
	if input.CustomerID == nil && strings.TrimSpace(input.GuestName) == "" {
		return nil, fmt.Errorf("%w: either customer_id or guest_name is required", ErrInvalidInput)
	}

	contract := &model.Contract{
		CustomerID:      input.CustomerID,
		GuestName:       strings.TrimSpace(input.GuestName),
		GuestPhone:      strings.TrimSpace(input.GuestPhone),
		PriceTypeCode:   input.PriceTypeCode,
		ApplicationDate: input.ApplicationDate,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		PaymentMethod:   input.PaymentMethod,
		ContractValue:   input.ContractValue,
		Notes:           input.Notes,
		Status:          model.ContractStatusDraft,
	}
	if err := s.validateDates(contract); err != nil {
		return nil, err
	}

	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		if input.CustomerID != nil {
			if _, err := s.customers.FindByID(ctx, tx, *input.CustomerID); err != nil {
				return mapNotFound(err, fmt.Sprintf("customer %d", *input.CustomerID))
			}
		}
		number, err := s.nextContractNumber(ctx, tx)
		if err != nil {
			return err
		}
		contract.ContractNumber = number
		if err := s.contracts.Create(ctx, tx, contract); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectContract,
			SubjectID:   contract.ID,
			Event:       "CREATED",
			Detail:      fmt.Sprintf("contract %s created as draft", contract.ContractNumber),
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// SubmitForSurvey assigns the surveying technician and moves the draft
// to PENDING.
func (s *ContractService) SubmitForSurvey(ctx context.Context, contractID, technicalStaffID uint, actor model.Principal) (*model.Contract, error) {
	if technicalStaffID == 0 {
		return nil, fmt.Errorf("%w: a technical staff id is required to submit for survey", ErrGuardViolation)
	}
	return s.transition(ctx, contractID, lifecycle.EventSubmitForSurvey, actor,
		func(c *model.Contract) (string, error) {
			c.TechnicalStaffID = &technicalStaffID
			return fmt.Sprintf("assigned technician %d for survey", technicalStaffID), nil
		})
}

// CompleteSurvey records the survey outcome reported by the technical
// process and moves the contract to PENDING_SURVEY_REVIEW.
func (s *ContractService) CompleteSurvey(ctx context.Context, contractID uint, result SurveyResult, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventSurveyCompleted, actor,
		func(c *model.Contract) (string, error) {
			surveyDate := result.SurveyDate
			c.SurveyDate = &surveyDate
			c.TechnicalDesign = result.TechnicalDesign
			c.EstimatedCost = result.EstimatedCost
			return fmt.Sprintf("survey completed on %s, estimated cost %s",
				surveyDate.Format("2006-01-02"), result.EstimatedCost), nil
		})
}

func (s *ContractService) ApproveSurvey(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventApprove, actor,
		func(c *model.Contract) (string, error) {
			return "survey approved", nil
		})
}

// RejectSurvey sends the contract back to PENDING with the rejection
// reason recorded in the audit trail.
func (s *ContractService) RejectSurvey(ctx context.Context, contractID uint, reason string, actor model.Principal) (*model.Contract, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < 5 {
		return nil, fmt.Errorf("%w: a rejection reason of at least 5 characters is required", ErrGuardViolation)
	}
	return s.transition(ctx, contractID, lifecycle.EventRejectSurvey, actor,
		func(c *model.Contract) (string, error) {
			return "survey rejected: " + reason, nil
		})
}

// GenerateOfficialContract creates a new DRAFT contract from an
// approved survey contract, carrying the customer, price type and
// estimated cost over and referencing the source.
func (s *ContractService) GenerateOfficialContract(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	var official *model.Contract
	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		source, err := s.contracts.FindByID(ctx, tx, contractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", contractID))
		}
		if _, err := lifecycle.Next(source.Status, lifecycle.EventGenerateOfficial); err != nil {
			return err
		}

		number, err := s.nextContractNumber(ctx, tx)
		if err != nil {
			return err
		}
		sourceID := source.ID
		official = &model.Contract{
			ContractNumber:   number,
			CustomerID:       source.CustomerID,
			GuestName:        source.GuestName,
			GuestPhone:       source.GuestPhone,
			PriceTypeCode:    source.PriceTypeCode,
			EstimatedCost:    source.EstimatedCost,
			ContractValue:    source.ContractValue,
			PaymentMethod:    source.PaymentMethod,
			ServiceStaffID:   source.ServiceStaffID,
			TechnicalStaffID: source.TechnicalStaffID,
			SourceContractID: &sourceID,
			Status:           model.ContractStatusDraft,
		}
		if err := s.contracts.Create(ctx, tx, official); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectContract,
			SubjectID:   source.ID,
			Event:       string(lifecycle.EventGenerateOfficial),
			Detail:      fmt.Sprintf("official contract %s generated from %s", official.ContractNumber, source.ContractNumber),
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return official, nil
}

// SendToSign dispatches the approved contract for the customer's
// electronic signature. Guest contracts have no account to sign with
// and are blocked here.
func (s *ContractService) SendToSign(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventSendToSign, actor,
		func(c *model.Contract) (string, error) {
			if c.IsGuest() {
				return "", fmt.Errorf("%w: contract %s has no registered customer account to sign with",
					ErrGuardViolation, c.ContractNumber)
			}
			return "contract sent to customer for signing", nil
		})
}

func (s *ContractService) CustomerSigns(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventCustomerSigns, actor,
		func(c *model.Contract) (string, error) {
			return "customer signed the contract", nil
		})
}

// CustomerRejectsSign returns the contract to APPROVED; the rejection
// reason lives in the audit trail, not in the free-text notes.
func (s *ContractService) CustomerRejectsSign(ctx context.Context, contractID uint, reason string, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventCustomerRejectsSign, actor,
		func(c *model.Contract) (string, error) {
			detail := "customer rejected signing"
			if reason = strings.TrimSpace(reason); reason != "" {
				detail += ": " + reason
			}
			return detail, nil
		})
}

func (s *ContractService) SendToInstallation(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventSendToInstallation, actor,
		func(c *model.Contract) (string, error) {
			return "signed contract sent to installation", nil
		})
}

// CompleteInstallation activates the contract and stamps the
// installation date, which may not precede the start date.
func (s *ContractService) CompleteInstallation(ctx context.Context, contractID uint, installedAt time.Time, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventInstallationCompleted, actor,
		func(c *model.Contract) (string, error) {
			if c.StartDate != nil && installedAt.Before(*c.StartDate) {
				return "", fmt.Errorf("%w: installation date %s is before contract start date %s",
					ErrGuardViolation, installedAt.Format("2006-01-02"), c.StartDate.Format("2006-01-02"))
			}
			date := installedAt
			c.InstallationDate = &date
			return "installation completed on " + installedAt.Format("2006-01-02"), nil
		})
}

func (s *ContractService) Suspend(ctx context.Context, contractID uint, reason string, actor model.Principal) (*model.Contract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to suspend a contract", ErrGuardViolation)
	}
	return s.transition(ctx, contractID, lifecycle.EventSuspend, actor,
		func(c *model.Contract) (string, error) {
			return "suspended: " + reason, nil
		})
}

func (s *ContractService) Terminate(ctx context.Context, contractID uint, reason string, actor model.Principal) (*model.Contract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to terminate a contract", ErrGuardViolation)
	}
	return s.transition(ctx, contractID, lifecycle.EventTerminate, actor,
		func(c *model.Contract) (string, error) {
			return "terminated: " + reason, nil
		})
}

func (s *ContractService) Reactivate(ctx context.Context, contractID uint, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventReactivate, actor,
		func(c *model.Contract) (string, error) {
			return "contract reactivated", nil
		})
}

// Renew extends an expired contract. The new end date must honor the
// minimum contract duration counted from the start date.
func (s *ContractService) Renew(ctx context.Context, contractID uint, newEndDate time.Time, actor model.Principal) (*model.Contract, error) {
	return s.transition(ctx, contractID, lifecycle.EventRenew, actor,
		func(c *model.Contract) (string, error) {
			endDate := newEndDate
			c.EndDate = &endDate
			if err := s.validateDates(c); err != nil {
				return "", err
			}
			return "renewed until " + newEndDate.Format("2006-01-02"), nil
		})
}

// ExpireContracts applies the time-derived ACTIVE to EXPIRED transition
// to every active contract whose end date has passed. It returns the
// number of contracts expired.
func (s *ContractService) ExpireContracts(ctx context.Context, asOf time.Time) (int, error) {
	expirable, err := s.contracts.ListExpirable(ctx, nil, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range expirable {
		_, err := s.transition(ctx, expirable[i].ID, lifecycle.EventExpire, model.Principal{FullName: "scheduler"},
			func(c *model.Contract) (string, error) {
				return "contract expired on " + asOf.Format("2006-01-02"), nil
			})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *ContractService) Get(ctx context.Context, contractID uint) (*model.Contract, error) {
	contract, err := s.contracts.FindByID(ctx, nil, contractID)
	if err != nil {
		return nil, mapNotFound(err, fmt.Sprintf("contract %d", contractID))
	}
	return contract, nil
}

// AuditTrail returns the contract's append-only history.
func (s *ContractService) AuditTrail(ctx context.Context, contractID uint) ([]model.AuditEntry, error) {
	return s.audits.ListBySubject(ctx, nil, model.AuditSubjectContract, contractID)
}

// transition is the shared read-validate-write unit. mutate applies the
// transition's effect and returns the audit detail; any error from it
// aborts the transaction, leaving status, dates and audit unchanged.
func (s *ContractService) transition(
	ctx context.Context,
	contractID uint,
	event lifecycle.Event,
	actor model.Principal,
	mutate func(c *model.Contract) (string, error),
) (*model.Contract, error) {
	var result *model.Contract
	err := runTx(ctx, s.contracts.DB(), func(tx *gorm.DB) error {
		contract, err := s.contracts.FindByID(ctx, tx, contractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", contractID))
		}
		next, err := lifecycle.Next(contract.Status, event)
		if err != nil {
			return err
		}
		detail, err := mutate(contract)
		if err != nil {
			return err
		}
		contract.Status = next
		if err := s.contracts.Update(ctx, tx, contract); err != nil {
			return err
		}
		if err := s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectContract,
			SubjectID:   contract.ID,
			Event:       string(event),
			Detail:      detail,
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		}); err != nil {
			return err
		}
		result = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ContractStatusChanged(ctx, result, string(event))
	}
	return result, nil
}

// validateDates enforces the date invariants: end after start with the
// minimum duration, installation not before start.
func (s *ContractService) validateDates(c *model.Contract) error {
	if c.StartDate != nil && c.EndDate != nil {
		minEnd := c.StartDate.AddDate(0, 0, s.cfg.Billing.MinContractDays)
		if c.EndDate.Before(minEnd) {
			return fmt.Errorf("%w: end date %s is earlier than the minimum %d-day duration (%s)",
				ErrGuardViolation, c.EndDate.Format("2006-01-02"), s.cfg.Billing.MinContractDays, minEnd.Format("2006-01-02"))
		}
	}
	if c.StartDate != nil && c.InstallationDate != nil && c.InstallationDate.Before(*c.StartDate) {
		return fmt.Errorf("%w: installation date is before contract start date", ErrGuardViolation)
	}
	return nil
}

// nextContractNumber issues a sequential, immutable contract number
// scoped to the current year.
func (s *ContractService) nextContractNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	prefix := fmt.Sprintf("WC-%d-", time.Now().Year())
	count, err := s.contracts.CountByNumberPrefix(ctx, tx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
