package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/wcpms-billing/internal/lifecycle"
	"github.com/nurpe/wcpms-billing/internal/model"
)

func newContractService(t *testing.T) (*ContractService, *stubContractRepo, *stubAuditRepo, *recordingNotifier) {
	t.Helper()
	contracts := newStubContractRepo()
	audits := newStubAuditRepo()
	notifier := &recordingNotifier{}
	customers := newStubCustomerRepo(&model.Customer{ID: 1, Code: "CUST-001", FullName: "Alikhan Serik"})
	svc := NewContractService(contracts, customers, audits, notifier, testConfig())
	return svc, contracts, audits, notifier
}

func seedContract(t *testing.T, contracts *stubContractRepo, status model.ContractStatus, mutate func(*model.Contract)) *model.Contract {
	t.Helper()
	contract := &model.Contract{
		ContractNumber: "WC-2026-00042",
		CustomerID:     uintPtr(1),
		PriceTypeCode:  "HH",
		StartDate:      datePtr(2026, 1, 1),
		EndDate:        datePtr(2027, 1, 1),
		Status:         status,
	}
	if mutate != nil {
		mutate(contract)
	}
	require.NoError(t, contracts.Create(context.Background(), nil, contract))
	return contract
}

func TestCreateDraft(t *testing.T) {
	svc, _, audits, _ := newContractService(t)

	contract, err := svc.CreateDraft(context.Background(), CreateContractInput{
		CustomerID:    uintPtr(1),
		PriceTypeCode: "HH",
		StartDate:     datePtr(2026, 1, 1),
		EndDate:       datePtr(2027, 1, 1),
	}, testPrincipal())
	require.NoError(t, err)

	assert.Equal(t, model.ContractStatusDraft, contract.Status)
	assert.Regexp(t, `^WC-\d{4}-\d{5}$`, contract.ContractNumber)

	entry := audits.last()
	require.NotNil(t, entry)
	assert.Equal(t, "CREATED", entry.Event)
	assert.Equal(t, model.AuditSubjectContract, entry.SubjectType)
	assert.Equal(t, contract.ID, entry.SubjectID)
}

func TestCreateDraftRequiresCustomerOrGuest(t *testing.T) {
	svc, _, _, _ := newContractService(t)

	_, err := svc.CreateDraft(context.Background(), CreateContractInput{PriceTypeCode: "HH"}, testPrincipal())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateDraftUnknownCustomer(t *testing.T) {
	svc, _, _, _ := newContractService(t)

	_, err := svc.CreateDraft(context.Background(), CreateContractInput{
		CustomerID:    uintPtr(99),
		PriceTypeCode: "HH",
	}, testPrincipal())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDraftMinimumDuration(t *testing.T) {
	svc, _, _, _ := newContractService(t)

	// Exactly 365 days is accepted.
	contract, err := svc.CreateDraft(context.Background(), CreateContractInput{
		CustomerID:    uintPtr(1),
		PriceTypeCode: "HH",
		StartDate:     datePtr(2026, 1, 1),
		EndDate:       datePtr(2027, 1, 1),
	}, testPrincipal())
	require.NoError(t, err)
	assert.NotNil(t, contract)

	// 364 days is one short.
	_, err = svc.CreateDraft(context.Background(), CreateContractInput{
		CustomerID:    uintPtr(1),
		PriceTypeCode: "HH",
		StartDate:     datePtr(2026, 1, 1),
		EndDate:       datePtr(2026, 12, 31),
	}, testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)
}

func TestSubmitForSurvey(t *testing.T) {
	svc, contracts, _, notifier := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusDraft, nil)

	contract, err := svc.SubmitForSurvey(context.Background(), seeded.ID, 12, testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusPending, contract.Status)
	require.NotNil(t, contract.TechnicalStaffID)
	assert.Equal(t, uint(12), *contract.TechnicalStaffID)
	assert.Equal(t, []string{string(lifecycle.EventSubmitForSurvey)}, notifier.contractEvents)
}

func TestSubmitForSurveyRequiresTechnician(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusDraft, nil)

	_, err := svc.SubmitForSurvey(context.Background(), seeded.ID, 0, testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	stored, findErr := contracts.FindByID(context.Background(), nil, seeded.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.ContractStatusDraft, stored.Status)
}

func TestSubmitForSurveyIllegalFromActive(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusActive, nil)

	_, err := svc.SubmitForSurvey(context.Background(), seeded.ID, 12, testPrincipal())
	require.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
}

func TestRejectSurveyReasonLength(t *testing.T) {
	svc, contracts, audits, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusPendingSurveyReview, nil)

	_, err := svc.RejectSurvey(context.Background(), seeded.ID, "  no  ", testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	contract, err := svc.RejectSurvey(context.Background(), seeded.ID, "pressure too low at site", testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusPending, contract.Status)

	entry := audits.last()
	require.NotNil(t, entry)
	assert.Contains(t, entry.Detail, "pressure too low at site")
}

func TestGenerateOfficialContract(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	source := seedContract(t, contracts, model.ContractStatusApproved, func(c *model.Contract) {
		c.EstimatedCost = decimal.NewFromInt(200000)
	})

	official, err := svc.GenerateOfficialContract(context.Background(), source.ID, testPrincipal())
	require.NoError(t, err)

	assert.Equal(t, model.ContractStatusDraft, official.Status)
	require.NotNil(t, official.SourceContractID)
	assert.Equal(t, source.ID, *official.SourceContractID)
	assert.True(t, official.EstimatedCost.Equal(source.EstimatedCost))
	assert.NotEqual(t, source.ContractNumber, official.ContractNumber)

	// The source stays APPROVED.
	stored, err := contracts.FindByID(context.Background(), nil, source.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusApproved, stored.Status)
}

func TestSendToSignBlocksGuestContracts(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusApproved, func(c *model.Contract) {
		c.CustomerID = nil
		c.GuestName = "Walk-in applicant"
	})

	_, err := svc.SendToSign(context.Background(), seeded.ID, testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	stored, findErr := contracts.FindByID(context.Background(), nil, seeded.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.ContractStatusApproved, stored.Status)
}

func TestSendToSignRegisteredCustomer(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusApproved, nil)

	contract, err := svc.SendToSign(context.Background(), seeded.ID, testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusPendingCustomerSign, contract.Status)
}

func TestCompleteInstallation(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusSigned, nil)

	// Before the start date is rejected.
	_, err := svc.CompleteInstallation(context.Background(), seeded.ID,
		time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	contract, err := svc.CompleteInstallation(context.Background(), seeded.ID,
		time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, contract.Status)
	require.NotNil(t, contract.InstallationDate)
	assert.Equal(t, 2026, contract.InstallationDate.Year())
}

func TestSuspendAndTerminateRequireReason(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusActive, nil)

	_, err := svc.Suspend(context.Background(), seeded.ID, "  ", testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)
	_, err = svc.Terminate(context.Background(), seeded.ID, "", testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	contract, err := svc.Suspend(context.Background(), seeded.ID, "unpaid invoices", testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusSuspended, contract.Status)

	contract, err = svc.Terminate(context.Background(), seeded.ID, "customer moved abroad", testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTerminated, contract.Status)
}

func TestTerminatedIsFinal(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusTerminated, nil)

	_, err := svc.Reactivate(context.Background(), seeded.ID, testPrincipal())
	require.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
	_, err = svc.Renew(context.Background(), seeded.ID, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), testPrincipal())
	require.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
}

func TestRenewEnforcesMinimumDuration(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusExpired, nil)

	_, err := svc.Renew(context.Background(), seeded.ID, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	contract, err := svc.Renew(context.Background(), seeded.ID, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, contract.Status)
	require.NotNil(t, contract.EndDate)
	assert.Equal(t, 2028, contract.EndDate.Year())
}

func TestExpireContracts(t *testing.T) {
	svc, contracts, audits, _ := newContractService(t)
	expired := seedContract(t, contracts, model.ContractStatusActive, func(c *model.Contract) {
		c.EndDate = datePtr(2026, 3, 1)
	})
	current := seedContract(t, contracts, model.ContractStatusActive, func(c *model.Contract) {
		c.ContractNumber = "WC-2026-00043"
		c.EndDate = datePtr(2027, 6, 1)
	})

	count, err := svc.ExpireContracts(context.Background(), time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := contracts.FindByID(context.Background(), nil, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusExpired, stored.Status)

	stored, err = contracts.FindByID(context.Background(), nil, current.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, stored.Status)

	entry := audits.last()
	require.NotNil(t, entry)
	assert.Equal(t, "scheduler", entry.ActorName)
}

func TestAuditTrailAccumulates(t *testing.T) {
	svc, contracts, _, _ := newContractService(t)
	seeded := seedContract(t, contracts, model.ContractStatusDraft, nil)

	_, err := svc.SubmitForSurvey(context.Background(), seeded.ID, 12, testPrincipal())
	require.NoError(t, err)
	_, err = svc.CompleteSurvey(context.Background(), seeded.ID, SurveyResult{
		SurveyDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EstimatedCost: decimal.NewFromInt(150000),
	}, testPrincipal())
	require.NoError(t, err)

	trail, err := svc.AuditTrail(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, string(lifecycle.EventSubmitForSurvey), trail[0].Event)
	assert.Equal(t, string(lifecycle.EventSurveyCompleted), trail[1].Event)
}
