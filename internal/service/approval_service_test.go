package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/wcpms-billing/internal/model"
)

func newApprovalService(t *testing.T) (*ApprovalService, *stubContractRepo, *stubRequestRepo, *stubAuditRepo) {
	t.Helper()
	contracts := newStubContractRepo()
	requests := newStubRequestRepo()
	audits := newStubAuditRepo()
	customers := newStubCustomerRepo(
		&model.Customer{ID: 1, Code: "CUST-001", FullName: "Alikhan Serik"},
		&model.Customer{ID: 2, Code: "CUST-002", FullName: "Dana Omar"},
	)
	svc := NewApprovalService(requests, contracts, customers, audits, &recordingNotifier{})
	return svc, contracts, requests, audits
}

func TestSubmitAnnulRequest(t *testing.T) {
	svc, contracts, _, audits := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	request, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "meter removed, property demolished",
	}, testPrincipal())
	require.NoError(t, err)

	assert.Equal(t, model.ApprovalStatusPending, request.Status)
	assert.False(t, request.Resolved())

	entry := audits.last()
	require.NotNil(t, entry)
	assert.Equal(t, "SUBMITTED", entry.Event)
	assert.Equal(t, model.AuditSubjectRequest, entry.SubjectType)
}

func TestSubmitRequiresActiveContract(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusSuspended, nil)

	_, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "service no longer needed",
	}, testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)
}

func TestSubmitTransferNeedsBeneficiary(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	_, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeTransfer,
		ContractID: contract.ID,
		Reason:     "property sold",
	}, testPrincipal())
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Submit(context.Background(), SubmitRequestInput{
		Type:         model.RequestTypeTransfer,
		ContractID:   contract.ID,
		ToCustomerID: uintPtr(99),
		Reason:       "property sold",
	}, testPrincipal())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRejectsDuplicatePending(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	input := SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "service no longer needed",
	}
	_, err := svc.Submit(context.Background(), input, testPrincipal())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), input, testPrincipal())
	require.ErrorIs(t, err, ErrGuardViolation)

	// A different pending type on the same contract is still allowed.
	_, err = svc.Submit(context.Background(), SubmitRequestInput{
		Type:         model.RequestTypeTransfer,
		ContractID:   contract.ID,
		ToCustomerID: uintPtr(2),
		Reason:       "property sold",
	}, testPrincipal())
	require.NoError(t, err)
}

func TestApproveAnnulTerminatesContract(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	request, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "service no longer needed",
	}, testPrincipal())
	require.NoError(t, err)

	resolved, err := svc.Approve(context.Background(), request.ID, testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	stored, err := contracts.FindByID(context.Background(), nil, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTerminated, stored.Status)
}

func TestApproveTransferReassignsOwnership(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, func(c *model.Contract) {
		c.GuestName = "stale guest data"
	})

	request, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:         model.RequestTypeTransfer,
		ContractID:   contract.ID,
		ToCustomerID: uintPtr(2),
		Reason:       "property sold",
	}, testPrincipal())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), request.ID, testPrincipal())
	require.NoError(t, err)

	stored, err := contracts.FindByID(context.Background(), nil, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, stored.Status)
	require.NotNil(t, stored.CustomerID)
	assert.Equal(t, uint(2), *stored.CustomerID)
	assert.Empty(t, stored.GuestName)
}

func TestApproveIsResolvedOnce(t *testing.T) {
	svc, contracts, _, _ := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	request, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "service no longer needed",
	}, testPrincipal())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), request.ID, testPrincipal())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), request.ID, testPrincipal())
	require.ErrorIs(t, err, ErrAlreadyResolved)
	_, err = svc.Reject(context.Background(), request.ID, "already handled", testPrincipal())
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestRejectRequiresNote(t *testing.T) {
	svc, contracts, _, audits := newApprovalService(t)
	contract := seedContract(t, contracts, model.ContractStatusActive, nil)

	request, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:       model.RequestTypeAnnul,
		ContractID: contract.ID,
		Reason:     "service no longer needed",
	}, testPrincipal())
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), request.ID, "   ", testPrincipal())
	require.ErrorIs(t, err, ErrInvalidInput)

	resolved, err := svc.Reject(context.Background(), request.ID, "evidence insufficient", testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusRejected, resolved.Status)
	assert.Equal(t, "evidence insufficient", resolved.ApproverNote)

	// The contract is untouched by a rejection.
	stored, err := contracts.FindByID(context.Background(), nil, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusActive, stored.Status)

	entry := audits.last()
	require.NotNil(t, entry)
	assert.Equal(t, "REJECTED", entry.Event)
}
