package model

import "time"

type RequestType string

const (
	RequestTypeAnnul    RequestType = "annul"
	RequestTypeTransfer RequestType = "transfer"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// ApprovalRequest is a customer-initiated transfer or annulment request
// against an active contract. It is resolved exactly once; approval
// triggers the corresponding contract transition.
type ApprovalRequest struct {
	ID           uint
	Type         RequestType
	ContractID   uint
	RequesterID  *uint
	ToCustomerID *uint
	Reason       string
	Evidence     string
	Status       ApprovalStatus
	ApproverNote string
	ApprovedByID *uint
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *ApprovalRequest) Resolved() bool {
	return r.Status != ApprovalStatusPending
}
