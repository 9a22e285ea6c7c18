package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractStatusDraft               ContractStatus = "DRAFT"
	ContractStatusPending             ContractStatus = "PENDING"
	ContractStatusPendingSurveyReview ContractStatus = "PENDING_SURVEY_REVIEW"
	ContractStatusApproved            ContractStatus = "APPROVED"
	ContractStatusPendingCustomerSign ContractStatus = "PENDING_CUSTOMER_SIGN"
	ContractStatusPendingSign         ContractStatus = "PENDING_SIGN"
	ContractStatusSigned              ContractStatus = "SIGNED"
	ContractStatusActive              ContractStatus = "ACTIVE"
	ContractStatusSuspended           ContractStatus = "SUSPENDED"
	ContractStatusExpired             ContractStatus = "EXPIRED"
	ContractStatusTerminated          ContractStatus = "TERMINATED"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodInstallment  PaymentMethod = "installment"
)

// Contract is a water supply agreement between the utility and a
// customer. Guest contracts carry the customer's name and phone inline
// and have no linked account. The status column is mutated only through
// the lifecycle transitions; contracts are never deleted.
type Contract struct {
	ID               uint
	ContractNumber   string
	CustomerID       *uint
	Customer         *Customer `gorm:"foreignKey:CustomerID"`
	GuestName        string
	GuestPhone       string
	PriceTypeCode    string
	ApplicationDate  *time.Time
	SurveyDate       *time.Time
	TechnicalDesign  string
	EstimatedCost    decimal.Decimal
	ContractValue    decimal.Decimal
	PaymentMethod    PaymentMethod
	StartDate        *time.Time
	EndDate          *time.Time
	InstallationDate *time.Time
	ServiceStaffID   *uint
	TechnicalStaffID *uint
	// SourceContractID links an official contract back to the survey
	// contract it was generated from.
	SourceContractID *uint
	Notes            string
	Status           ContractStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsGuest reports whether the contract belongs to an unregistered
// customer: no linked account, or an account without a customer code.
func (c *Contract) IsGuest() bool {
	if c.CustomerID == nil {
		return true
	}
	return c.Customer != nil && c.Customer.Code == ""
}
