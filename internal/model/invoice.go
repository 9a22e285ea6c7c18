package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceKind string

const (
	InvoiceKindWater        InvoiceKind = "WATER"
	InvoiceKindInstallation InvoiceKind = "INSTALLATION"
	InvoiceKindService      InvoiceKind = "SERVICE"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Invoice is one bill issued to a customer. Water invoices originate
// from a meter reading and carry an environment fee; installation and
// service invoices are fee based. Amounts always satisfy
// total = subtotal + vat (+ environment fee for water invoices).
type Invoice struct {
	ID                   uint
	InvoiceNumber        string
	Kind                 InvoiceKind
	ContractID           uint
	CustomerID           *uint
	MeterReadingID       *uint
	CalibrationFeeID     *uint
	InvoiceDate          time.Time
	DueDate              time.Time
	TotalConsumption     decimal.Decimal
	SubtotalAmount       decimal.Decimal
	EnvironmentFeeAmount decimal.Decimal
	VATAmount            decimal.Decimal
	LatePaymentFee       decimal.Decimal
	TotalAmount          decimal.Decimal
	PaymentStatus        PaymentStatus
	PaidDate             *time.Time
	AccountingStaffID    *uint
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
