package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalibrationFee is a charge for meter inspection or repair, billed
// separately from water consumption. InvoiceID marks it as billed;
// cancelling the invoice returns the fee to the unbilled pool.
type CalibrationFee struct {
	ID          uint
	ContractID  uint
	CustomerID  *uint
	Description string
	Amount      decimal.Decimal
	FeeDate     time.Time
	InvoiceID   *uint
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *CalibrationFee) Billed() bool {
	return f.InvoiceID != nil
}
