package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReadingStatus string

const (
	ReadingStatusPending   ReadingStatus = "PENDING"
	ReadingStatusCompleted ReadingStatus = "COMPLETED"
)

// MeterReading is produced by the metering process. Once COMPLETED it
// becomes eligible for billing and is consumed by exactly one water
// invoice; InvoiceID marks it as billed.
type MeterReading struct {
	ID            uint
	ContractID    uint
	CustomerID    *uint
	MeterNumber   string
	PreviousIndex decimal.Decimal
	CurrentIndex  decimal.Decimal
	ReadingDate   time.Time
	Status        ReadingStatus
	InvoiceID     *uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Consumption is the metered volume in m3.
func (r *MeterReading) Consumption() decimal.Decimal {
	return r.CurrentIndex.Sub(r.PreviousIndex)
}

// Billed reports whether the reading has already been attached to an
// invoice and is therefore no longer in the unbilled pool.
func (r *MeterReading) Billed() bool {
	return r.InvoiceID != nil
}
