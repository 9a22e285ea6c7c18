package model

import "time"

// BillingReport is the input to the accounting exports: every invoice
// issued in the period, ordered by invoice date.
type BillingReport struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Invoices    []Invoice
}
