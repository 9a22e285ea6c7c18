package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/billing"
	"github.com/nurpe/wcpms-billing/internal/config"
	"github.com/nurpe/wcpms-billing/internal/model"
	"github.com/nurpe/wcpms-billing/internal/repository"
)

// BillingService ties completed meter readings and calibration fees to
// invoices. Invoice creation and the consumption of its source are one
// transaction: no partial invoice is ever left behind.
type BillingService struct {
	invoices  repository.InvoiceRepository
	readings  repository.ReadingRepository
	fees      repository.FeeRepository
	contracts repository.ContractRepository
	tariffs   repository.TariffRepository
	audits    repository.AuditRepository
	notifier  Notifier
	cfg       *config.Config
}

func NewBillingService(
	invoices repository.InvoiceRepository,
	readings repository.ReadingRepository,
	fees repository.FeeRepository,
	contracts repository.ContractRepository,
	tariffs repository.TariffRepository,
	audits repository.AuditRepository,
	notifier Notifier,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		invoices:  invoices,
		readings:  readings,
		fees:      fees,
		contracts: contracts,
		tariffs:   tariffs,
		audits:    audits,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// GenerateWaterInvoice bills a completed meter reading: resolves the
// contract's tariff, computes the itemized amounts and removes the
// reading from the unbilled pool.
func (s *BillingService) GenerateWaterInvoice(ctx context.Context, readingID uint, actor model.Principal) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		reading, err := s.readings.FindByID(ctx, tx, readingID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("meter reading %d", readingID))
		}
		if reading.Status != model.ReadingStatusCompleted {
			return fmt.Errorf("%w: reading %d is %s, only COMPLETED readings can be billed",
				ErrReadingNotEligible, reading.ID, reading.Status)
		}
		if reading.Billed() {
			return fmt.Errorf("%w: reading %d is already billed by invoice %d",
				ErrReadingNotEligible, reading.ID, *reading.InvoiceID)
		}

		contract, err := s.contracts.FindByID(ctx, tx, reading.ContractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", reading.ContractID))
		}
		tariff, err := s.tariffs.ActiveByPriceType(ctx, tx, contract.PriceTypeCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no active tariff for price type %q",
					billing.ErrInvalidTariff, contract.PriceTypeCode)
			}
			return err
		}

		breakdown, err := billing.ComputeWaterBill(*tariff, reading.PreviousIndex, reading.CurrentIndex)
		if err != nil {
			return err
		}
		if !breakdown.TotalAmount.IsPositive() {
			return fmt.Errorf("%w: reading %d yields a zero bill, nothing to invoice",
				ErrGuardViolation, reading.ID)
		}

		invoiceDate := dateOnly(time.Now())
		invoice = &model.Invoice{
			InvoiceNumber:        s.nextInvoiceNumber(invoiceDate),
			Kind:                 model.InvoiceKindWater,
			ContractID:           contract.ID,
			CustomerID:           contract.CustomerID,
			MeterReadingID:       &reading.ID,
			InvoiceDate:          invoiceDate,
			DueDate:              invoiceDate.AddDate(0, 0, s.cfg.Billing.DueDays),
			TotalConsumption:     breakdown.Consumption,
			SubtotalAmount:       breakdown.SubtotalAmount,
			EnvironmentFeeAmount: breakdown.EnvironmentFeeAmount,
			VATAmount:            breakdown.VATAmount,
			TotalAmount:          breakdown.TotalAmount,
			PaymentStatus:        model.PaymentStatusPending,
			AccountingStaffID:    actorID(actor),
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return err
		}

		reading.InvoiceID = &invoice.ID
		if err := s.readings.Update(ctx, tx, reading); err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectInvoice,
			SubjectID:   invoice.ID,
			Event:       "WATER_INVOICE_CREATED",
			Detail: fmt.Sprintf("invoice %s for reading %d, consumption %s m3, total %s",
				invoice.InvoiceNumber, reading.ID, breakdown.Consumption, breakdown.TotalAmount),
			ActorID:   actorID(actor),
			ActorName: actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.InvoiceIssued(ctx, invoice)
	}
	return invoice, nil
}

type ServiceInvoiceInput struct {
	// Subtotal overrides the fee amount when the accountant adjusts it;
	// VAT and total are always recomputed, never edited independently.
	Subtotal *decimal.Decimal
	DueDate  time.Time
	Notes    string
}

// GenerateServiceInvoice bills a calibration or repair fee at the
// configured service VAT rate.
func (s *BillingService) GenerateServiceInvoice(ctx context.Context, feeID uint, input ServiceInvoiceInput, actor model.Principal) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		fee, err := s.fees.FindByID(ctx, tx, feeID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("calibration fee %d", feeID))
		}
		if fee.Billed() {
			return fmt.Errorf("%w: fee %d is already billed by invoice %d",
				ErrReadingNotEligible, fee.ID, *fee.InvoiceID)
		}

		subtotal := fee.Amount
		if input.Subtotal != nil {
			subtotal = *input.Subtotal
		}
		if !subtotal.IsPositive() {
			return fmt.Errorf("%w: invoice amount must be positive", ErrGuardViolation)
		}

		invoiceDate := dateOnly(time.Now())
		dueDate := dateOnly(input.DueDate)
		if !dueDate.After(invoiceDate) {
			return fmt.Errorf("%w: due date must be after the invoice date", ErrGuardViolation)
		}

		breakdown := billing.ComputeFee(subtotal, s.cfg.Billing.ServiceVATRate)
		invoice = &model.Invoice{
			InvoiceNumber:     s.nextInvoiceNumber(invoiceDate),
			Kind:              model.InvoiceKindService,
			ContractID:        fee.ContractID,
			CustomerID:        fee.CustomerID,
			CalibrationFeeID:  &fee.ID,
			InvoiceDate:       invoiceDate,
			DueDate:           dueDate,
			SubtotalAmount:    breakdown.SubtotalAmount,
			VATAmount:         breakdown.VATAmount,
			TotalAmount:       breakdown.TotalAmount,
			PaymentStatus:     model.PaymentStatusPending,
			AccountingStaffID: actorID(actor),
			Notes:             strings.TrimSpace(input.Notes),
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return err
		}

		fee.InvoiceID = &invoice.ID
		if err := s.fees.Update(ctx, tx, fee); err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectInvoice,
			SubjectID:   invoice.ID,
			Event:       "SERVICE_INVOICE_CREATED",
			Detail: fmt.Sprintf("invoice %s for fee %d, total %s",
				invoice.InvoiceNumber, fee.ID, breakdown.TotalAmount),
			ActorID:   actorID(actor),
			ActorName: actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.InvoiceIssued(ctx, invoice)
	}
	return invoice, nil
}

// installationBillable lists the statuses from which an installation
// invoice may be issued: the survey has been approved and the contract
// has not ended.
var installationBillable = map[model.ContractStatus]bool{
	model.ContractStatusApproved:            true,
	model.ContractStatusPendingCustomerSign: true,
	model.ContractStatusPendingSign:         true,
	model.ContractStatusSigned:              true,
	model.ContractStatusActive:              true,
}

// GenerateInstallationInvoice bills the approved contract's estimated
// installation cost at the configured installation VAT rate.
func (s *BillingService) GenerateInstallationInvoice(ctx context.Context, contractID uint, dueDate time.Time, actor model.Principal) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		contract, err := s.contracts.FindByID(ctx, tx, contractID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("contract %d", contractID))
		}
		if !installationBillable[contract.Status] {
			return fmt.Errorf("%w: contract %s is %s, installation invoices require an approved contract",
				ErrInvalidState, contract.ContractNumber, contract.Status)
		}
		if !contract.EstimatedCost.IsPositive() {
			return fmt.Errorf("%w: contract %s has no positive estimated installation cost",
				ErrGuardViolation, contract.ContractNumber)
		}

		invoiceDate := dateOnly(time.Now())
		due := dateOnly(dueDate)
		if !due.After(invoiceDate) {
			return fmt.Errorf("%w: due date must be after the invoice date", ErrGuardViolation)
		}

		breakdown := billing.ComputeFee(contract.EstimatedCost, s.cfg.Billing.InstallationVATRate)
		invoice = &model.Invoice{
			InvoiceNumber:     s.nextInvoiceNumber(invoiceDate),
			Kind:              model.InvoiceKindInstallation,
			ContractID:        contract.ID,
			CustomerID:        contract.CustomerID,
			InvoiceDate:       invoiceDate,
			DueDate:           due,
			SubtotalAmount:    breakdown.SubtotalAmount,
			VATAmount:         breakdown.VATAmount,
			TotalAmount:       breakdown.TotalAmount,
			PaymentStatus:     model.PaymentStatusPending,
			AccountingStaffID: actorID(actor),
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectInvoice,
			SubjectID:   invoice.ID,
			Event:       "INSTALLATION_INVOICE_CREATED",
			Detail: fmt.Sprintf("invoice %s for contract %s, total %s",
				invoice.InvoiceNumber, contract.ContractNumber, breakdown.TotalAmount),
			ActorID:   actorID(actor),
			ActorName: actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.InvoiceIssued(ctx, invoice)
	}
	return invoice, nil
}

// CancelInvoice voids a pending invoice and returns its originating
// reading or fee to the unbilled pool. Cancelling anything but a
// PENDING invoice fails cleanly, so a retried cancel can never return
// the source to the pool twice.
func (s *BillingService) CancelInvoice(ctx context.Context, invoiceID uint, reason string, actor model.Principal) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		var err error
		invoice, err = s.invoices.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("invoice %d", invoiceID))
		}
		if invoice.PaymentStatus != model.PaymentStatusPending {
			return fmt.Errorf("%w: invoice %s is %s, only PENDING invoices can be cancelled",
				ErrInvalidState, invoice.InvoiceNumber, invoice.PaymentStatus)
		}

		invoice.PaymentStatus = model.PaymentStatusCancelled
		if err := s.invoices.Update(ctx, tx, invoice); err != nil {
			return err
		}

		if invoice.MeterReadingID != nil {
			reading, err := s.readings.FindByID(ctx, tx, *invoice.MeterReadingID)
			if err != nil {
				return err
			}
			reading.InvoiceID = nil
			if err := s.readings.Update(ctx, tx, reading); err != nil {
				return err
			}
		}
		if invoice.CalibrationFeeID != nil {
			fee, err := s.fees.FindByID(ctx, tx, *invoice.CalibrationFeeID)
			if err != nil {
				return err
			}
			fee.InvoiceID = nil
			if err := s.fees.Update(ctx, tx, fee); err != nil {
				return err
			}
		}

		detail := "invoice cancelled"
		if reason = strings.TrimSpace(reason); reason != "" {
			detail += ": " + reason
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectInvoice,
			SubjectID:   invoice.ID,
			Event:       "CANCELLED",
			Detail:      detail,
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkInvoicePaid records the payment collaborator's confirmation.
func (s *BillingService) MarkInvoicePaid(ctx context.Context, invoiceID uint, paidAt time.Time, actor model.Principal) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		var err error
		invoice, err = s.invoices.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return mapNotFound(err, fmt.Sprintf("invoice %d", invoiceID))
		}
		if invoice.PaymentStatus != model.PaymentStatusPending && invoice.PaymentStatus != model.PaymentStatusOverdue {
			return fmt.Errorf("%w: invoice %s is %s and cannot be paid",
				ErrInvalidState, invoice.InvoiceNumber, invoice.PaymentStatus)
		}

		paidDate := dateOnly(paidAt)
		invoice.PaymentStatus = model.PaymentStatusPaid
		invoice.PaidDate = &paidDate
		if err := s.invoices.Update(ctx, tx, invoice); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &model.AuditEntry{
			SubjectType: model.AuditSubjectInvoice,
			SubjectID:   invoice.ID,
			Event:       "PAID",
			Detail:      fmt.Sprintf("invoice %s paid on %s", invoice.InvoiceNumber, paidDate.Format("2006-01-02")),
			ActorID:     actorID(actor),
			ActorName:   actor.FullName,
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkOverdueInvoices applies the time-derived PENDING to OVERDUE
// transition and charges the configured late fee once per invoice. It
// returns the number of invoices flipped.
func (s *BillingService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	overdue, err := s.invoices.ListOverdue(ctx, nil, dateOnly(asOf))
	if err != nil {
		return 0, err
	}
	flipped := 0
	for i := range overdue {
		err := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
			// Re-read inside the transaction: a payment committed after
			// the candidate list was taken must win, not be overwritten.
			invoice, err := s.invoices.FindByID(ctx, tx, overdue[i].ID)
			if err != nil {
				return err
			}
			if invoice.PaymentStatus != model.PaymentStatusPending || !invoice.DueDate.Before(dateOnly(asOf)) {
				return nil
			}
			invoice.PaymentStatus = model.PaymentStatusOverdue
			invoice.LatePaymentFee = s.cfg.Billing.LateFee
			invoice.TotalAmount = invoice.TotalAmount.Add(s.cfg.Billing.LateFee)
			if err := s.invoices.Update(ctx, tx, invoice); err != nil {
				return err
			}
			flipped++
			return s.audits.Append(ctx, tx, &model.AuditEntry{
				SubjectType: model.AuditSubjectInvoice,
				SubjectID:   invoice.ID,
				Event:       "OVERDUE",
				Detail: fmt.Sprintf("invoice %s overdue since %s, late fee %s applied",
					invoice.InvoiceNumber, invoice.DueDate.Format("2006-01-02"), s.cfg.Billing.LateFee),
				ActorName: "scheduler",
			})
		})
		if err != nil {
			return flipped, err
		}
	}
	return flipped, nil
}

func (s *BillingService) GetInvoice(ctx context.Context, invoiceID uint) (*model.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, nil, invoiceID)
	if err != nil {
		return nil, mapNotFound(err, fmt.Sprintf("invoice %d", invoiceID))
	}
	return invoice, nil
}

// ListUnbilledReadings returns the contract's completed readings still
// waiting for an invoice, the accountant's billing worklist.
func (s *BillingService) ListUnbilledReadings(ctx context.Context, contractID uint) ([]model.MeterReading, error) {
	return s.readings.ListUnbilled(ctx, nil, contractID)
}

// ListInvoicesByPeriod backs the accounting export.
func (s *BillingService) ListInvoicesByPeriod(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	return s.invoices.ListByPeriod(ctx, nil, dateOnly(from), dateOnly(to).AddDate(0, 0, 1))
}

// nextInvoiceNumber issues a unique invoice number: date plus a random
// suffix, unique under the invoices table's constraint.
func (s *BillingService) nextInvoiceNumber(invoiceDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", invoiceDate.Format("20060102"), suffix)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
