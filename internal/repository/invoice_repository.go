package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type InvoiceRepository interface {
	DB() *gorm.DB
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Invoice, error)
	Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error
	Update(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error
	ListOverdue(ctx context.Context, tx *gorm.DB, asOf time.Time) ([]model.Invoice, error)
	ListByPeriod(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]model.Invoice, error)
}

type invoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) DB() *gorm.DB { return r.db }

func (r *invoiceRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := r.conn(tx).WithContext(ctx).First(&invoice, id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	return r.conn(tx).WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepo) Update(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	return r.conn(tx).WithContext(ctx).Save(invoice).Error
}

// ListOverdue returns pending invoices whose due date has passed.
func (r *invoiceRepo) ListOverdue(ctx context.Context, tx *gorm.DB, asOf time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.conn(tx).WithContext(ctx).
		Where("payment_status = ? AND due_date < ?", model.PaymentStatusPending, asOf).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepo) ListByPeriod(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.conn(tx).WithContext(ctx).
		Where("invoice_date >= ? AND invoice_date < ?", from, to).
		Order("invoice_date ASC, id ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
