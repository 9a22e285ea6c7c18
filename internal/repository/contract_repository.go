package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

// ContractRepository persists contracts. Methods accept an optional tx
// so the service layer can group a read-validate-write transition into
// one transaction; a nil tx falls back to the repository's own handle.
type ContractRepository interface {
	DB() *gorm.DB
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Contract, error)
	Create(ctx context.Context, tx *gorm.DB, contract *model.Contract) error
	Update(ctx context.Context, tx *gorm.DB, contract *model.Contract) error
	ListExpirable(ctx context.Context, tx *gorm.DB, asOf time.Time) ([]model.Contract, error)
	CountByNumberPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error)
}

type contractRepo struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepo{db: db}
}

func (r *contractRepo) DB() *gorm.DB { return r.db }

func (r *contractRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *contractRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Contract, error) {
	var contract model.Contract
	err := r.conn(tx).WithContext(ctx).
		Preload("Customer").
		First(&contract, id).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepo) Create(ctx context.Context, tx *gorm.DB, contract *model.Contract) error {
	return r.conn(tx).WithContext(ctx).Omit("Customer").Create(contract).Error
}

func (r *contractRepo) Update(ctx context.Context, tx *gorm.DB, contract *model.Contract) error {
	return r.conn(tx).WithContext(ctx).Omit("Customer").Save(contract).Error
}

// ListExpirable returns active contracts whose end date has passed.
func (r *contractRepo) ListExpirable(ctx context.Context, tx *gorm.DB, asOf time.Time) ([]model.Contract, error) {
	var contracts []model.Contract
	err := r.conn(tx).WithContext(ctx).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", model.ContractStatusActive, asOf).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *contractRepo) CountByNumberPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Contract{}).
		Where("contract_number LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
