package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type TariffRepository interface {
	// ActiveByPriceType returns the active tariff for a price type,
	// tiers ordered by ascending band bound.
	ActiveByPriceType(ctx context.Context, tx *gorm.DB, priceTypeCode string) (*model.Tariff, error)
}

type tariffRepo struct {
	db *gorm.DB
}

func NewTariffRepository(db *gorm.DB) TariffRepository {
	return &tariffRepo{db: db}
}

func (r *tariffRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *tariffRepo) ActiveByPriceType(ctx context.Context, tx *gorm.DB, priceTypeCode string) (*model.Tariff, error) {
	var tariff model.Tariff
	err := r.conn(tx).WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("up_to_m3 ASC NULLS LAST")
		}).
		Where("price_type_code = ? AND status = ?", priceTypeCode, model.TariffStatusActive).
		Order("effective_date DESC").
		First(&tariff).Error
	if err != nil {
		return nil, err
	}
	return &tariff, nil
}
