package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Customer, error)
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *customerRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Customer, error) {
	var customer model.Customer
	if err := r.conn(tx).WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
