package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type RequestRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ApprovalRequest, error)
	Create(ctx context.Context, tx *gorm.DB, request *model.ApprovalRequest) error
	Update(ctx context.Context, tx *gorm.DB, request *model.ApprovalRequest) error
	ExistsPending(ctx context.Context, tx *gorm.DB, contractID uint, requestType model.RequestType) (bool, error)
}

type requestRepo struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *requestRepo) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ApprovalRequest, error) {
	var request model.ApprovalRequest
	if err := r.conn(tx).WithContext(ctx).First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepo) Create(ctx context.Context, tx *gorm.DB, request *model.ApprovalRequest) error {
	return r.conn(tx).WithContext(ctx).Create(request).Error
}

func (r *requestRepo) Update(ctx context.Context, tx *gorm.DB, request *model.ApprovalRequest) error {
	return r.conn(tx).WithContext(ctx).Save(request).Error
}

// ExistsPending guards against parallel requests of the same type on
// one contract.
func (r *requestRepo) ExistsPending(ctx context.Context, tx *gorm.DB, contractID uint, requestType model.RequestType) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.ApprovalRequest{}).
		Where("contract_id = ? AND type = ? AND status = ?", contractID, requestType, model.ApprovalStatusPending).
		Count(&count).Error
	return count > 0, err
}
