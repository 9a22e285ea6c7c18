package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/wcpms-billing/internal/model"
)

// runTx executes fn inside a GORM transaction when db is available, or
// calls fn(nil) directly when db is nil (unit test mode with stub
// repositories). Every transition runs through here so that reading the
// current state, validating guards and writing the new state happen as
// one unit per entity.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func mapNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func actorID(p model.Principal) *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// Notifier is the notification collaborator. Delivery is best effort:
// the core never depends on it succeeding.
type Notifier interface {
	ContractStatusChanged(ctx context.Context, contract *model.Contract, event string)
	InvoiceIssued(ctx context.Context, invoice *model.Invoice)
}
