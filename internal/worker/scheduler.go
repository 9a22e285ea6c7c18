// Package worker runs the periodic housekeeping jobs: expiring
// contracts past their end date and flagging unpaid invoices overdue.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/wcpms-billing/internal/service"
)

type Scheduler struct {
	contracts *service.ContractService
	billing   *service.BillingService
	interval  time.Duration
	log       zerolog.Logger
}

func NewScheduler(contracts *service.ContractService, billing *service.BillingService, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		contracts: contracts,
		billing:   billing,
		interval:  interval,
		log:       log,
	}
}

// Start runs the sweep loop until ctx is cancelled. One sweep fires
// immediately so a restarted service catches up without waiting a tick.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now()

	expired, err := s.contracts.ExpireContracts(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("contract expiry sweep failed")
	} else if expired > 0 {
		s.log.Info().Int("count", expired).Msg("contracts expired")
	}

	overdue, err := s.billing.MarkOverdueInvoices(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("overdue invoice sweep failed")
	} else if overdue > 0 {
		s.log.Info().Int("count", overdue).Msg("invoices marked overdue")
	}
}
