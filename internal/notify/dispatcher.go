// Package notify pushes lifecycle and billing events onto Redis lists
// consumed by the customer-facing notification workers. Delivery is
// best effort: a failed push is logged, never propagated to the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nurpe/wcpms-billing/internal/model"
)

const (
	contractQueue = "wcpms:notify:contracts"
	invoiceQueue  = "wcpms:notify:invoices"

	pushTimeout = 3 * time.Second
)

type Dispatcher struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewDispatcher returns a dispatcher over the given Redis client. A nil
// client disables dispatch, which keeps local setups without Redis working.
func NewDispatcher(client *redis.Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{client: client, log: log}
}

type contractEvent struct {
	ContractID     uint   `json:"contract_id"`
	ContractNumber string `json:"contract_number"`
	CustomerID     *uint  `json:"customer_id,omitempty"`
	Event          string `json:"event"`
	Status         string `json:"status"`
	OccurredAt     string `json:"occurred_at"`
}

type invoiceEvent struct {
	InvoiceID     uint   `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	ContractID    uint   `json:"contract_id"`
	Kind          string `json:"kind"`
	TotalAmount   string `json:"total_amount"`
	DueDate       string `json:"due_date"`
	OccurredAt    string `json:"occurred_at"`
}

func (d *Dispatcher) ContractStatusChanged(ctx context.Context, contract *model.Contract, event string) {
	if d == nil || d.client == nil || contract == nil {
		return
	}
	d.push(ctx, contractQueue, contractEvent{
		ContractID:     contract.ID,
		ContractNumber: contract.ContractNumber,
		CustomerID:     contract.CustomerID,
		Event:          event,
		Status:         string(contract.Status),
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (d *Dispatcher) InvoiceIssued(ctx context.Context, invoice *model.Invoice) {
	if d == nil || d.client == nil || invoice == nil {
		return
	}
	d.push(ctx, invoiceQueue, invoiceEvent{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ContractID:    invoice.ContractID,
		Kind:          string(invoice.Kind),
		TotalAmount:   invoice.TotalAmount.String(),
		DueDate:       invoice.DueDate.Format("2006-01-02"),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (d *Dispatcher) push(ctx context.Context, queue string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.Error().Err(err).Str("queue", queue).Msg("failed to encode notification")
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := d.client.LPush(pushCtx, queue, body).Err(); err != nil {
		d.log.Error().Err(err).Str("queue", queue).Msg("failed to push notification")
	}
}
