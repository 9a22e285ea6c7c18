package model

import "time"

const (
	AuditSubjectContract = "CONTRACT"
	AuditSubjectInvoice  = "INVOICE"
	AuditSubjectRequest  = "REQUEST"
)

// AuditEntry is one append-only line in the system audit trail. Every
// successful lifecycle or billing transition writes one entry in the
// same transaction. Entries are never updated or deleted.
type AuditEntry struct {
	ID          uint
	SubjectType string
	SubjectID   uint
	Event       string
	Detail      string
	ActorID     *uint
	ActorName   string
	CreatedAt   time.Time
}
