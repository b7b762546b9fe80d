package core

import (
	"context"
	"time"
)

// Operation is the requested write mode for a record.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
)

// Valid reports whether op is one of the two supported operations.
func (op Operation) Valid() bool {
	return op == OpInsert || op == OpUpdate
}

// IncomingRecord is one raw row from a batch file. Field names carry their
// section prefix (e.g. "plaza.plaza_id"); the product adapter splits them
// into per-table field maps.
type IncomingRecord struct {
	Product     string
	SubmittedBy string
	TicketRef   string
	Operation   Operation
	Override    bool

	// BatchID identifies the file this record came from, for audit
	// correlation. Set by the intake layer.
	BatchID string
	// Line is the 1-based line number within the source file.
	Line int

	Fields map[string]string
}

// TableOperation is one table's share of a record, in adapter-declared order.
type TableOperation struct {
	Table  string
	Fields map[string]string
}

// TableStatus classifies the outcome of a single table operation.
type TableStatus string

const (
	StatusInserted            TableStatus = "INSERTED"
	StatusUpdated             TableStatus = "UPDATED"
	StatusSkippedExisting     TableStatus = "SKIPPED_EXISTING"
	StatusUpdateTargetMissing TableStatus = "UPDATE_TARGET_MISSING"
	StatusRejectedImmutable   TableStatus = "REJECTED_IMMUTABLE"
)

// Failure reports whether the status fails the row.
func (s TableStatus) Failure() bool {
	return s == StatusUpdateTargetMissing || s == StatusRejectedImmutable
}

// FieldDiff records one field's transition during an update.
type FieldDiff struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Mutable bool   `json:"mutable"`
	Changed bool   `json:"changed"`
}

// TableOperationResult is the per-table verdict produced by the executor.
type TableOperationResult struct {
	Table      string            `json:"table"`
	Status     TableStatus       `json:"status"`
	Key        map[string]string `json:"key"`
	Diffs      []FieldDiff       `json:"diffs,omitempty"`
	Violations []string          `json:"violations,omitempty"`
}

// RowStatus is the overall verdict for one record.
type RowStatus string

const (
	RowSuccess RowStatus = "SUCCESS"
	RowFailed  RowStatus = "FAILED"
)

// RowOutcome aggregates all table results for one record. It is the unit
// handed back to the dispatcher and mirrored into the audit trail.
type RowOutcome struct {
	Status       RowStatus
	Tables       []TableOperationResult
	FailureCause string
}

// AuditEvent is the immutable record of one row's processing. Append-only:
// the engine never mutates or deletes emitted events.
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	BatchID      string                 `json:"batchId,omitempty"`
	Line         int                    `json:"line,omitempty"`
	TicketRef    string                 `json:"ticketRef"`
	Product      string                 `json:"product"`
	SubmittedBy  string                 `json:"submittedBy"`
	Operation    Operation              `json:"operation"`
	Override     bool                   `json:"override"`
	Tables       []TableOperationResult `json:"tables,omitempty"`
	Status       RowStatus              `json:"status"`
	FailureCause string                 `json:"failureCause,omitempty"`
}

// AuditSink receives one event per processed record.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// Adapter is the per-product capability set: it owns the product's schema
// registry and knows how to split a flat record into ordered table
// operations. Implementations are constructed once at startup and must be
// safe for reuse across records.
type Adapter interface {
	Code() string
	Registry() *Registry
	Decompose(rec IncomingRecord) ([]TableOperation, error)
}

// Store opens one transaction per record.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the data-store session owned by the coordinator for the duration of
// one record. Point reads, inserts and updates address rows by natural key;
// values travel as strings, matching the batch-file representation.
type Tx interface {
	// FetchByKey returns the current values of fields for the row matching
	// key, or ok=false when no such row exists.
	FetchByKey(ctx context.Context, table string, fields []string, key map[string]string) (map[string]string, bool, error)
	Insert(ctx context.Context, table string, values map[string]string) error
	Update(ctx context.Context, table string, values map[string]string, key map[string]string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
