package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Coordinator runs one record's table operations as a single atomic unit of
// work and emits exactly one audit event per record. Records are processed
// strictly sequentially: the coordinator owns its transaction exclusively
// for the duration of one ProcessRecord call.
type Coordinator struct {
	store    Store
	adapter  Adapter
	executor *Executor
	audit    AuditSink
	log      *slog.Logger
	now      func() time.Time
}

// NewCoordinator wires a coordinator for one product adapter. The audit sink
// may be nil, in which case events are only logged.
func NewCoordinator(store Store, adapter Adapter, audit AuditSink, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:    store,
		adapter:  adapter,
		executor: NewExecutor(log),
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// ProcessRecord applies one record and returns its verdict. Business-rule
// failures (immutable violation, missing update target, malformed record)
// never escape as errors: they always resolve to a FAILED outcome. The
// transaction is committed only when every table operation lands green;
// any failure rolls back all writes of the record, including operations
// already applied earlier in the sequence.
func (c *Coordinator) ProcessRecord(ctx context.Context, rec IncomingRecord) RowOutcome {
	outcome := c.processRecord(ctx, rec)
	c.emitAudit(ctx, rec, outcome)
	return outcome
}

func (c *Coordinator) processRecord(ctx context.Context, rec IncomingRecord) RowOutcome {
	ops, err := c.adapter.Decompose(rec)
	if err != nil {
		// Shape failures happen before any transaction is opened.
		return RowOutcome{Status: RowFailed, FailureCause: err.Error()}
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return RowOutcome{
			Status:       RowFailed,
			FailureCause: fmt.Sprintf("begin transaction: %v", err),
		}
	}

	var results []TableOperationResult
	for _, op := range ops {
		schema, err := c.adapter.Registry().SchemaFor(op.Table)
		if err != nil {
			c.rollback(ctx, tx)
			return RowOutcome{Status: RowFailed, Tables: results, FailureCause: err.Error()}
		}

		res, err := c.executor.Execute(ctx, tx, schema, rec.Operation, op.Fields, rec.Override)
		if err != nil {
			c.rollback(ctx, tx)
			return RowOutcome{Status: RowFailed, Tables: results, FailureCause: err.Error()}
		}

		results = append(results, res)
		if res.Status.Failure() {
			c.rollback(ctx, tx)
			return RowOutcome{
				Status:       RowFailed,
				Tables:       results,
				FailureCause: failureCause(res),
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return RowOutcome{
			Status:       RowFailed,
			Tables:       results,
			FailureCause: fmt.Sprintf("commit: %v", err),
		}
	}

	return RowOutcome{Status: RowSuccess, Tables: results}
}

func (c *Coordinator) rollback(ctx context.Context, tx Tx) {
	if err := tx.Rollback(ctx); err != nil {
		c.log.Error("rollback failed", "product", c.adapter.Code(), "error", err)
	}
}

// emitAudit builds and records the single audit event for this record. A
// sink failure is an infrastructure problem of the audit channel, not of the
// row: the outcome stands, and the failure is logged loudly instead.
func (c *Coordinator) emitAudit(ctx context.Context, rec IncomingRecord, outcome RowOutcome) {
	ev := AuditEvent{
		ID:           uuid.New().String(),
		Timestamp:    c.now().UTC(),
		BatchID:      rec.BatchID,
		Line:         rec.Line,
		TicketRef:    rec.TicketRef,
		Product:      rec.Product,
		SubmittedBy:  rec.SubmittedBy,
		Operation:    rec.Operation,
		Override:     rec.Override,
		Tables:       outcome.Tables,
		Status:       outcome.Status,
		FailureCause: outcome.FailureCause,
	}

	if c.audit != nil {
		if err := c.audit.Record(ctx, ev); err != nil {
			c.log.Error("audit sink failure",
				"ticket", rec.TicketRef, "product", rec.Product, "error", err)
		}
	}

	lvl := slog.LevelInfo
	if outcome.Status == RowFailed {
		lvl = slog.LevelWarn
	}
	c.log.Log(ctx, lvl, "record processed",
		"ticket", rec.TicketRef,
		"product", rec.Product,
		"operation", rec.Operation,
		"override", rec.Override,
		"status", outcome.Status,
		"tables", len(outcome.Tables),
		"cause", outcome.FailureCause,
	)
}

// failureCause describes a hard table failure for the row outcome.
func failureCause(res TableOperationResult) string {
	switch res.Status {
	case StatusUpdateTargetMissing:
		return fmt.Sprintf("%s: no existing row for key %s; use INSERT", res.Table, keyString(res.Key))
	case StatusRejectedImmutable:
		return fmt.Sprintf("%s: immutable fields changed without override: %v", res.Table, res.Violations)
	default:
		return fmt.Sprintf("%s: %s", res.Table, res.Status)
	}
}
