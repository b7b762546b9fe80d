package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Executor performs one table operation inside the coordinator's
// transaction. It never commits or rolls back; transaction lifecycle belongs
// to the coordinator.
type Executor struct {
	log *slog.Logger
}

// NewExecutor returns an executor logging through log. A nil logger falls
// back to slog.Default().
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{log: log}
}

// Execute fetches the current row for the operation's natural key, asks the
// mutability evaluator for a decision, and applies the resulting write. All
// non-infrastructure outcomes are expressed as statuses on the returned
// result; only persistence faults surface as errors.
func (e *Executor) Execute(ctx context.Context, tx Tx, schema TableSchema, op Operation, incoming map[string]string, override bool) (TableOperationResult, error) {
	res := TableOperationResult{Table: schema.Name}

	key, err := naturalKeyOf(schema, incoming)
	if err != nil {
		return res, err
	}
	res.Key = key

	snapshot, exists, err := tx.FetchByKey(ctx, schema.Name, schema.Fields, key)
	if err != nil {
		return res, &PersistenceError{Table: schema.Name, Op: "fetch", Err: err}
	}

	decision := Evaluate(schema, snapshot, exists, incoming, op, override)

	switch {
	case op == OpInsert && !exists:
		if err := tx.Insert(ctx, schema.Name, incoming); err != nil {
			return res, &PersistenceError{Table: schema.Name, Op: "insert", Err: err}
		}
		res.Status = StatusInserted

	case op == OpInsert:
		// Idempotent-by-skip: re-submitting a partially processed file
		// must not fail on rows that already landed.
		e.log.Warn("record already exists, skipping insert",
			"table", schema.Name, "key", keyString(key))
		res.Status = StatusSkippedExisting

	case !exists:
		res.Status = StatusUpdateTargetMissing

	case len(decision.Violations) > 0 && !override:
		res.Status = StatusRejectedImmutable
		res.Violations = decision.Violations
		res.Diffs = decision.Diffs

	default:
		changed := changedValues(decision, incoming)
		if len(changed) > 0 {
			if err := tx.Update(ctx, schema.Name, changed, key); err != nil {
				return res, &PersistenceError{Table: schema.Name, Op: "update", Err: err}
			}
		}
		res.Status = StatusUpdated
		res.Diffs = decision.Diffs
	}

	return res, nil
}

// naturalKeyOf extracts the natural-key values from the incoming field map.
// Adapters validate key presence during decomposition, so a miss here means
// a registry/adapter mismatch.
func naturalKeyOf(schema TableSchema, incoming map[string]string) (map[string]string, error) {
	key := make(map[string]string, len(schema.NaturalKey))
	for _, k := range schema.NaturalKey {
		v := strings.TrimSpace(incoming[k])
		if v == "" {
			return nil, fmt.Errorf("table %s: natural key field %q missing from record", schema.Name, k)
		}
		key[k] = v
	}
	return key, nil
}

// changedValues selects the allowed fields whose value actually changes.
// Unchanged allowed fields are left out of the write so no-op updates touch
// nothing.
func changedValues(d Decision, incoming map[string]string) map[string]string {
	changedSet := make(map[string]bool, len(d.Diffs))
	for _, diff := range d.Diffs {
		changedSet[diff.Field] = true
	}

	values := make(map[string]string)
	for _, field := range d.Allowed {
		if changedSet[field] {
			values[field] = strings.TrimSpace(incoming[field])
		}
	}
	return values
}

// keyString renders a natural key for log lines, composite keys joined with
// a slash the way the source files reference them.
func keyString(key map[string]string) string {
	parts := make([]string, 0, len(key))
	for _, k := range sortedKeys(key) {
		parts = append(parts, key[k])
	}
	return strings.Join(parts, "/")
}
