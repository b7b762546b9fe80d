package core

import (
	"sort"
	"strings"
)

// Decision is the mutability verdict for one table operation. Allowed lists
// the fields that may be written; Violations lists incoming fields whose
// change is disallowed. Diffs carries the field-level transitions for every
// incoming field that would actually change an existing row.
type Decision struct {
	Allowed    []string
	Violations []string
	Diffs      []FieldDiff
}

// Evaluate computes the set of permitted writes for one table. It is pure:
// the snapshot is supplied by the caller, and no I/O happens here.
//
// Rules:
//   - INSERT with no existing row: every provided field is allowed.
//   - INSERT against an existing row: nothing is allowed; the executor
//     resolves this as a skip.
//   - UPDATE with no existing row: nothing is allowed; target missing.
//   - UPDATE without override: a field is allowed iff it is mutable or its
//     incoming value equals the stored value. A no-op write is never a
//     violation.
//   - UPDATE with override: everything is allowed, but diffs still flag
//     changed immutable fields with Mutable=false for the audit trail.
func Evaluate(schema TableSchema, snapshot map[string]string, exists bool, incoming map[string]string, op Operation, override bool) Decision {
	var d Decision

	switch {
	case op == OpInsert && !exists:
		d.Allowed = sortedKeys(incoming)
		return d
	case op == OpInsert || !exists:
		// Insert against an existing row, or update of a missing one.
		// Either way no field may be written; the executor maps the
		// condition to its status.
		return d
	}

	for _, field := range sortedKeys(incoming) {
		newVal := incoming[field]
		oldVal := snapshot[field]
		changed := fieldChanged(oldVal, newVal)
		mutable := schema.IsMutable(field)

		if changed {
			d.Diffs = append(d.Diffs, FieldDiff{
				Field:   field,
				Old:     oldVal,
				New:     newVal,
				Mutable: mutable,
				Changed: true,
			})
		}

		switch {
		case override, mutable, !changed:
			d.Allowed = append(d.Allowed, field)
		default:
			d.Violations = append(d.Violations, field)
		}
	}

	return d
}

// fieldChanged compares stored and incoming values the way the batch files
// represent them: as trimmed strings. An empty incoming value means "not
// supplied" and never counts as a change.
func fieldChanged(oldVal, newVal string) bool {
	incoming := strings.TrimSpace(newVal)
	if incoming == "" {
		return false
	}
	return incoming != strings.TrimSpace(oldVal)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
