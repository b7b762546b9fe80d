package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultAuditLimit caps unpaginated audit queries.
const DefaultAuditLimit = 50

// AuditLog persists audit events to Postgres and serves filtered queries
// over them. It implements AuditSink. The backing table is append-only:
// there is no update or delete path.
type AuditLog struct {
	pool        *pgxpool.Pool
	exportLimit int
}

// NewAuditLog returns an audit log writing to pool. exportLimit bounds CSV
// exports; zero selects a conservative default.
func NewAuditLog(pool *pgxpool.Pool, exportLimit int) *AuditLog {
	if exportLimit <= 0 {
		exportLimit = 10000
	}
	return &AuditLog{pool: pool, exportLimit: exportLimit}
}

// Record appends one event. Per-table changes travel as a JSON document so
// the field-level diffs survive verbatim.
func (a *AuditLog) Record(ctx context.Context, ev AuditEvent) error {
	tablesJSON, err := json.Marshal(ev.Tables)
	if err != nil {
		return fmt.Errorf("marshal table results: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO onboarding_audit
			(id, occurred_at, batch_id, line, ticket_ref, product,
			 submitted_by, operation, override_used, status, failure_cause, tables)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.ID, ev.Timestamp, nullable(ev.BatchID), ev.Line, ev.TicketRef, ev.Product,
		ev.SubmittedBy, string(ev.Operation), ev.Override, string(ev.Status),
		nullable(ev.FailureCause), tablesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AuditFilter narrows audit queries. Zero values mean "any".
type AuditFilter struct {
	Product   string
	TicketRef string
	Status    RowStatus
	BatchID   string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query returns matching events newest-first, plus the total match count for
// pagination.
func (a *AuditLog) Query(ctx context.Context, f AuditFilter) ([]AuditEvent, int64, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}

	where, args := f.whereClause()

	var total int64
	if err := a.pool.QueryRow(ctx, "SELECT COUNT(*) FROM onboarding_audit"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `SELECT id, occurred_at, batch_id, line, ticket_ref, product,
			submitted_by, operation, override_used, status, failure_cause, tables
		FROM onboarding_audit` + where +
		fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]AuditEvent, 0)
	for rows.Next() {
		var (
			ev         AuditEvent
			batchID    *string
			cause      *string
			op, status string
			tablesJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &batchID, &ev.Line, &ev.TicketRef,
			&ev.Product, &ev.SubmittedBy, &op, &ev.Override, &status, &cause, &tablesJSON); err != nil {
			return nil, 0, err
		}
		ev.Operation = Operation(op)
		ev.Status = RowStatus(status)
		if batchID != nil {
			ev.BatchID = *batchID
		}
		if cause != nil {
			ev.FailureCause = *cause
		}
		if len(tablesJSON) > 0 {
			_ = json.Unmarshal(tablesJSON, &ev.Tables)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// ExportCSV writes matching events as CSV, one line per event with the
// per-table change list serialized in the last column.
func (a *AuditLog) ExportCSV(ctx context.Context, f AuditFilter) (io.Reader, error) {
	f.Limit = a.exportLimit
	f.Offset = 0

	events, _, err := a.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("ID,Timestamp,Ticket,Product,Submitter,Operation,Override,Status,Cause,Changes\n")
	for _, ev := range events {
		changes, _ := json.Marshal(ev.Tables)
		fields := []string{
			ev.ID,
			ev.Timestamp.Format(time.RFC3339),
			ev.TicketRef,
			ev.Product,
			ev.SubmittedBy,
			string(ev.Operation),
			fmt.Sprintf("%t", ev.Override),
			string(ev.Status),
			ev.FailureCause,
			string(changes),
		}
		for i, fv := range fields {
			fields[i] = csvEscape(fv)
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteByte('\n')
	}

	return strings.NewReader(sb.String()), nil
}

// whereClause builds the filter's WHERE text with positional args.
func (f AuditFilter) whereClause() (string, []any) {
	var conds []string
	var args []any

	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Product != "" {
		add("product = $%d", f.Product)
	}
	if f.TicketRef != "" {
		add("ticket_ref = $%d", f.TicketRef)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.BatchID != "" {
		add("batch_id = $%d", f.BatchID)
	}
	if !f.StartTime.IsZero() {
		add("occurred_at >= $%d", f.StartTime)
	}
	if !f.EndTime.IsZero() {
		add("occurred_at <= $%d", f.EndTime)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// csvEscape quotes a field when it contains CSV metacharacters.
func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
