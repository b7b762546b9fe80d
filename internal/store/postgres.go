// Package store provides the Postgres implementation of the core data-store
// boundary. SQL is generated with sorted column order so statements are
// deterministic for a given record, and identifiers are always quoted.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

// Option configures a Postgres store.
type Option func(*Postgres)

// WithTimestamps names the columns stamped with now() on write: created on
// insert, modified on both insert and update. Empty names disable stamping.
func WithTimestamps(created, modified string) Option {
	return func(p *Postgres) {
		p.createdCol = created
		p.modifiedCol = modified
	}
}

// Postgres implements core.Store over a pgx connection pool.
type Postgres struct {
	pool        *pgxpool.Pool
	createdCol  string
	modifiedCol string
}

// NewPostgres wraps pool as a row store.
func NewPostgres(pool *pgxpool.Pool, opts ...Option) *Postgres {
	p := &Postgres{pool: pool}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Begin opens one transaction; the caller owns commit/rollback.
func (p *Postgres) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTx{tx: tx, createdCol: p.createdCol, modifiedCol: p.modifiedCol}, nil
}

type pgTx struct {
	tx          pgx.Tx
	createdCol  string
	modifiedCol string
}

// FetchByKey reads the current values of fields for the row matching key.
// Columns are cast to text so the snapshot compares cleanly against the
// batch file's string values; NULL columns are omitted from the map.
func (t *pgTx) FetchByKey(ctx context.Context, table string, fields []string, key map[string]string) (map[string]string, bool, error) {
	query, args := buildSelect(table, fields, key)

	vals := make([]*string, len(fields))
	dest := make([]any, len(fields))
	for i := range vals {
		dest[i] = &vals[i]
	}

	err := t.tx.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	snapshot := make(map[string]string, len(fields))
	for i, f := range fields {
		if vals[i] != nil {
			snapshot[f] = *vals[i]
		}
	}
	return snapshot, true, nil
}

func (t *pgTx) Insert(ctx context.Context, table string, values map[string]string) error {
	query, args := buildInsert(table, values, t.createdCol, t.modifiedCol)
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) Update(ctx context.Context, table string, values map[string]string, key map[string]string) error {
	query, args := buildUpdate(table, values, key, t.modifiedCol)
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// buildSelect generates the point read for one natural key.
func buildSelect(table string, fields []string, key map[string]string) (string, []any) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdentifier(f) + "::text"
	}

	where, args := keyConditions(key, 1)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(cols, ", "), quoteIdentifier(table), where)
	return query, args
}

// buildInsert generates an INSERT covering every provided field, plus the
// timestamp columns when configured. The timestamp columns always carry
// now(): a batch value supplied for them is discarded so the statement never
// names a column twice.
func buildInsert(table string, values map[string]string, createdCol, modifiedCol string) (string, []any) {
	keys := sortedKeys(values)

	cols := make([]string, 0, len(keys)+2)
	placeholders := make([]string, 0, len(keys)+2)
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		if k == createdCol || k == modifiedCol {
			continue
		}
		cols = append(cols, quoteIdentifier(k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, values[k])
	}
	if createdCol != "" {
		cols = append(cols, quoteIdentifier(createdCol))
		placeholders = append(placeholders, "now()")
	}
	if modifiedCol != "" {
		cols = append(cols, quoteIdentifier(modifiedCol))
		placeholders = append(placeholders, "now()")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// buildUpdate generates an UPDATE of the changed fields addressed by key.
// As with inserts, a supplied value for the modified column is discarded in
// favor of now().
func buildUpdate(table string, values map[string]string, key map[string]string, modifiedCol string) (string, []any) {
	keys := sortedKeys(values)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+len(key))
	for _, k := range keys {
		if k == modifiedCol {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(k), len(args)+1))
		args = append(args, values[k])
	}
	if modifiedCol != "" {
		sets = append(sets, quoteIdentifier(modifiedCol)+" = now()")
	}

	where, whereArgs := keyConditions(key, len(args)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdentifier(table), strings.Join(sets, ", "), where)
	return query, args
}

// keyConditions renders the natural-key predicate with placeholders
// starting at firstArg. Keys are sorted for stable statements.
func keyConditions(key map[string]string, firstArg int) (string, []any) {
	keys := sortedKeys(key)

	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(k), firstArg+i)
		args[i] = key[k]
	}
	return strings.Join(conds, " AND "), args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quoteIdentifier wraps an identifier in double quotes, escaping embedded
// quotes. Names are validated at registry construction.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
