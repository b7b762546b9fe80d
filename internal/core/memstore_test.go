package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// memStore is an in-memory Store for tests. Writes buffer in the
// transaction and only land in rows on Commit, so rollback behavior is
// observable.
type memStore struct {
	// rows: table -> encoded key -> column values
	rows map[string]map[string]map[string]string
	// keys: table -> natural key fields, used to index inserted rows
	keys     map[string][]string
	beginErr error
	txs      []*memTx
}

func newMemStore(schemas ...TableSchema) *memStore {
	s := &memStore{
		rows: make(map[string]map[string]map[string]string),
		keys: make(map[string][]string),
	}
	for _, schema := range schemas {
		s.keys[schema.Name] = schema.NaturalKey
	}
	return s
}

// seed places a row directly in the store, bypassing any transaction.
func (s *memStore) seed(table string, key map[string]string, values map[string]string) {
	if s.rows[table] == nil {
		s.rows[table] = make(map[string]map[string]string)
	}
	row := make(map[string]string, len(values))
	for k, v := range values {
		row[k] = v
	}
	s.rows[table][encodeKey(key)] = row
}

func (s *memStore) get(table string, key map[string]string) (map[string]string, bool) {
	row, ok := s.rows[table][encodeKey(key)]
	return row, ok
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx := &memTx{store: s}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *memStore) lastTx() *memTx {
	if len(s.txs) == 0 {
		return nil
	}
	return s.txs[len(s.txs)-1]
}

type bufferedWrite struct {
	op     string // "insert" or "update"
	table  string
	key    map[string]string
	values map[string]string
}

type memTx struct {
	store      *memStore
	writes     []bufferedWrite
	committed  bool
	rolledBack bool

	// error injection, keyed by table name
	fetchErr  map[string]error
	insertErr map[string]error
	updateErr map[string]error
	commitErr error
}

func (tx *memTx) FetchByKey(ctx context.Context, table string, fields []string, key map[string]string) (map[string]string, bool, error) {
	if err := tx.fetchErr[table]; err != nil {
		return nil, false, err
	}
	row, ok := tx.store.rows[table][encodeKey(key)]
	if !ok {
		return nil, false, nil
	}
	snapshot := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, present := row[f]; present {
			snapshot[f] = v
		}
	}
	return snapshot, true, nil
}

func (tx *memTx) Insert(ctx context.Context, table string, values map[string]string) error {
	if err := tx.insertErr[table]; err != nil {
		return err
	}
	tx.writes = append(tx.writes, bufferedWrite{op: "insert", table: table, values: copyMap(values)})
	return nil
}

func (tx *memTx) Update(ctx context.Context, table string, values map[string]string, key map[string]string) error {
	if err := tx.updateErr[table]; err != nil {
		return err
	}
	tx.writes = append(tx.writes, bufferedWrite{op: "update", table: table, key: copyMap(key), values: copyMap(values)})
	return nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	if tx.rolledBack {
		return errors.New("commit after rollback")
	}
	for _, w := range tx.writes {
		switch w.op {
		case "insert":
			// Natural key travels inside the value map on insert.
			key := make(map[string]string)
			for _, k := range tx.store.keys[w.table] {
				key[k] = w.values[k]
			}
			tx.store.seed(w.table, key, w.values)
		case "update":
			row, ok := tx.store.rows[w.table][encodeKey(w.key)]
			if !ok {
				return fmt.Errorf("update of missing row in %s", w.table)
			}
			for k, v := range w.values {
				row[k] = v
			}
		}
	}
	tx.committed = true
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	tx.writes = nil
	tx.rolledBack = true
	return nil
}

// encodeKey canonicalizes a key map into a deterministic row index.
func encodeKey(key map[string]string) string {
	keys := make([]string, 0, len(key))
	for k := range key {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+key[k])
	}
	return strings.Join(parts, "|")
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
