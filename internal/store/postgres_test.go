package store

import (
	"reflect"
	"testing"
)

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect("netcacq_plaza_dtls",
		[]string{"plaza_id", "plaza_name", "plaza_status"},
		map[string]string{"plaza_id": "PZ001"})

	want := `SELECT "plaza_id"::text, "plaza_name"::text, "plaza_status"::text FROM "netcacq_plaza_dtls" WHERE "plaza_id" = $1`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"PZ001"}) {
		t.Errorf("args = %v, want [PZ001]", args)
	}
}

func TestBuildSelect_CompositeKey(t *testing.T) {
	query, args := buildSelect("netcacq_plaza_lane_dtls",
		[]string{"lane_status"},
		map[string]string{"plaza_id": "PZ001", "lane_id": "L01"})

	// Key columns sort alphabetically: lane_id before plaza_id.
	want := `SELECT "lane_status"::text FROM "netcacq_plaza_lane_dtls" WHERE "lane_id" = $1 AND "plaza_id" = $2`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"L01", "PZ001"}) {
		t.Errorf("args = %v, want [L01 PZ001]", args)
	}
}

func TestBuildInsert(t *testing.T) {
	query, args := buildInsert("netcacq_plaza_dtls",
		map[string]string{"plaza_name": "Kherki Daula", "plaza_id": "PZ001"},
		"created_ts", "modified_ts")

	want := `INSERT INTO "netcacq_plaza_dtls" ("plaza_id", "plaza_name", "created_ts", "modified_ts") VALUES ($1, $2, now(), now())`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"PZ001", "Kherki Daula"}) {
		t.Errorf("args = %v, want sorted column order", args)
	}
}

func TestBuildInsert_SuppliedTimestampDiscarded(t *testing.T) {
	// modified_ts is a declared field, so a batch row may carry it. The
	// stamp must win and the column must appear exactly once.
	query, args := buildInsert("netcacq_plaza_dtls",
		map[string]string{"plaza_id": "PZ001", "modified_ts": "2024-01-01 00:00:00"},
		"created_ts", "modified_ts")

	want := `INSERT INTO "netcacq_plaza_dtls" ("plaza_id", "created_ts", "modified_ts") VALUES ($1, now(), now())`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"PZ001"}) {
		t.Errorf("args = %v, want [PZ001]", args)
	}
}

func TestBuildInsert_NoTimestampColumns(t *testing.T) {
	query, _ := buildInsert("netcacq_plaza_dtls",
		map[string]string{"plaza_id": "PZ001"}, "", "")

	want := `INSERT INTO "netcacq_plaza_dtls" ("plaza_id") VALUES ($1)`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
}

func TestBuildUpdate(t *testing.T) {
	query, args := buildUpdate("netcacq_plaza_dtls",
		map[string]string{"plaza_status": "INACTIVE", "merchant_id": "M042"},
		map[string]string{"plaza_id": "PZ001"},
		"modified_ts")

	want := `UPDATE "netcacq_plaza_dtls" SET "merchant_id" = $1, "plaza_status" = $2, "modified_ts" = now() WHERE "plaza_id" = $3`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"M042", "INACTIVE", "PZ001"}) {
		t.Errorf("args = %v, want set values then key", args)
	}
}

func TestBuildUpdate_SuppliedTimestampDiscarded(t *testing.T) {
	query, args := buildUpdate("netcacq_plaza_dtls",
		map[string]string{"plaza_status": "INACTIVE", "modified_ts": "2024-01-01 00:00:00"},
		map[string]string{"plaza_id": "PZ001"},
		"modified_ts")

	want := `UPDATE "netcacq_plaza_dtls" SET "plaza_status" = $1, "modified_ts" = now() WHERE "plaza_id" = $2`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"INACTIVE", "PZ001"}) {
		t.Errorf("args = %v, want [INACTIVE PZ001]", args)
	}
}

func TestBuildUpdate_CompositeKey(t *testing.T) {
	query, args := buildUpdate("netcacq_plaza_lane_dtls",
		map[string]string{"lane_status": "ACTIVE"},
		map[string]string{"plaza_id": "PZ001", "lane_id": "L01"},
		"")

	want := `UPDATE "netcacq_plaza_lane_dtls" SET "lane_status" = $1 WHERE "lane_id" = $2 AND "plaza_id" = $3`
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"ACTIVE", "L01", "PZ001"}) {
		t.Errorf("args = %v, want value then sorted key", args)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plaza_id", `"plaza_id"`},
		{`odd"name`, `"odd""name"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
