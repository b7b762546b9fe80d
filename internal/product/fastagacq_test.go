package product

import (
	"errors"
	"strings"
	"testing"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

func record(fields map[string]string) core.IncomingRecord {
	return core.IncomingRecord{
		Product:     CodeFastagAcq,
		SubmittedBy: "asingh",
		TicketRef:   "APB-1042",
		Operation:   core.OpInsert,
		Fields:      fields,
	}
}

func tollRecordFields() map[string]string {
	return map[string]string{
		"plaza.plaza_id":           "PZ001",
		"plaza.plaza_name":         "Kherki Daula",
		"plaza.plaza_type":         "toll",
		"conc.concessionaire_id":   "CN001",
		"conc.concessionaire_name": "NH Tollways",
		"lane.plaza_id":            "PZ001",
		"lane.lane_id":             "L01",
		"lane.lane_status":         "ACTIVE",
		"fare.fare_id":             "FR001",
		"fare.fare_amount":         "65.00",
		"vmap.plaza_id":            "PZ001",
		"vmap.mvc_id":              "VC4",
		"vmap.npci_class":          "4",
	}
}

func TestDecompose_OrderedOperations(t *testing.T) {
	adapter := NewFastagAcq()

	ops, err := adapter.Decompose(record(tollRecordFields()))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	want := []string{TablePlaza, TableConcessionaire, TableLane, TableFare, TableVehicleMapping}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d", len(ops), len(want))
	}
	for i, table := range want {
		if ops[i].Table != table {
			t.Errorf("ops[%d].Table = %q, want %q", i, ops[i].Table, table)
		}
	}

	// Prefixes are stripped in the per-table field maps.
	if ops[0].Fields["plaza_id"] != "PZ001" {
		t.Errorf("plaza fields = %v, want plaza_id=PZ001", ops[0].Fields)
	}
	if ops[2].Fields["lane_id"] != "L01" {
		t.Errorf("lane fields = %v, want lane_id=L01", ops[2].Fields)
	}
}

func TestDecompose_SingleSection(t *testing.T) {
	adapter := NewFastagAcq()

	ops, err := adapter.Decompose(record(map[string]string{
		"umap.user_id":   "U100",
		"umap.role_code": "PLAZA_ADMIN",
	}))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Table != TableUserMapping {
		t.Fatalf("ops = %v, want single user mapping operation", ops)
	}
}

func TestDecompose_EmptyValuesDropped(t *testing.T) {
	adapter := NewFastagAcq()

	ops, err := adapter.Decompose(record(map[string]string{
		"umap.user_id":     "U100",
		"umap.role_code":   "  ",
		"umap.user_status": "",
	}))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if _, present := ops[0].Fields["role_code"]; present {
		t.Error("blank value should be dropped from the operation")
	}
}

func TestDecompose_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{
			name:   "no data",
			fields: map[string]string{},
			want:   "no table data",
		},
		{
			name:   "unprefixed field",
			fields: map[string]string{"plaza_id": "PZ001"},
			want:   "no table prefix",
		},
		{
			name:   "unknown prefix",
			fields: map[string]string{"depot.depot_id": "D1"},
			want:   "unrecognized field prefix",
		},
		{
			name:   "unknown field in section",
			fields: map[string]string{"plaza.plaza_id": "PZ001", "plaza.color": "red"},
			want:   "unknown field plaza.color",
		},
		{
			name:   "missing natural key",
			fields: map[string]string{"lane.lane_status": "ACTIVE"},
			want:   "lane.plaza_id is required",
		},
	}

	adapter := NewFastagAcq()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Decompose(record(tt.fields))
			if err == nil {
				t.Fatal("Decompose() expected error")
			}
			var shapeErr *core.RecordShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("error type = %T, want RecordShapeError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestDecompose_TollPlazaRequirements(t *testing.T) {
	adapter := NewFastagAcq()

	fields := tollRecordFields()
	delete(fields, "fare.fare_id")
	delete(fields, "fare.fare_amount")

	_, err := adapter.Decompose(record(fields))
	if err == nil {
		t.Fatal("Decompose() expected error for toll plaza without fare data")
	}
	if !strings.Contains(err.Error(), "requires fare data") {
		t.Errorf("error = %q, want fare requirement named", err)
	}
}

func TestDecompose_ParkingPlazaRequirements(t *testing.T) {
	adapter := NewFastagAcq()

	// Parking needs concessionaire and lane but not fare or vehicle classes.
	ops, err := adapter.Decompose(record(map[string]string{
		"plaza.plaza_id":         "PZ010",
		"plaza.plaza_type":       "parking",
		"conc.concessionaire_id": "CN010",
		"lane.plaza_id":          "PZ010",
		"lane.lane_id":           "L01",
	}))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(ops) != 3 {
		t.Errorf("got %d operations, want 3", len(ops))
	}

	_, err = adapter.Decompose(record(map[string]string{
		"plaza.plaza_id":   "PZ010",
		"plaza.plaza_type": "parking",
	}))
	if err == nil {
		t.Fatal("Decompose() expected error for parking plaza without concessionaire data")
	}
}

// An update touching only dependent tables carries no plaza section and no
// plaza-type requirement.
func TestDecompose_NoPlazaSectionSkipsRequirements(t *testing.T) {
	adapter := NewFastagAcq()

	ops, err := adapter.Decompose(record(map[string]string{
		"lane.plaza_id":    "PZ001",
		"lane.lane_id":     "L01",
		"lane.lane_status": "INACTIVE",
	}))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("got %d operations, want 1", len(ops))
	}
}

func TestRegistry_KeysNeverMutable(t *testing.T) {
	registry := NewFastagAcq().Registry()

	for _, table := range registry.Tables() {
		schema, err := registry.SchemaFor(table)
		if err != nil {
			t.Fatalf("SchemaFor(%s) error = %v", table, err)
		}
		for _, k := range schema.NaturalKey {
			if schema.IsMutable(k) {
				t.Errorf("%s: natural key field %q is mutable", table, k)
			}
		}
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	a, ok := c.ByCode(CodeFastagAcq)
	if !ok {
		t.Fatal("ByCode(FASTAG_ACQ) not found")
	}
	if a.Code() != CodeFastagAcq {
		t.Errorf("Code() = %q, want %q", a.Code(), CodeFastagAcq)
	}

	if _, ok := c.ByCode("UNKNOWN"); ok {
		t.Error("ByCode(UNKNOWN) = ok, want miss")
	}

	codes := c.Codes()
	if len(codes) == 0 || codes[0] != CodeFastagAcq {
		t.Errorf("Codes() = %v, want [%s]", codes, CodeFastagAcq)
	}
}
