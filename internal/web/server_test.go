package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DhruvSingla03/query-automation/internal/core"
	"github.com/DhruvSingla03/query-automation/internal/product"
)

func TestHealthz(t *testing.T) {
	s := NewServer(nil, product.NewCatalog())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestProducts(t *testing.T) {
	s := NewServer(nil, product.NewCatalog())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	found := false
	for _, code := range body["products"] {
		if code == product.CodeFastagAcq {
			found = true
		}
	}
	if !found {
		t.Errorf("products = %v, want to include %q", body["products"], product.CodeFastagAcq)
	}
}

func TestAuditFilterFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/audit?product=FASTAG_ACQ&ticket=APB-1042&status=FAILED&from=2026-08-01&to=2026-08-31&limit=25&offset=50", nil)

	filter, err := auditFilterFromQuery(req)
	if err != nil {
		t.Fatalf("auditFilterFromQuery() error = %v", err)
	}

	if filter.Product != "FASTAG_ACQ" {
		t.Errorf("Product = %q, want %q", filter.Product, "FASTAG_ACQ")
	}
	if filter.TicketRef != "APB-1042" {
		t.Errorf("TicketRef = %q, want %q", filter.TicketRef, "APB-1042")
	}
	if filter.Status != "FAILED" {
		t.Errorf("Status = %q, want %q", filter.Status, "FAILED")
	}
	if filter.Limit != 25 || filter.Offset != 50 {
		t.Errorf("Limit/Offset = %d/%d, want 25/50", filter.Limit, filter.Offset)
	}

	wantStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !filter.StartTime.Equal(wantStart) {
		t.Errorf("StartTime = %v, want %v", filter.StartTime, wantStart)
	}
	wantEnd := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	if !filter.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime = %v, want %v", filter.EndTime, wantEnd)
	}
}

func TestAuditFilterFromQuery_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)

	filter, err := auditFilterFromQuery(req)
	if err != nil {
		t.Fatalf("auditFilterFromQuery() error = %v", err)
	}
	if filter.Limit != core.DefaultAuditLimit {
		t.Errorf("Limit = %d, want %d", filter.Limit, core.DefaultAuditLimit)
	}
	if filter.Offset != 0 {
		t.Errorf("Offset = %d, want 0", filter.Offset)
	}
	if !filter.StartTime.IsZero() || !filter.EndTime.IsZero() {
		t.Error("unfiltered query should leave time bounds zero")
	}
}

func TestAuditFilterFromQuery_BadDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/audit?from=31-08-2026", nil)

	if _, err := auditFilterFromQuery(req); err == nil {
		t.Fatal("auditFilterFromQuery() expected error for malformed date")
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"limit=10", 10},
		{"limit=", 50},
		{"limit=abc", 50},
		{"limit=-5", 50},
		{"", 50},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/audit?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 50); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
