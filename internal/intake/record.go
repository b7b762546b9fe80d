// Package intake discovers onboarding batch files, parses them into records,
// and routes each file based on the aggregate verdict of its rows. It feeds
// the processing engine one record at a time; the engine never touches the
// filesystem.
package intake

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

// Batch file names look like B1234567_FASTAG_ACQ_20260815.csv.
var fileNamePattern = regexp.MustCompile(`^([Bb]\d{7})_([A-Z_]+)_(\d{8})\.csv$`)

// Ticket references come from the change-request tracker.
var ticketPattern = regexp.MustCompile(`^APB-[0-9]+$`)

// Metadata columns every row must carry.
const (
	metaProduct     = "meta.product"
	metaSubmittedBy = "meta.submitted_by"
	metaTicket      = "meta.jira"
	metaOperation   = "meta.operation"
	metaOverride    = "meta.override"
)

// ParsedRow is one file row: either a well-formed record or the reason it
// could not be built. Malformed rows still count toward the file verdict.
type ParsedRow struct {
	Line   int
	Record core.IncomingRecord
	Err    error
}

// ReadRecords parses a batch file into per-row results. The header row is
// line 1, so the first data row reports line 2, matching what submitters see
// in their spreadsheet.
func ReadRecords(r io.Reader) ([]ParsedRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows []ParsedRow
	line := 1
	for {
		raw, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rows = append(rows, ParsedRow{Line: line, Err: fmt.Errorf("malformed CSV row: %w", err)})
			continue
		}

		if blankRow(raw) {
			continue
		}

		rec, err := recordFromRow(header, raw)
		rec.Line = line
		rows = append(rows, ParsedRow{Line: line, Record: rec, Err: err})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file has no data rows")
	}
	return rows, nil
}

// recordFromRow builds one IncomingRecord, validating the metadata contract
// the engine relies on: product, submitter, ticket and operation present,
// ticket well-formed, operation INSERT or UPDATE, override defaulting false.
func recordFromRow(header, raw []string) (core.IncomingRecord, error) {
	byName := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(raw) {
			byName[h] = strings.TrimSpace(raw[i])
		}
	}

	rec := core.IncomingRecord{
		Product:     byName[metaProduct],
		SubmittedBy: byName[metaSubmittedBy],
		TicketRef:   byName[metaTicket],
		Operation:   core.Operation(strings.ToUpper(byName[metaOperation])),
		Fields:      make(map[string]string),
	}

	for name, value := range byName {
		if strings.HasPrefix(name, "meta.") || value == "" {
			continue
		}
		rec.Fields[name] = value
	}

	switch {
	case rec.Product == "":
		return rec, fmt.Errorf("missing required metadata: %s", metaProduct)
	case rec.SubmittedBy == "":
		return rec, fmt.Errorf("missing required metadata: %s", metaSubmittedBy)
	case rec.TicketRef == "":
		return rec, fmt.Errorf("missing required metadata: %s", metaTicket)
	case byName[metaOperation] == "":
		return rec, fmt.Errorf("missing required metadata: %s", metaOperation)
	}

	if !ticketPattern.MatchString(rec.TicketRef) {
		return rec, fmt.Errorf("invalid ticket reference %q, expected APB-XXXXXX", rec.TicketRef)
	}
	if !rec.Operation.Valid() {
		return rec, fmt.Errorf("invalid operation %q, must be INSERT or UPDATE", byName[metaOperation])
	}

	switch strings.ToLower(byName[metaOverride]) {
	case "", "false":
		rec.Override = false
	case "true":
		rec.Override = true
	default:
		return rec, fmt.Errorf("invalid %s value %q", metaOverride, byName[metaOverride])
	}

	return rec, nil
}

// ValidFileName reports whether name matches the batch naming convention and
// returns the embedded product code.
func ValidFileName(name string) (string, bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[2], true
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
