package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/DhruvSingla03/query-automation/internal/core"
)

// Processor applies one record and returns its verdict. Satisfied by
// *core.Coordinator.
type Processor interface {
	ProcessRecord(ctx context.Context, rec core.IncomingRecord) core.RowOutcome
}

// FileStatus classifies a whole batch file after all its rows ran.
type FileStatus string

const (
	FileSuccess FileStatus = "SUCCESS"
	FilePartial FileStatus = "PARTIAL_SUCCESS"
	FileFailed  FileStatus = "FAILED"
)

// FileResult summarizes one processed batch file.
type FileResult struct {
	File      string
	Product   string
	BatchID   string
	TotalRows int
	Succeeded []int
	Failed    []int
	Status    FileStatus
	FinalPath string
}

// Runner walks every product's inbox and pushes each file's rows through the
// product's processor, sequentially and in file order. File routing follows
// the aggregate verdict: at least one successful row lands the file in
// processed/, none lands it in failed/.
type Runner struct {
	root              string
	env               string
	allowedSubmitters map[string]bool
	processors        map[string]Processor
	log               *slog.Logger
}

// NewRunner builds a runner rooted at dir. processors maps product codes to
// their coordinators; allowedSubmitters is enforced only when env is
// "production".
func NewRunner(dir, env string, allowedSubmitters []string, processors map[string]Processor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	allow := make(map[string]bool, len(allowedSubmitters))
	for _, s := range allowedSubmitters {
		allow[s] = true
	}
	return &Runner{
		root:              dir,
		env:               env,
		allowedSubmitters: allow,
		processors:        processors,
		log:               log,
	}
}

type productPaths struct {
	inbox      string
	processing string
	processed  string
	failed     string
}

func (r *Runner) pathsFor(product string) productPaths {
	base := filepath.Join(r.root, product)
	return productPaths{
		inbox:      filepath.Join(base, "inbox"),
		processing: filepath.Join(base, "processing"),
		processed:  filepath.Join(base, "processed"),
		failed:     filepath.Join(base, "failed"),
	}
}

// EnsureLayout creates the per-product directory tree.
func (r *Runner) EnsureLayout() error {
	for product := range r.processors {
		p := r.pathsFor(product)
		for _, dir := range []string{p.inbox, p.processing, p.processed, p.failed} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// ScanOnce processes every pending batch file across all products. A failure
// in one file never aborts the scan of the others.
func (r *Runner) ScanOnce(ctx context.Context) ([]FileResult, error) {
	if err := r.EnsureLayout(); err != nil {
		return nil, err
	}

	var results []FileResult
	for _, product := range sortedProducts(r.processors) {
		paths := r.pathsFor(product)

		entries, err := os.ReadDir(paths.inbox)
		if err != nil {
			return results, fmt.Errorf("read inbox for %s: %w", product, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return results, err
			}

			res, err := r.processFile(ctx, product, entry.Name(), paths)
			if err != nil {
				r.log.Error("file processing failed",
					"product", product, "file", entry.Name(), "error", err)
				continue
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (r *Runner) processFile(ctx context.Context, product, name string, paths productPaths) (FileResult, error) {
	res := FileResult{File: name, Product: product, BatchID: uuid.New().String()}
	log := r.log.With("product", product, "file", name, "batch_id", res.BatchID)

	if _, ok := ValidFileName(name); !ok {
		res.Status = FileFailed
		res.FinalPath = filepath.Join(paths.failed, name)
		log.Error("file name does not match batch naming convention")
		return res, os.Rename(filepath.Join(paths.inbox, name), res.FinalPath)
	}

	processingPath := filepath.Join(paths.processing, name)
	if err := os.Rename(filepath.Join(paths.inbox, name), processingPath); err != nil {
		return res, fmt.Errorf("move to processing: %w", err)
	}
	log.Info("file moved to processing")

	f, err := os.Open(processingPath)
	if err != nil {
		return res, fmt.Errorf("open: %w", err)
	}
	rows, err := ReadRecords(f)
	f.Close()
	if err != nil {
		res.Status = FileFailed
		res.FinalPath = filepath.Join(paths.failed, name)
		log.Error("file unreadable", "error", err)
		return res, os.Rename(processingPath, res.FinalPath)
	}

	res.TotalRows = len(rows)
	processor := r.processors[product]

	for _, row := range rows {
		rowLog := log.With("line", row.Line)

		if err := r.admitRow(row, product); err != nil {
			res.Failed = append(res.Failed, row.Line)
			rowLog.Warn("row rejected before processing", "error", err)
			continue
		}

		rec := row.Record
		rec.BatchID = res.BatchID

		outcome := processor.ProcessRecord(ctx, rec)
		if outcome.Status == core.RowSuccess {
			res.Succeeded = append(res.Succeeded, row.Line)
		} else {
			res.Failed = append(res.Failed, row.Line)
		}
	}

	switch {
	case len(res.Succeeded) == 0:
		res.Status = FileFailed
		res.FinalPath = filepath.Join(paths.failed, name)
	case len(res.Failed) > 0:
		res.Status = FilePartial
		res.FinalPath = filepath.Join(paths.processed, name)
	default:
		res.Status = FileSuccess
		res.FinalPath = filepath.Join(paths.processed, name)
	}

	if err := os.Rename(processingPath, res.FinalPath); err != nil {
		return res, fmt.Errorf("move to final location: %w", err)
	}

	log.Info("file processing complete",
		"status", res.Status,
		"total", res.TotalRows,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
	)
	return res, nil
}

// admitRow runs the pre-processing checks that do not involve the engine:
// row parse errors, product/folder mismatch, and the production submitter
// allowlist.
func (r *Runner) admitRow(row ParsedRow, product string) error {
	if row.Err != nil {
		return row.Err
	}
	if row.Record.Product != product {
		return fmt.Errorf("file is in %s folder but meta.product is %s", product, row.Record.Product)
	}
	if r.env == "production" && len(r.allowedSubmitters) > 0 && !r.allowedSubmitters[row.Record.SubmittedBy] {
		return fmt.Errorf("submitter %q not in allowlist", row.Record.SubmittedBy)
	}
	return nil
}

func sortedProducts(processors map[string]Processor) []string {
	codes := make([]string, 0, len(processors))
	for code := range processors {
		codes = append(codes, code)
	}
	// Stable scan order keeps logs and audit ordering deterministic.
	sort.Strings(codes)
	return codes
}
