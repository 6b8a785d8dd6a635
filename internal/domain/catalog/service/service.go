// Package service orchestrates the catalog import pipeline: tokenize,
// classify, parse, resolve identity, merge against the persisted snapshot,
// and report.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/identity"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/parser"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
	"github.com/entelequia/catalog-tracker/pkg/metrics"
)

// ErrNoItems is returned when a readable workbook yields zero item rows.
var ErrNoItems = errors.New("no valid item rows found in the file")

// Options tunes one ImportService instance.
type Options struct {
	Parser           parser.Config
	WriteBatchSize   int
	SnapshotPageSize int
	HistoryLimit     int
}

// DefaultOptions mirrors the limits of the original supplier feeds.
func DefaultOptions() Options {
	return Options{
		Parser:           parser.DefaultConfig(),
		WriteBatchSize:   100,
		SnapshotPageSize: 500,
		HistoryLimit:     20,
	}
}

// ImportService runs catalog imports. One import per owner runs at a time;
// the merge reads the full snapshot and then writes, so a concurrent second
// writer could resurrect or disappear records from a stale view.
type ImportService struct {
	repo     repository.CatalogRepository
	resolver *identity.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics // optional
	opts     Options

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewImportService creates an import service.
func NewImportService(repo repository.CatalogRepository, logger *slog.Logger, opts Options) *ImportService {
	if opts.WriteBatchSize <= 0 {
		opts.WriteBatchSize = 100
	}
	if opts.SnapshotPageSize <= 0 {
		opts.SnapshotPageSize = 500
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &ImportService{
		repo:     repo,
		resolver: identity.NewResolver(opts.Parser.MinISBNLength),
		logger:   logger,
		opts:     opts,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// WithMetrics adds prometheus instrumentation to the import service.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// Import runs one full import of an uploaded workbook for an owner and
// returns the audit report. Fatal problems (unreadable file, no sheets, zero
// items) return an error; row-level and chunk-level problems land in the
// report instead.
func (s *ImportService) Import(ctx context.Context, ownerID uuid.UUID, file io.Reader) (*ImportReport, error) {
	unlock := s.lockOwner(ownerID)
	defer unlock()

	start := time.Now()
	report, err := s.runImport(ctx, ownerID, file, start)
	if s.metrics != nil {
		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
		}
		s.metrics.ImportsTotal.WithLabelValues(outcome).Inc()
		s.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}
	return report, err
}

func (s *ImportService) runImport(ctx context.Context, ownerID uuid.UUID, file io.Reader, now time.Time) (*ImportReport, error) {
	parsed, err := parser.New(s.opts.Parser).ParseWorkbook(file)
	if err != nil {
		return nil, err
	}
	if len(parsed.Items) == 0 {
		return nil, ErrNoItems
	}

	s.logger.Info("workbook parsed",
		slog.String("ownerID", ownerID.String()),
		slog.Any("sheets", parsed.Sheets),
		slog.Int("items", len(parsed.Items)),
		slog.Int("rowErrors", len(parsed.Errors)),
	)

	// Reprint rows carry no identity of their own; they are applied to the
	// merge by title, so they bypass the resolver.
	regular := make([]parser.CatalogItem, 0, len(parsed.Items))
	var reprints []parser.CatalogItem
	for _, item := range parsed.Items {
		if item.Category == parser.CategoryReprints {
			reprints = append(reprints, item)
		} else {
			regular = append(regular, item)
		}
	}

	resolution := s.resolver.Resolve(regular)

	snapshot, err := s.repo.ListByOwner(ctx, ownerID, s.opts.SnapshotPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}

	plan := computeMerge(ownerID, resolution.Items, reprints, snapshot, s.resolver, now)

	report := s.buildReport(parsed, resolution, plan, now)
	s.applyPlan(ctx, ownerID, plan, report)
	s.persistReport(ctx, ownerID, report)

	if s.metrics != nil {
		s.metrics.RowsParsed.Add(float64(report.ItemsLoaded))
		s.metrics.ItemsMerged.WithLabelValues("new").Add(float64(report.NewItems))
		s.metrics.ItemsMerged.WithLabelValues("updated").Add(float64(report.UpdatedItems))
		s.metrics.ItemsMerged.WithLabelValues("recovered").Add(float64(report.RecoveredItems))
		s.metrics.ItemsMerged.WithLabelValues("disappeared").Add(float64(report.DisappearedItems))
	}

	s.logger.Info("import finished",
		slog.String("ownerID", ownerID.String()),
		slog.Int("new", report.NewItems),
		slog.Int("updated", report.UpdatedItems),
		slog.Int("recovered", report.RecoveredItems),
		slog.Int("disappeared", report.DisappearedItems),
		slog.Int("errors", report.ErrorCount),
	)

	return report, nil
}

func (s *ImportService) buildReport(parsed *parser.ParseResult, resolution *identity.Resolution, plan *mergePlan, now time.Time) *ImportReport {
	report := newImportReport(now)
	report.Sheets = parsed.Sheets
	report.TotalRows = parsed.TotalRows
	report.ItemsLoaded = len(parsed.Items)
	report.SkippedRows = parsed.SkippedRows
	report.NoPrice = append(report.NoPrice, parsed.NoPrice...)

	for _, item := range parsed.Items {
		report.ByCategory[string(item.Category)]++
	}
	for _, parseErr := range parsed.Errors {
		report.addError(parseErr.Error())
	}

	report.NoValidISBN = append(report.NoValidISBN, resolution.NoValidISBN...)
	report.ReassignedKeys = append(report.ReassignedKeys, resolution.Reassigned...)
	report.DuplicateISBNs = append(report.DuplicateISBNs, resolution.DuplicateKeys...)

	report.NewItems = plan.newCount
	report.UpdatedItems = plan.updatedCount
	report.RecoveredItems = plan.recoveredCount
	report.DisappearedItems = plan.disappearedCount
	report.CategoryChanges = append(report.CategoryChanges, plan.categoryChanges...)
	report.ReprintMatches = append(report.ReprintMatches, plan.reprintMatches...)

	sample := plan.disappearedTitles
	if len(sample) > disappearedSampleLimit {
		sample = sample[:disappearedSampleLimit]
	}
	report.DisappearedTitles = append(report.DisappearedTitles, sample...)

	return report
}

// applyPlan writes the merge decision in bounded chunks. A failed chunk is
// reported and skipped; later chunks still run, because the no-delete
// invariant makes partial application safe (stale rows catch up on the next
// import).
func (s *ImportService) applyPlan(ctx context.Context, ownerID uuid.UUID, plan *mergePlan, report *ImportReport) {
	for chunk := range slices.Chunk(plan.inserts, s.opts.WriteBatchSize) {
		if err := s.writeWithRetry(ctx, func(ctx context.Context) error {
			return s.repo.InsertBatch(ctx, chunk)
		}); err != nil {
			s.logger.Warn("insert chunk failed", slog.Int("size", len(chunk)), slog.Any("error", err))
			report.addError(fmt.Sprintf("insert of %d records failed: %v", len(chunk), err))
		}
	}

	for chunk := range slices.Chunk(plan.updates, s.opts.WriteBatchSize) {
		if err := s.writeWithRetry(ctx, func(ctx context.Context) error {
			return s.repo.UpdateBatch(ctx, chunk)
		}); err != nil {
			s.logger.Warn("update chunk failed", slog.Int("size", len(chunk)), slog.Any("error", err))
			report.addError(fmt.Sprintf("update of %d records failed: %v", len(chunk), err))
		}
	}

	for chunk := range slices.Chunk(plan.absentKeys, s.opts.WriteBatchSize) {
		if err := s.writeWithRetry(ctx, func(ctx context.Context) error {
			return s.repo.MarkAbsent(ctx, ownerID, chunk, report.Timestamp)
		}); err != nil {
			s.logger.Warn("mark-absent chunk failed", slog.Int("size", len(chunk)), slog.Any("error", err))
			report.addError(fmt.Sprintf("marking %d records absent failed: %v", len(chunk), err))
		}
	}
}

func (s *ImportService) persistReport(ctx context.Context, ownerID uuid.UUID, report *ImportReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("failed to marshal import report", slog.Any("error", err))
		return
	}
	if err := s.repo.SaveReport(ctx, ownerID, payload); err != nil {
		s.logger.Warn("failed to save import report", slog.Any("error", err))
		return
	}
	if err := s.repo.PruneReports(ctx, ownerID, s.opts.HistoryLimit); err != nil {
		s.logger.Warn("failed to prune import history", slog.Any("error", err))
	}
}

// History returns the most recent import reports for an owner, newest first.
func (s *ImportService) History(ctx context.Context, ownerID uuid.UUID) ([]*repository.StoredReport, error) {
	return s.repo.ListReports(ctx, ownerID, s.opts.HistoryLimit)
}

// writeWithRetry retries a storage write on transient failure with fibonacci
// backoff before giving up on the chunk.
func (s *ImportService) writeWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// lockOwner serializes imports per owner.
func (s *ImportService) lockOwner(ownerID uuid.UUID) func() {
	s.mu.Lock()
	lock, ok := s.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ownerID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
