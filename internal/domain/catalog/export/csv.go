// Package export renders an owner's catalog as CSV for download.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
)

// csvRow is the flat CSV shape of one catalog record.
type csvRow struct {
	UniqueKey  string `csv:"unique_key"`
	Title      string `csv:"title"`
	Volume     string `csv:"volume"`
	ISBN       string `csv:"isbn"`
	Publisher  string `csv:"publisher"`
	Category   string `csv:"category"`
	Price      string `csv:"price"`
	Reprint    bool   `csv:"reprint"`
	Presence   string `csv:"presence"`
	LastSeenAt string `csv:"last_seen_at"`
}

// Service exports catalogs through the shared repository port.
type Service struct {
	repo     repository.CatalogRepository
	pageSize int
}

// NewService creates an export service.
func NewService(repo repository.CatalogRepository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Service{repo: repo, pageSize: pageSize}
}

// WriteCSV streams the owner's full catalog, absent records included, to w.
func (s *Service) WriteCSV(ctx context.Context, ownerID uuid.UUID, w io.Writer) error {
	records, err := s.repo.ListByOwner(ctx, ownerID, s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to read catalog for export: %w", err)
	}

	rows := make([]*csvRow, 0, len(records))
	for _, rec := range records {
		row := &csvRow{
			UniqueKey:  rec.UniqueKey,
			Title:      rec.Title,
			Volume:     rec.Volume,
			ISBN:       rec.ISBN,
			Publisher:  rec.Publisher,
			Category:   rec.Category,
			Reprint:    rec.Reprint,
			Presence:   string(rec.Presence),
			LastSeenAt: rec.LastSeenAt.Format(time.RFC3339),
		}
		if rec.Price != nil {
			row.Price = rec.Price.StringFixed(2)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write catalog CSV: %w", err)
	}
	return nil
}
