package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
)

type stubRepo struct {
	records []*repository.CatalogRecord
}

func (s *stubRepo) ListByOwner(context.Context, uuid.UUID, int) ([]*repository.CatalogRecord, error) {
	return s.records, nil
}
func (s *stubRepo) InsertBatch(context.Context, []*repository.CatalogRecord) error { return nil }
func (s *stubRepo) UpdateBatch(context.Context, []*repository.CatalogRecord) error { return nil }
func (s *stubRepo) MarkAbsent(context.Context, uuid.UUID, []string, time.Time) error {
	return nil
}
func (s *stubRepo) SaveReport(context.Context, uuid.UUID, json.RawMessage) error { return nil }
func (s *stubRepo) ListReports(context.Context, uuid.UUID, int) ([]*repository.StoredReport, error) {
	return nil, nil
}
func (s *stubRepo) PruneReports(context.Context, uuid.UUID, int) error { return nil }
func (s *stubRepo) PruneAllReports(context.Context, int) error         { return nil }

func TestService_WriteCSV(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	price := decimal.NewFromFloat(12500.5)

	repo := &stubRepo{records: []*repository.CatalogRecord{
		{
			UniqueKey:  "9789877475005",
			Title:      "BERSERK",
			Volume:     "12",
			ISBN:       "9789877475005",
			Publisher:  "IVREA",
			Category:   "NEW_RELEASES",
			Price:      &price,
			Presence:   repository.PresenceAvailable,
			LastSeenAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			UniqueKey: "TTL0000000001",
			Title:     "SIN ISBN",
			Category:  "COMICS",
			Presence:  repository.PresenceAbsent,
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, NewService(repo, 500).WriteCSV(ctx, ownerID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "unique_key,title,volume,isbn,publisher,category,price,reprint,presence,last_seen_at", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "BERSERK")
	assert.Contains(t, lines[1], "12500.50")
	assert.Contains(t, lines[1], "AVAILABLE")
	assert.Contains(t, lines[2], "ABSENT")

	// Absent records have no price cell content, not a zero.
	assert.Contains(t, lines[2], "TTL0000000001,SIN ISBN,,,,COMICS,,false,ABSENT")
}

func TestService_WriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewService(&stubRepo{}, 500).WriteCSV(context.Background(), uuid.New(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1) // header only
}
