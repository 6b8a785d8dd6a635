package search

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
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

func catalogOf(titles ...string) *stubRepo {
	repo := &stubRepo{}
	for _, title := range titles {
		repo.records = append(repo.records, &repository.CatalogRecord{
			UniqueKey: title,
			Title:     title,
			Presence:  repository.PresenceAvailable,
		})
	}
	return repo
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("finds fuzzy matches ranked by closeness", func(t *testing.T) {
		svc := NewService(catalogOf("BERSERK", "BERSERK MAXIMUM", "ONE PIECE"), 500)

		matches, err := svc.Search(ctx, ownerID, "berserk", 20)

		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "BERSERK", matches[0].Record.Title)
		assert.LessOrEqual(t, matches[0].Rank, matches[1].Rank)
	})

	t.Run("matches are accent and case insensitive", func(t *testing.T) {
		svc := NewService(catalogOf("CRÓNICAS DE UN MAGO"), 500)

		matches, err := svc.Search(ctx, ownerID, "cronicas", 20)

		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("volume participates in the match", func(t *testing.T) {
		repo := &stubRepo{records: []*repository.CatalogRecord{
			{UniqueKey: "k1", Title: "BERSERK", Volume: "12"},
		}}
		svc := NewService(repo, 500)

		matches, err := svc.Search(ctx, ownerID, "berserk 12", 20)

		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		svc := NewService(catalogOf("BERSERK"), 500)

		matches, err := svc.Search(ctx, ownerID, "   ", 20)

		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		svc := NewService(catalogOf("NARUTO 1", "NARUTO 2", "NARUTO 3", "NARUTO 4"), 500)

		matches, err := svc.Search(ctx, ownerID, "naruto", 2)

		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}
