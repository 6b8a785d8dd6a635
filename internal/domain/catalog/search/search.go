// Package search provides fuzzy title search over an owner's catalog.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
)

// Match is one search hit, best matches first.
type Match struct {
	Record *repository.CatalogRecord
	Rank   int // Levenshtein-based rank; lower is closer
}

// Service searches catalog titles. It reads through the same repository port
// the import pipeline uses.
type Service struct {
	repo     repository.CatalogRepository
	pageSize int
}

// NewService creates a search service.
func NewService(repo repository.CatalogRepository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Service{repo: repo, pageSize: pageSize}
}

// Search returns up to limit catalog records whose title fuzzily matches the
// query, ranked by closeness. An empty query matches nothing.
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	records, err := s.repo.ListByOwner(ctx, ownerID, s.pageSize)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, limit)
	for _, rec := range records {
		title := rec.Title
		if rec.Volume != "" {
			title = title + " " + rec.Volume
		}
		rank := fuzzy.RankMatchNormalizedFold(query, title)
		if rank < 0 {
			continue
		}
		matches = append(matches, Match{Record: rec, Rank: rank})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Rank < matches[j].Rank
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
