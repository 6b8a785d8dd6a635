package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/identity"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/parser"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
)

// mergePlan is the full merge decision, computed in memory from the complete
// snapshot before any write happens. Write chunking later splits the plan but
// never changes it, so results are independent of chunk size.
type mergePlan struct {
	inserts    []*repository.CatalogRecord
	updates    []*repository.CatalogRecord
	absentKeys []string

	newCount         int
	updatedCount     int
	recoveredCount   int
	disappearedCount int

	disappearedTitles []string
	categoryChanges   []CategoryChange
	reprintMatches    []ReprintMatch
}

// computeMerge three-way merges resolved items (and reprint rows, which carry
// no key of their own) against the persisted snapshot.
func computeMerge(ownerID uuid.UUID, items []parser.CatalogItem, reprints []parser.CatalogItem, existing []*repository.CatalogRecord, resolver *identity.Resolver, now time.Time) *mergePlan {
	plan := &mergePlan{}

	existingByKey := make(map[string]*repository.CatalogRecord, len(existing))
	existingByTitle := make(map[string]*repository.CatalogRecord, len(existing))
	for _, rec := range existing {
		existingByKey[rec.UniqueKey] = rec
		existingByTitle[normalizeTitle(recordFullTitle(rec))] = rec
	}

	seenKeys := make(map[string]struct{}, len(items))
	plannedByTitle := make(map[string]*repository.CatalogRecord, len(items))

	for _, item := range items {
		seenKeys[item.UniqueKey] = struct{}{}

		rec, ok := existingByKey[item.UniqueKey]
		if !ok {
			inserted := recordFromItem(ownerID, item, now)
			plan.inserts = append(plan.inserts, inserted)
			plan.newCount++
			plannedByTitle[normalizeTitle(item.FullTitle())] = inserted
			continue
		}

		if rec.Category != string(item.Category) {
			plan.categoryChanges = append(plan.categoryChanges, CategoryChange{
				Title:       item.FullTitle(),
				OldCategory: rec.Category,
				NewCategory: string(item.Category),
			})
		}
		if rec.Presence == repository.PresenceAbsent {
			plan.recoveredCount++
		} else {
			plan.updatedCount++
		}

		updated := applyItem(rec, item, now)
		plan.updates = append(plan.updates, updated)
		plannedByTitle[normalizeTitle(item.FullTitle())] = updated
	}

	// Reprint rows match by title against any category, not just their own.
	for _, item := range reprints {
		title := item.FullTitle()
		norm := normalizeTitle(title)

		if planned, ok := plannedByTitle[norm]; ok {
			planned.Reprint = true
			if item.Price != nil {
				planned.Price = item.Price
			}
			plan.reprintMatches = append(plan.reprintMatches, ReprintMatch{Title: title, Category: planned.Category})
			continue
		}

		if rec, ok := existingByTitle[norm]; ok {
			seenKeys[rec.UniqueKey] = struct{}{}
			updated := cloneRecord(rec)
			updated.Reprint = true
			if item.Price != nil {
				updated.Price = item.Price
			}
			updated.Presence = repository.PresenceAvailable
			updated.LastSeenAt = now
			updated.UpdatedAt = now
			plan.updates = append(plan.updates, updated)
			plannedByTitle[norm] = updated
			plan.reprintMatches = append(plan.reprintMatches, ReprintMatch{Title: title, Category: rec.Category})
			continue
		}

		// Unmatched reprints are inserted rather than dropped, under the
		// default category.
		key := item.ISBN
		if !resolver.ValidISBN(key) {
			key = identity.TitleKey(title)
		}
		item.UniqueKey = key
		item.Category = parser.CategoryNewReleases
		inserted := recordFromItem(ownerID, item, now)
		inserted.Reprint = true
		seenKeys[key] = struct{}{}
		plan.inserts = append(plan.inserts, inserted)
		plannedByTitle[norm] = inserted
		plan.newCount++
		plan.reprintMatches = append(plan.reprintMatches, ReprintMatch{Title: title, Category: "UNMATCHED (new)"})
	}

	// Records absent from this import disappear; records already ABSENT stay
	// untouched and are not re-counted.
	for _, rec := range existing {
		if _, ok := seenKeys[rec.UniqueKey]; ok {
			continue
		}
		if rec.Presence != repository.PresenceAvailable {
			continue
		}
		plan.absentKeys = append(plan.absentKeys, rec.UniqueKey)
		plan.disappearedCount++
		plan.disappearedTitles = append(plan.disappearedTitles, recordFullTitle(rec))
	}

	return plan
}

// applyItem overwrites a record's mutable fields from a freshly parsed item.
// A nil parsed price keeps the last known price instead of erasing it.
func applyItem(rec *repository.CatalogRecord, item parser.CatalogItem, now time.Time) *repository.CatalogRecord {
	updated := cloneRecord(rec)
	updated.Title = item.Title
	updated.Volume = item.Volume
	updated.ISBN = item.ISBN
	updated.Category = string(item.Category)
	if item.Publisher != "" {
		updated.Publisher = item.Publisher
	}
	if item.Price != nil {
		updated.Price = item.Price
	}
	updated.Presence = repository.PresenceAvailable
	updated.LastSeenAt = now
	updated.UpdatedAt = now
	return updated
}

func recordFromItem(ownerID uuid.UUID, item parser.CatalogItem, now time.Time) *repository.CatalogRecord {
	return &repository.CatalogRecord{
		OwnerID:    ownerID,
		UniqueKey:  item.UniqueKey,
		Title:      item.Title,
		Volume:     item.Volume,
		ISBN:       item.ISBN,
		Publisher:  item.Publisher,
		Category:   string(item.Category),
		Price:      item.Price,
		Presence:   repository.PresenceAvailable,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func cloneRecord(rec *repository.CatalogRecord) *repository.CatalogRecord {
	c := *rec
	return &c
}

func recordFullTitle(rec *repository.CatalogRecord) string {
	if rec.Volume == "" {
		return rec.Title
	}
	return strings.TrimSpace(rec.Title + " " + rec.Volume)
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
