// Package repository defines the persistence port the import pipeline writes
// through, and its PostgreSQL implementation. The merge logic never issues
// deletes; records only transition between presences.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Presence tells whether a record appeared in the most recent import.
type Presence string

const (
	PresenceAvailable Presence = "AVAILABLE"
	PresenceAbsent    Presence = "ABSENT"
)

// CatalogRecord is the durable form of a catalog item.
type CatalogRecord struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	UniqueKey  string
	Title      string
	Volume     string
	ISBN       string
	Publisher  string
	Category   string
	Price      *decimal.Decimal
	Reprint    bool
	Presence   Presence
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StoredReport is one persisted import report.
type StoredReport struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CatalogRepository is the storage contract of the import pipeline: paginated
// snapshot reads, batched inserts, batched field/presence updates, and the
// bounded import-history log. No delete operation exists on purpose.
type CatalogRepository interface {
	// ListByOwner returns the full snapshot for an owner, reading in pages of
	// pageSize rows so large catalogs never require one unbounded query.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, pageSize int) ([]*CatalogRecord, error)

	// InsertBatch creates new records; all records must share one owner.
	InsertBatch(ctx context.Context, records []*CatalogRecord) error

	// UpdateBatch overwrites the mutable fields of existing records (matched
	// by owner and unique key), sets presence AVAILABLE, and bumps
	// last_seen_at/updated_at.
	UpdateBatch(ctx context.Context, records []*CatalogRecord) error

	// MarkAbsent transitions the given keys to ABSENT and bumps updated_at.
	MarkAbsent(ctx context.Context, ownerID uuid.UUID, keys []string, at time.Time) error

	// SaveReport appends an import report to the owner's history.
	SaveReport(ctx context.Context, ownerID uuid.UUID, report json.RawMessage) error

	// ListReports returns the most recent reports, newest first.
	ListReports(ctx context.Context, ownerID uuid.UUID, limit int) ([]*StoredReport, error)

	// PruneReports drops history entries beyond keep for one owner.
	PruneReports(ctx context.Context, ownerID uuid.UUID, keep int) error

	// PruneAllReports drops history entries beyond keep for every owner.
	PruneAllReports(ctx context.Context, keep int) error
}
