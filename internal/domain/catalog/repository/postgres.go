package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PgxPool is the subset of pgxpool.Pool the repository uses; narrowed so tests
// can substitute pgxmock.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL.
type PostgresCatalogRepository struct {
	pool PgxPool
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository.
func NewPostgresCatalogRepository(pool PgxPool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

const recordColumns = `id, owner_id, unique_key, title, volume, isbn, publisher, category, price, reprint, presence, last_seen_at, created_at, updated_at`

// ListByOwner reads the owner's full snapshot with keyset pagination on
// unique_key, so memory per query stays bounded for large catalogs.
func (r *PostgresCatalogRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, pageSize int) ([]*CatalogRecord, error) {
	if pageSize <= 0 {
		pageSize = 500
	}

	query := `
		SELECT ` + recordColumns + `
		FROM catalog_products
		WHERE owner_id = $1 AND unique_key > $2
		ORDER BY unique_key
		LIMIT $3`

	var records []*CatalogRecord
	lastKey := ""
	for {
		page, err := r.queryRecords(ctx, query, ownerID, lastKey, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list catalog page: %w", err)
		}
		records = append(records, page...)
		if len(page) < pageSize {
			return records, nil
		}
		lastKey = page[len(page)-1].UniqueKey
	}
}

func (r *PostgresCatalogRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*CatalogRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*CatalogRecord
	for rows.Next() {
		rec := &CatalogRecord{}
		var price *float64
		err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.UniqueKey,
			&rec.Title,
			&rec.Volume,
			&rec.ISBN,
			&rec.Publisher,
			&rec.Category,
			&price,
			&rec.Reprint,
			&rec.Presence,
			&rec.LastSeenAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog record: %w", err)
		}
		if price != nil {
			d := decimal.NewFromFloat(*price)
			rec.Price = &d
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertBatch creates new records through one pgx batch round trip.
func (r *PostgresCatalogRepository) InsertBatch(ctx context.Context, records []*CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO catalog_products (id, owner_id, unique_key, title, volume, isbn, publisher, category, price, reprint, presence, last_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	batch := &pgx.Batch{}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		batch.Queue(query,
			rec.ID,
			rec.OwnerID,
			rec.UniqueKey,
			rec.Title,
			rec.Volume,
			rec.ISBN,
			rec.Publisher,
			rec.Category,
			priceArg(rec.Price),
			rec.Reprint,
			rec.Presence,
			rec.LastSeenAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert catalog record: %w", err)
		}
	}
	return nil
}

// UpdateBatch refreshes mutable fields and presence for existing records.
func (r *PostgresCatalogRepository) UpdateBatch(ctx context.Context, records []*CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		UPDATE catalog_products
		SET title = $3, volume = $4, isbn = $5, publisher = $6, category = $7,
		    price = $8, reprint = $9, presence = $10, last_seen_at = $11, updated_at = $11
		WHERE owner_id = $1 AND unique_key = $2`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.OwnerID,
			rec.UniqueKey,
			rec.Title,
			rec.Volume,
			rec.ISBN,
			rec.Publisher,
			rec.Category,
			priceArg(rec.Price),
			rec.Reprint,
			rec.Presence,
			rec.LastSeenAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to update catalog record: %w", err)
		}
	}
	return nil
}

// MarkAbsent transitions records missing from the latest import. Rows already
// ABSENT are excluded so their updated_at is left alone.
func (r *PostgresCatalogRepository) MarkAbsent(ctx context.Context, ownerID uuid.UUID, keys []string, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}

	query := `
		UPDATE catalog_products
		SET presence = $1, updated_at = $2
		WHERE owner_id = $3 AND unique_key = ANY($4) AND presence <> $1`

	if _, err := r.pool.Exec(ctx, query, PresenceAbsent, at, ownerID, keys); err != nil {
		return fmt.Errorf("failed to mark records absent: %w", err)
	}
	return nil
}

// SaveReport appends one import report to the owner's history.
func (r *PostgresCatalogRepository) SaveReport(ctx context.Context, ownerID uuid.UUID, report json.RawMessage) error {
	query := `INSERT INTO import_reports (id, owner_id, report) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, uuid.New(), ownerID, report); err != nil {
		return fmt.Errorf("failed to save import report: %w", err)
	}
	return nil
}

// ListReports returns the newest reports first.
func (r *PostgresCatalogRepository) ListReports(ctx context.Context, ownerID uuid.UUID, limit int) ([]*StoredReport, error) {
	query := `
		SELECT id, owner_id, report, created_at
		FROM import_reports
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import reports: %w", err)
	}
	defer rows.Close()

	var reports []*StoredReport
	for rows.Next() {
		rep := &StoredReport{}
		if err := rows.Scan(&rep.ID, &rep.OwnerID, &rep.Report, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// PruneReports keeps only the newest entries for one owner.
func (r *PostgresCatalogRepository) PruneReports(ctx context.Context, ownerID uuid.UUID, keep int) error {
	query := `
		DELETE FROM import_reports
		WHERE owner_id = $1 AND id NOT IN (
			SELECT id FROM import_reports
			WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`

	if _, err := r.pool.Exec(ctx, query, ownerID, keep); err != nil {
		return fmt.Errorf("failed to prune import reports: %w", err)
	}
	return nil
}

// PruneAllReports keeps only the newest entries per owner.
func (r *PostgresCatalogRepository) PruneAllReports(ctx context.Context, keep int) error {
	query := `
		DELETE FROM import_reports
		WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY owner_id ORDER BY created_at DESC) AS rn
				FROM import_reports
			) ranked
			WHERE ranked.rn > $1
		)`

	if _, err := r.pool.Exec(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to prune import reports: %w", err)
	}
	return nil
}

func priceArg(price *decimal.Decimal) any {
	if price == nil {
		return nil
	}
	return price.InexactFloat64()
}
