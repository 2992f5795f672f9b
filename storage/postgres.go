package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carwatch/models"
)

// PostgresStore mirrors reconciled listings into Postgres when
// DATABASE_URL is set. The snapshot files stay authoritative; the mirror
// exists for querying and dashboards, and mirror failures never fail a
// scrape run.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		search_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		status TEXT NOT NULL,
		content_hash TEXT,
		url TEXT,
		title TEXT,
		price_numeric INTEGER,
		year INTEGER,
		hand INTEGER,
		mileage TEXT,
		location TEXT,
		description TEXT,
		first_seen TIMESTAMPTZ,
		last_update TIMESTAMPTZ,
		update_count INTEGER DEFAULT 0,
		removed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE (search_id, item_id)
	);

	CREATE TABLE IF NOT EXISTS listing_changes (
		id BIGSERIAL PRIMARY KEY,
		listing_id UUID REFERENCES listings(id),
		changed_at TIMESTAMPTZ NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_listings_search ON listings(search_id, status);
	CREATE INDEX IF NOT EXISTS idx_changes_listing ON listing_changes(listing_id, changed_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// UpsertListing writes one reconciled record and returns its mirror row
// ID. New rows get a fresh UUID; existing rows keep theirs.
func (s *PostgresStore) UpsertListing(ctx context.Context, searchID string, l *models.Listing) (uuid.UUID, error) {
	query := `
		INSERT INTO listings (
			id, search_id, item_id, status, content_hash, url, title,
			price_numeric, year, hand, mileage, location, description,
			first_seen, last_update, update_count, removed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW()
		)
		ON CONFLICT (search_id, item_id) DO UPDATE SET
			status = EXCLUDED.status,
			content_hash = EXCLUDED.content_hash,
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			price_numeric = EXCLUDED.price_numeric,
			year = EXCLUDED.year,
			hand = EXCLUDED.hand,
			mileage = EXCLUDED.mileage,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			last_update = EXCLUDED.last_update,
			update_count = EXCLUDED.update_count,
			removed_at = EXCLUDED.removed_at,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		uuid.New(), searchID, l.ItemID, l.Status, l.ContentHash, l.URL, l.Title,
		l.PriceNumeric, l.Year, l.Hand, l.Mileage, l.Location, l.Description,
		l.FirstSeen, l.LastUpdate, l.UpdateCount, l.RemovedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AppendChanges records this run's history entries for a mirrored listing.
func (s *PostgresStore) AppendChanges(ctx context.Context, listingID uuid.UUID, changes []models.FieldChange) error {
	for _, ch := range changes {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO listing_changes (listing_id, changed_at, field, old_value, new_value)
			VALUES ($1, $2, $3, $4, $5)`,
			listingID, ch.Timestamp, ch.Field, ch.OldValue, ch.NewValue)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetListing fetches one mirrored record, or nil when it has never been
// mirrored.
func (s *PostgresStore) GetListing(ctx context.Context, searchID, itemID string) (*models.Listing, error) {
	query := `
		SELECT item_id, status, content_hash, url, title, price_numeric, year,
			hand, mileage, location, description, first_seen, last_update,
			update_count, removed_at
		FROM listings WHERE search_id = $1 AND item_id = $2`

	var l models.Listing
	err := s.pool.QueryRow(ctx, query, searchID, itemID).Scan(
		&l.ItemID, &l.Status, &l.ContentHash, &l.URL, &l.Title, &l.PriceNumeric, &l.Year,
		&l.Hand, &l.Mileage, &l.Location, &l.Description, &l.FirstSeen, &l.LastUpdate,
		&l.UpdateCount, &l.RemovedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
