package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"log"
	"time"

	_ "github.com/lib/pq"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

var (
	// ErrPingFailed is returned if the initial ping to the database returns an error
	ErrPingFailed = errors.New("ping returned error")
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed delete_generation.sql
	queryDeleteGeneration string
	//go:embed delete_stale.sql
	queryDeleteStale string
	//go:embed fetch_item.sql
	queryFetchItem string
	//go:embed list_generations.sql
	queryListGenerations string
	//go:embed upsert_item.sql
	queryUpsertItem string
)

// Config defines the configuration options for the PostgreSQL store implementation.
type Config struct {
	// DeleteStaleItems enables automatic cleanup of entries older than
	// ItemRetention through a background task.
	DeleteStaleItems bool

	// CleanupTimer defines the interval at which the cleanup task runs.
	// Shorter durations may impact database performance.
	CleanupTimer time.Duration

	// ItemRetention defines how long items remain in the database before the
	// cleanup task removes them. Generation deletes are independent of this.
	ItemRetention time.Duration
}

// Store implements the goofflinecache.Store interface using PostgreSQL as
// the storage backend. Entries are keyed by (generation, key) so whole
// generations can be listed and dropped with a single statement.
type Store struct {
	db *sql.DB
}

// Get retrieves a cache item from PostgreSQL.
// Returns caches.ErrNoCacheItem if the item doesn't exist.
func (p *Store) Get(ctx context.Context, generation, key string) (*goofflinecache.CacheItem, error) {
	stmt, err := p.db.PrepareContext(ctx, queryFetchItem)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var response []byte
	var storedAt time.Time
	if err := stmt.QueryRowContext(ctx, generation, key).Scan(&response, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caches.ErrNoCacheItem
		}
		return nil, err
	}

	return &goofflinecache.CacheItem{
		Response: response,
		StoredAt: storedAt,
	}, nil
}

// Set stores a cache item in PostgreSQL, replacing any previous item under
// the same (generation, key).
func (p *Store) Set(ctx context.Context, generation, key string, item *goofflinecache.CacheItem) error {
	stmt, err := p.db.PrepareContext(ctx, queryUpsertItem)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, generation, key, item.Response, item.StoredAt.UTC())
	return err
}

// Generations lists the distinct generation names present in the table.
func (p *Store) Generations(ctx context.Context) ([]string, error) {
	stmt, err := p.db.PrepareContext(ctx, queryListGenerations)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// DeleteGeneration removes every entry belonging to a generation.
func (p *Store) DeleteGeneration(ctx context.Context, generation string) error {
	stmt, err := p.db.PrepareContext(ctx, queryDeleteGeneration)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, generation)
	return err
}

func createTable(ctx context.Context, db *sql.DB) error {
	stmt, err := db.PrepareContext(ctx, queryCreateTable)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx)
	return err
}

func deleteStaleItems(ctx context.Context, db *sql.DB, cutoff time.Time) error {
	stmt, err := db.PrepareContext(ctx, queryDeleteStale)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, cutoff)
	return err
}

func cleanupTask(ctx context.Context, db *sql.DB, timer, retention time.Duration) {
	t := time.NewTimer(timer)

	for {
		select {
		case <-ctx.Done():
			log.Println("context is done")
			return
		case <-t.C:
			if err := deleteStaleItems(ctx, db, time.Now().UTC().Add(-retention)); err != nil {
				log.Println(err)
			}
			_ = t.Reset(timer)
		}
	}
}

// New creates a new PostgreSQL store instance with the provided configuration.
// It verifies the database connection, creates the necessary table structure,
// and optionally starts the cleanup task for stale items.
//
// Returns an error if:
// - The database connection test fails
// - Table creation fails
func New(ctx context.Context, db *sql.DB, config *Config) (*Store, error) {
	if db == nil {
		return nil, caches.ValidationError{
			Reason: "nil db",
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}

	if err := createTable(ctx, db); err != nil {
		return nil, err
	}

	if config != nil && config.DeleteStaleItems {
		timer := config.CleanupTimer
		if timer == 0 {
			timer = caches.DefaultCleanupTimer
		}

		retention := config.ItemRetention
		if retention == 0 {
			retention = caches.DefaultItemRetention
		}

		go cleanupTask(ctx, db, timer, retention)
	}

	return &Store{
		db: db,
	}, nil
}
