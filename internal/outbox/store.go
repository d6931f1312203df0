package outbox

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/poovendhan-mathi/yekzen-cart/internal/events"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Record is one stored event awaiting delivery.
type Record struct {
	ID          int64  `db:"id"`
	AggregateID string `db:"aggregate_id"`
	Topic       string `db:"topic"`
	EventType   string `db:"event_type"`
	Payload     []byte `db:"payload"`
}

// Store keeps events in SQLite until a Relay hands them to the broker. It
// implements events.Publisher, so a publish succeeds as soon as the row is
// written.
type Store struct {
	db    *sqlx.DB
	clock clock.Clock
}

func Open(dbPath string, c clock.Clock) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if c == nil {
		c = clock.New()
	}
	return &Store{db: db, clock: c}, nil
}

func (s *Store) RunMigrations() error {
	driver, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{MigrationsTable: "outbox_schema_migrations"})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, topic string, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	aggregateID := e.CheckoutID
	if aggregateID == "" {
		aggregateID = e.ShopperID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, topic, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		aggregateID, topic, e.Type, payload, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store outbox event: %w", err)
	}
	return nil
}

// Unprocessed returns up to limit undelivered events, oldest first.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, aggregate_id, topic, event_type, payload FROM outbox_events
		 WHERE processed_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	return records, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = ? WHERE id = ?`, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d processed: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
