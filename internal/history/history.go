// Package history keeps an optional, best-effort log of file lifecycle
// events in PostgreSQL. It exists for operators: which rooms relayed
// what, through which provider, and how each file ended. The relay
// itself never reads it back; in-memory state stays authoritative and
// nothing here survives-or-restores relay state across restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Event kinds, matching the terminal transitions plus the share itself.
const (
	KindShared  = "shared"
	KindBurned  = "burned"
	KindExpired = "expired"
	KindEvicted = "evicted"
)

// Event is one row in the share log.
type Event struct {
	RoomCode string
	FileID   string
	Provider string
	FileName string
	Size     int64
	Kind     string
	At       time.Time
}

// Store wraps the share-log database.
type Store struct {
	db *sql.DB
}

// Open opens a PostgreSQL connection pool using the given URL.
func Open(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	// Conservative pool defaults; the log is low-volume.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Validate connectivity immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record inserts one event.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_events (room_code, file_id, provider, file_name, size_bytes, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.RoomCode, e.FileID, e.Provider, e.FileName, e.Size, e.Kind, e.At)
	return err
}

// RecentByRoom returns the newest events for a room, newest first.
func (s *Store) RecentByRoom(ctx context.Context, roomCode string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_code, file_id, provider, file_name, size_bytes, kind, occurred_at
		FROM share_events
		WHERE room_code = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RoomCode, &e.FileID, &e.Provider, &e.FileName, &e.Size, &e.Kind, &e.At); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
