package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the client-side SQLite journal
type DB struct {
	db *sql.DB
}

// Event is one journaled entry: a stream message, a command the user
// issued, or a response the server returned
type Event struct {
	ID        int64
	Kind      string // "stream", "command", "response"
	Wallet    string
	Payload   string
	Timestamp int64
}

// NewDB opens (and migrates) the journal database
func NewDB(path string) (*DB, error) {
	// Add connection options to path if not present
	// _pragma=journal_mode(WAL) & _pragma=synchronous(NORMAL)
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("journal initialized")
	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		wallet TEXT NOT NULL,
		payload TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_wallet ON events(wallet);
	`

	_, err := db.Exec(schema)
	return err
}

// InsertEvent journals one event
func (d *DB) InsertEvent(e *Event) error {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	_, err := d.db.Exec(`
		INSERT INTO events (kind, wallet, payload, timestamp)
		VALUES (?, ?, ?, ?)`,
		e.Kind, e.Wallet, e.Payload, e.Timestamp)
	return err
}

// RecentEvents retrieves the most recent events, newest first
func (d *DB) RecentEvents(limit int) ([]*Event, error) {
	rows, err := d.db.Query(`
		SELECT id, kind, wallet, payload, timestamp
		FROM events ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Wallet, &e.Payload, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// EventStats returns how many events of each kind were journaled
func (d *DB) EventStats() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[kind] = count
	}
	return stats, rows.Err()
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}
