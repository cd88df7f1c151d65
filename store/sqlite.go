package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the single-file default backend. WAL mode and a busy
// timeout let the scheduler and interactive queries share the file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite store at path. ":memory:" gives
// an ephemeral database for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}

	// One writer at a time; a second conn would just block on the file lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL,
			source TEXT NOT NULL,
			response TEXT NOT NULL,
			item_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_log_user ON query_log(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS wa_subscribers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL UNIQUE,
			preferences TEXT NOT NULL DEFAULT 'news,crypto,stocks',
			subscribed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wa_subscribers_active ON wa_subscribers(active)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) LogQuery(ctx context.Context, rec QueryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (user_id, query, source, response, item_count) VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.Query, rec.Source, clipResponse(rec.Response), rec.ItemCount,
	)
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, userID string, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, user_id, query, source, response, item_count, created_at
		FROM query_log WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *SQLiteStore) Subscribe(ctx context.Context, chatID, preferences string) error {
	if preferences == "" {
		preferences = defaultPreferences
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wa_subscribers (chat_id, preferences, active) VALUES (?, ?, 1)
		 ON CONFLICT(chat_id) DO UPDATE SET active = 1, preferences = excluded.preferences`,
		chatID, preferences,
	)
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) Unsubscribe(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE wa_subscribers SET active = 0 WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("unsubscribing %s: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) ActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, preferences, subscribed_at, active FROM wa_subscribers
		 WHERE active = 1 ORDER BY subscribed_at`)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var sub Subscriber
		var subscribedAt string
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.Preferences, &subscribedAt, &sub.Active); err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		sub.SubscribedAt = parseSQLiteTime(subscribedAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanRecords(rows *sql.Rows) ([]QueryRecord, error) {
	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Source, &rec.Response, &rec.ItemCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning query record: %w", err)
		}
		rec.CreatedAt = parseSQLiteTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// parseSQLiteTime handles the formats CURRENT_TIMESTAMP produces.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
