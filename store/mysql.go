package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore backs the store with MySQL/MariaDB for deployments where
// several agent processes share history and subscribers.
type MySQLStore struct {
	db *sql.DB
}

// OpenMySQL opens (and migrates) a MySQL store. The DSN is the driver's
// usual form, e.g. "user:pass@tcp(localhost:3306)/agent". parseTime is
// forced on so timestamps scan as time.Time.
func OpenMySQL(dsn string) (*MySQLStore, error) {
	if !strings.Contains(dsn, "parseTime") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating mysql schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			query TEXT NOT NULL,
			source VARCHAR(64) NOT NULL,
			response TEXT NOT NULL,
			item_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_query_log_user (user_id, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS wa_subscribers (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			chat_id VARCHAR(255) NOT NULL,
			preferences VARCHAR(255) NOT NULL DEFAULT 'news,crypto,stocks',
			subscribed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			active TINYINT(1) NOT NULL DEFAULT 1,
			UNIQUE KEY unique_chat (chat_id),
			INDEX idx_wa_subscribers_active (active)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) LogQuery(ctx context.Context, rec QueryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (user_id, query, source, response, item_count) VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.Query, rec.Source, clipResponse(rec.Response), rec.ItemCount,
	)
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}

func (s *MySQLStore) History(ctx context.Context, userID string, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, source, response, item_count, created_at
		 FROM query_log WHERE (? = '' OR user_id = ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Source, &rec.Response, &rec.ItemCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning query record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *MySQLStore) Subscribe(ctx context.Context, chatID, preferences string) error {
	if preferences == "" {
		preferences = defaultPreferences
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wa_subscribers (chat_id, preferences, active) VALUES (?, ?, 1)
		 ON DUPLICATE KEY UPDATE active = 1, preferences = VALUES(preferences)`,
		chatID, preferences,
	)
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", chatID, err)
	}
	return nil
}

func (s *MySQLStore) Unsubscribe(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE wa_subscribers SET active = 0 WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("unsubscribing %s: %w", chatID, err)
	}
	return nil
}

func (s *MySQLStore) ActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
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
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.Preferences, &sub.SubscribedAt, &sub.Active); err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *MySQLStore) Close() error { return s.db.Close() }
