// Package storage persists collected articles and maintains the JSON
// exports derived from them.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store keeps one newsletter's articles, unique by original URL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema. For SQLite the dsn
// is the database file path; its directory is created if missing.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "id SERIAL PRIMARY KEY"
	}
	schema := `
	CREATE TABLE IF NOT EXISTS news (
		` + idColumn + `,
		topic TEXT,
		keywords TEXT,
		title TEXT,
		press TEXT,
		date TEXT,
		original_url TEXT UNIQUE,
		content TEXT
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_news_date ON news(date)`)
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) insertQuery() string {
	if s.driver == DriverPostgres {
		return s.rebind(`INSERT INTO news (topic, keywords, title, press, date, original_url, content)
			VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (original_url) DO NOTHING`)
	}
	return `INSERT OR IGNORE INTO news (topic, keywords, title, press, date, original_url, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
}

// SaveArticles inserts records whose URL is not stored yet, in a single
// transaction, and reports how many were new and how many were duplicates.
func (s *Store) SaveArticles(ctx context.Context, records []news.Record) (saved, duplicates int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.insertQuery())
	if err != nil {
		return 0, 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		res, execErr := stmt.ExecContext(ctx, r.Topic, r.Keywords, r.Title, r.Press, r.Date, r.OriginalURL, r.Content)
		if execErr != nil {
			return 0, 0, fmt.Errorf("insert %s: %w", r.OriginalURL, execErr)
		}
		n, _ := res.RowsAffected()
		if n == 1 {
			saved++
		} else {
			duplicates++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	logger.Info("saved articles", "saved", saved, "duplicates", duplicates)
	return saved, duplicates, nil
}

// SeenURLs returns every stored original URL.
func (s *Store) SeenURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT original_url FROM news WHERE original_url IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Records returns all stored articles, newest first.
func (s *Store) Records(ctx context.Context) ([]news.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, keywords, title, press, date, original_url, content
		FROM news
		ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	records := []news.Record{}
	for rows.Next() {
		var topic, keywords, title, press, date, link, content sql.NullString
		if err := rows.Scan(&topic, &keywords, &title, &press, &date, &link, &content); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		records = append(records, news.Record{
			Topic:       topic.String,
			Keywords:    keywords.String,
			Title:       title.String,
			Press:       press.String,
			Date:        date.String,
			OriginalURL: link.String,
			Content:     content.String,
		})
	}
	return records, rows.Err()
}

// ExportJSON writes every stored article to path, newest first, and
// returns the number written.
func (s *Store) ExportJSON(ctx context.Context, path string) (int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	if err := writeJSON(path, records, "    "); err != nil {
		return 0, err
	}
	logger.Info("exported json", "path", path, "articles", len(records))
	return len(records), nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ExportPath derives the JSON export path from the database file name.
func ExportPath(dbName string) string {
	if strings.HasSuffix(dbName, ".db") {
		return strings.TrimSuffix(dbName, ".db") + ".json"
	}
	return dbName + ".json"
}
