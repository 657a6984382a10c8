package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Import for registration side-effect.
)

const schema = `
CREATE TABLE IF NOT EXISTS contents (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	owner              TEXT NOT NULL,
	corrected_text     TEXT NOT NULL,
	summary_title      TEXT NOT NULL,
	summary_topic      TEXT NOT NULL,
	summary_content    TEXT NOT NULL,
	summary_keywords   TEXT NOT NULL DEFAULT '',
	knowledge_text     TEXT NOT NULL DEFAULT '',
	public             INTEGER NOT NULL DEFAULT 0,
	public_title       TEXT NOT NULL DEFAULT '',
	public_description TEXT NOT NULL DEFAULT '',
	published_at       TIMESTAMP,
	created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS content_tags (
	content_id INTEGER NOT NULL REFERENCES contents(id),
	tag_id     INTEGER NOT NULL REFERENCES tags(id),
	confidence REAL NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (content_id, tag_id)
);
`

// SQLite is the Store implementation over a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the content database at path.
func OpenSQLite(path string) (*SQLite, error) {
	var db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) StoreContent(ctx context.Context, owner uuid.UUID, correctedText string, summary model.Summary, knowledgeText string) (int64, error) {
	var res, err = s.db.ExecContext(ctx, `
		INSERT INTO contents (owner, corrected_text, summary_title, summary_topic, summary_content, summary_keywords, knowledge_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		owner.String(), correctedText, summary.Title, summary.Topic,
		summary.ContentMarkdown, strings.Join(summary.Keywords, ","), knowledgeText)
	if err != nil {
		return 0, fmt.Errorf("inserting content: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) ListExistingTags(ctx context.Context, limit int) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx,
		`SELECT name FROM tags ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) UpsertTag(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("upserting tag %q: %w", name, err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading tag %q: %w", name, err)
	}
	return id, nil
}

func (s *SQLite) Associate(ctx context.Context, contentID, tagID int64, confidence float64) error {
	var _, err = s.db.ExecContext(ctx, `
		INSERT INTO content_tags (content_id, tag_id, confidence) VALUES (?, ?, ?)
		ON CONFLICT(content_id, tag_id) DO UPDATE SET confidence = excluded.confidence`,
		contentID, tagID, confidence)
	if err != nil {
		return fmt.Errorf("associating tag %d with content %d: %w", tagID, contentID, err)
	}
	return nil
}

func (s *SQLite) SetContentPublic(ctx context.Context, contentID int64, publicTitle, publicDescription string, publishedAt time.Time) error {
	var res, err = s.db.ExecContext(ctx, `
		UPDATE contents SET public = 1, public_title = ?, public_description = ?, published_at = ?
		WHERE id = ?`,
		publicTitle, publicDescription, publishedAt, contentID)
	if err != nil {
		return fmt.Errorf("publishing content %d: %w", contentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("publishing content %d: no such content", contentID)
	}
	return nil
}

var _ Store = (*SQLite)(nil)
