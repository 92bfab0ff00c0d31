package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// SQLiteStore persists history across restarts.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) ([]entities.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, created_at FROM messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []entities.ChatMessage
	for rows.Next() {
		var m entities.ChatMessage
		var role, created string
		if err := rows.Scan(&m.ID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = entities.Role(role)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, msgs ...entities.ChatMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insert(ctx, tx, msgs)
	})
}

func (s *SQLiteStore) Reset(ctx context.Context, msgs ...entities.ChatMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		return insert(ctx, tx, msgs)
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insert(ctx context.Context, tx *sql.Tx, msgs []entities.ChatMessage) error {
	for _, m := range msgs {
		if !m.Role.IsHistoryRole() {
			return fmt.Errorf("message %s: role %q not allowed in history", m.ID, m.Role)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			m.ID, string(m.Role), m.Content, m.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return nil
}
