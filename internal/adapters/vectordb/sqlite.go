package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

const dbFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	source_doc  TEXT NOT NULL,
	content     TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	embedding   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_id ON chunks(document_id);
`

// SQLiteIndexStore persists an index as a SQLite file inside a directory.
// The directory only ever appears complete: builds happen in a sibling
// staging directory that is renamed into place.
type SQLiteIndexStore struct {
	dir string
}

var _ ports.IndexStore = (*SQLiteIndexStore)(nil)

func NewSQLiteIndexStore(dir string) *SQLiteIndexStore {
	if dir == "" {
		dir = "./PlanAndBuilding_index"
	}
	return &SQLiteIndexStore{dir: filepath.Clean(dir)}
}

func (s *SQLiteIndexStore) Path() string { return s.dir }

func (s *SQLiteIndexStore) Exists() (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, dbFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, apperr.New(apperr.KindPersistence, "stat index", err)
	}
}

// Create writes chunks and build metadata, then publishes the directory.
func (s *SQLiteIndexStore) Create(ctx context.Context, info entities.IndexInfo, chunks []entities.Chunk) (ports.VectorIndex, error) {
	staging := s.dir + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return nil, apperr.New(apperr.KindPersistence, "clean staging dir", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, apperr.New(apperr.KindPersistence, "create staging dir", err)
	}

	info.ChunkCount = len(chunks)
	if len(chunks) > 0 {
		info.Dimension = len(chunks[0].Embedding)
	}
	if info.BuiltAt.IsZero() {
		info.BuiltAt = time.Now().UTC()
	}

	if err := writeIndex(ctx, filepath.Join(staging, dbFile), info, chunks); err != nil {
		_ = os.RemoveAll(staging)
		return nil, apperr.New(apperr.KindPersistence, "write index", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.dir), 0o755); err != nil {
		_ = os.RemoveAll(staging)
		return nil, apperr.New(apperr.KindPersistence, "create index parent", err)
	}
	// Without index.db the directory is leftover and not a published index.
	if err := os.RemoveAll(s.dir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, apperr.New(apperr.KindPersistence, "clear index dir", err)
	}
	if err := os.Rename(staging, s.dir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, apperr.New(apperr.KindPersistence, "publish index", err)
	}
	return NewMemoryIndex(info, chunks), nil
}

func writeIndex(ctx context.Context, path string, info entities.IndexInfo, chunks []entities.Chunk) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"embedding_model": info.EmbeddingModel,
		"dimension":       fmt.Sprint(info.Dimension),
		"built_at":        info.BuiltAt.Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, source_doc, content, chunk_index, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Source, c.Content, c.Index, encodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Open reads the persisted index into memory.
func (s *SQLiteIndexStore) Open(ctx context.Context) (ports.VectorIndex, error) {
	ok, err := s.Exists()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindPersistence, "open index", fmt.Errorf("%s: %w", s.dir, os.ErrNotExist))
	}

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(s.dir, dbFile)+"?mode=ro")
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, "open index", err)
	}
	defer db.Close()

	info, err := readInfo(ctx, db)
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, "read index meta", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, document_id, source_doc, content, chunk_index, embedding
		FROM chunks ORDER BY document_id, chunk_index
	`)
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, "query chunks", err)
	}
	defer rows.Close()

	var chunks []entities.Chunk
	for rows.Next() {
		var c entities.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Content, &c.Index, &blob); err != nil {
			return nil, apperr.New(apperr.KindPersistence, "scan chunk", err)
		}
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindPersistence, "read chunks", err)
	}
	info.ChunkCount = len(chunks)
	return NewMemoryIndex(info, chunks), nil
}

func readInfo(ctx context.Context, db *sql.DB) (entities.IndexInfo, error) {
	var info entities.IndexInfo
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return info, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return info, err
		}
		switch k {
		case "embedding_model":
			info.EmbeddingModel = v
		case "dimension":
			fmt.Sscan(v, &info.Dimension)
		case "built_at":
			info.BuiltAt, _ = time.Parse(time.RFC3339Nano, v)
		}
	}
	return info, rows.Err()
}

func (s *SQLiteIndexStore) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return apperr.New(apperr.KindPersistence, "remove index", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
