package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/itish2003/studyrag/models"
)

const (
	indexFileName = "index.db"

	schemaSQL = `
	CREATE TABLE IF NOT EXISTS index_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		subject_code TEXT NOT NULL,
		source       TEXT NOT NULL,
		source_type  TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		text         TEXT NOT NULL,
		embedding    BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_type, source);
	`
)

// SQLiteStore keeps one SQLite file per subject under root:
// <root>/<subject>/index.db. Each call opens and closes the file so a
// rebuilt directory can be swapped in between calls.
type SQLiteStore struct {
	root   string
	logger *zap.Logger
}

// NewSQLiteStore creates root if needed.
func NewSQLiteStore(root string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create index directory %s: %w", root, err)
	}
	return &SQLiteStore{root: root, logger: logger.Named("sqlite")}, nil
}

func (s *SQLiteStore) subjectDir(subject string) string {
	return filepath.Join(s.root, subject)
}

func openIndex(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("index migration failed: %w", err)
	}
	return db, nil
}

// Replace builds a fresh index in a sibling build directory and renames it
// over the subject's directory once every record is written.
func (s *SQLiteStore) Replace(ctx context.Context, subject, modelID string, records []Record) error {
	buildDir := filepath.Join(s.root, "."+subject+".build-"+uuid.NewString())
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(buildDir); err != nil {
			s.logger.Warn("failed to remove build dir", zap.String("dir", buildDir), zap.Error(err))
		}
	}

	db, err := openIndex(filepath.Join(buildDir, indexFileName))
	if err != nil {
		cleanup()
		return err
	}
	err = writeRecords(ctx, db, modelID, records)
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return err
	}

	target := s.subjectDir(subject)
	var oldDir string
	if _, err := os.Stat(target); err == nil {
		oldDir = filepath.Join(s.root, "."+subject+".old-"+uuid.NewString())
		if err := os.Rename(target, oldDir); err != nil {
			cleanup()
			return fmt.Errorf("move old index aside: %w", err)
		}
	}
	if err := os.Rename(buildDir, target); err != nil {
		if oldDir != "" {
			_ = os.Rename(oldDir, target)
		}
		cleanup()
		return fmt.Errorf("swap in rebuilt index: %w", err)
	}
	if oldDir != "" {
		if err := os.RemoveAll(oldDir); err != nil {
			s.logger.Warn("failed to remove previous index", zap.String("dir", oldDir), zap.Error(err))
		}
	}

	s.logger.Info("index replaced", zap.String("subject", subject), zap.Int("records", len(records)))
	return nil
}

// Append writes records into the subject's existing index.
func (s *SQLiteStore) Append(ctx context.Context, subject, modelID string, records []Record) error {
	dir := s.subjectDir(subject)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	db, err := openIndex(filepath.Join(dir, indexFileName))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := writeRecords(ctx, db, modelID, records); err != nil {
		return err
	}
	s.logger.Info("index appended", zap.String("subject", subject), zap.Int("records", len(records)))
	return nil
}

func writeRecords(ctx context.Context, db *sql.DB, modelID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Embedding)
	if err := checkOrStampMeta(ctx, db, modelID, dim); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, subject_code, source, source_type, chunk_index, text, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %s has dimension %d, want %d", ErrModelMismatch, r.ID, len(r.Embedding), dim)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Metadata.SubjectCode, r.Metadata.Source,
			r.Metadata.SourceType, r.Metadata.ChunkIndex, r.Text, encodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// checkOrStampMeta records the embedding model on first write and rejects
// writes from any other model afterwards.
func checkOrStampMeta(ctx context.Context, db *sql.DB, modelID string, dim int) error {
	storedModel, storedDim, err := readMeta(ctx, db)
	if err != nil {
		return err
	}
	if storedModel == "" {
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO index_meta (key, value) VALUES ('embed_model_id', ?), ('embed_dimension', ?)`,
			modelID, strconv.Itoa(dim))
		if err != nil {
			return fmt.Errorf("stamp index meta: %w", err)
		}
		return nil
	}
	if storedModel != modelID || storedDim != dim {
		return fmt.Errorf("%w: index built with %s (dim %d), got %s (dim %d)",
			ErrModelMismatch, storedModel, storedDim, modelID, dim)
	}
	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (string, int, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return "", 0, fmt.Errorf("read index meta: %w", err)
	}
	defer rows.Close()

	var model string
	var dim int
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", 0, err
		}
		switch k {
		case "embed_model_id":
			model = v
		case "embed_dimension":
			dim, _ = strconv.Atoi(v)
		}
	}
	return model, dim, rows.Err()
}

// Search scores every stored chunk against query (brute force) and returns the top n.
func (s *SQLiteStore) Search(ctx context.Context, subject, modelID string, query []float32, n int) ([]Hit, error) {
	db, err := s.openExisting(subject)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	storedModel, storedDim, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if storedModel == "" {
		return nil, nil
	}
	if storedModel != modelID || storedDim != len(query) {
		return nil, fmt.Errorf("%w: index built with %s (dim %d), query uses %s (dim %d)",
			ErrModelMismatch, storedModel, storedDim, modelID, len(query))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, subject_code, source, source_type, chunk_index, text, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var blob []byte
		if err := rows.Scan(&h.ID, &h.Metadata.SubjectCode, &h.Metadata.Source, &h.Metadata.SourceType,
			&h.Metadata.ChunkIndex, &h.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", h.ID, err)
		}
		h.Score = CosineSimilarity(query, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(hits, n), nil
}

func (s *SQLiteStore) Count(ctx context.Context, subject string) (int, error) {
	db, err := s.openExisting(subject)
	if err != nil {
		if errors.Is(err, models.ErrNotIngested) {
			return 0, nil
		}
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Exists reports whether the subject directory exists and is non-empty.
func (s *SQLiteStore) Exists(_ context.Context, subject string) (bool, error) {
	entries, err := os.ReadDir(s.subjectDir(subject))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (s *SQLiteStore) Drop(_ context.Context, subject string) error {
	return os.RemoveAll(s.subjectDir(subject))
}

func (s *SQLiteStore) Close() error { return nil }

func (s *SQLiteStore) openExisting(subject string) (*sql.DB, error) {
	dbPath := filepath.Join(s.subjectDir(subject), indexFileName)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotIngested, subject)
		}
		return nil, err
	}
	return openIndex(dbPath)
}
