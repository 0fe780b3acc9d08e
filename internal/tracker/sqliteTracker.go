package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL DEFAULT '',
	local_path    TEXT NOT NULL DEFAULT '',
	format        TEXT NOT NULL DEFAULT '',
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	first_seen    INTEGER NOT NULL,
	last_verified INTEGER NOT NULL,
	status        TEXT NOT NULL,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`

const selectColumns = `id, category, source_url, title, content_hash, local_path, format, size_bytes,
	first_seen, last_verified, status, chunk_count, last_error, etag, last_modified`

type SQLiteTracker struct {
	db     *sql.DB
	path   string
	logger *logger_i.Logger
}

// OpenSQLite opens (and migrates) the tracker database at path.
func OpenSQLite(path string) (*SQLiteTracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating tracker directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening tracker database: %w", err)
	}
	// one writer keeps upserts serialised without SQLITE_BUSY storms
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating tracker database: %w", err)
	}
	return &SQLiteTracker{db: db, path: path, logger: logger_i.NewLogger("tracker_sqlite")}, nil
}

func (s *SQLiteTracker) IsKnown(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errorModel.Storage("is known", err)
	}
	return true, nil
}

func (s *SQLiteTracker) Get(ctx context.Context, id string) (documentModel.DocumentRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM documents WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return documentModel.DocumentRecord{}, false, nil
	}
	if err != nil {
		return documentModel.DocumentRecord{}, false, errorModel.Storage("get", err)
	}
	return record, true, nil
}

func (s *SQLiteTracker) Record(ctx context.Context, record documentModel.DocumentRecord) error {
	r := merge(nil, record, time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			source_url = excluded.source_url,
			title = excluded.title,
			content_hash = excluded.content_hash,
			local_path = excluded.local_path,
			format = excluded.format,
			size_bytes = excluded.size_bytes,
			last_verified = excluded.last_verified,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			last_error = excluded.last_error,
			etag = excluded.etag,
			last_modified = excluded.last_modified
	`, r.ID, string(r.Category), r.SourceURL, r.Title, r.ContentHash, r.LocalPath, string(r.Format), r.SizeBytes,
		toUnix(r.FirstSeen), toUnix(r.LastVerified), string(r.Status), r.ChunkCount, r.LastError, r.ETag, r.LastModified)
	if err != nil {
		return errorModel.Storage("record", err)
	}
	return nil
}

func (s *SQLiteTracker) ListByCategory(ctx context.Context, category documentModel.Category) ([]documentModel.DocumentRecord, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM documents WHERE category = ? ORDER BY rowid`, string(category))
}

func (s *SQLiteTracker) ListByStatus(ctx context.Context, statuses ...documentModel.IngestStatus) ([]documentModel.DocumentRecord, error) {
	if len(statuses) == 0 {
		return s.query(ctx, `SELECT `+selectColumns+` FROM documents ORDER BY rowid`)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return s.query(ctx, `SELECT `+selectColumns+` FROM documents WHERE status IN (`+placeholders+`) ORDER BY rowid`, args...)
}

func (s *SQLiteTracker) Touch(ctx context.Context, id string, verifiedAt time.Time) error {
	return s.exec(ctx, "touch", id, `UPDATE documents SET last_verified = ? WHERE id = ?`, toUnix(verifiedAt), id)
}

func (s *SQLiteTracker) MarkIngested(ctx context.Context, id string, contentHash string, chunkCount int) error {
	return s.exec(ctx, "mark ingested", id,
		`UPDATE documents SET status = ?, content_hash = ?, chunk_count = ?, last_error = '' WHERE id = ?`,
		string(documentModel.StatusIngested), contentHash, chunkCount, id)
}

func (s *SQLiteTracker) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.exec(ctx, "mark failed", id,
		`UPDATE documents SET status = ?, last_error = ? WHERE id = ?`,
		string(documentModel.StatusFailed), reason, id)
}

func (s *SQLiteTracker) Close() error {
	return s.db.Close()
}

func (s *SQLiteTracker) exec(ctx context.Context, op string, id string, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errorModel.Storage(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errorModel.Storage(op+" "+id, errorModel.ErrNotFound)
	}
	return nil
}

func (s *SQLiteTracker) query(ctx context.Context, query string, args ...any) ([]documentModel.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errorModel.Storage("list", err)
	}
	defer rows.Close()

	var out []documentModel.DocumentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, errorModel.Storage("scan", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errorModel.Storage("list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (documentModel.DocumentRecord, error) {
	var r documentModel.DocumentRecord
	var category, format, status string
	var firstSeen, lastVerified int64
	err := row.Scan(&r.ID, &category, &r.SourceURL, &r.Title, &r.ContentHash, &r.LocalPath, &format, &r.SizeBytes,
		&firstSeen, &lastVerified, &status, &r.ChunkCount, &r.LastError, &r.ETag, &r.LastModified)
	if err != nil {
		return r, err
	}
	r.Category = documentModel.Category(category)
	r.Format = documentModel.Format(format)
	r.Status = documentModel.IngestStatus(status)
	r.FirstSeen = fromUnix(firstSeen)
	r.LastVerified = fromUnix(lastVerified)
	return r, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
