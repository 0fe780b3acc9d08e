package documentModel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Category string

const (
	Regulation   Category = "regulation"
	Circular     Category = "circular"
	Notification Category = "notification"
	Guideline    Category = "guideline"
)

var Categories = []Category{Regulation, Circular, Notification, Guideline}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Format string

const (
	PDF  Format = "pdf"
	XLSX Format = "xlsx"
	DOCX Format = "docx"
)

// FormatFromName maps a file name or URL path to a supported format.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF, true
	case ".xlsx", ".xls":
		return XLSX, true
	case ".docx", ".doc":
		return DOCX, true
	}
	return "", false
}

type IngestStatus string

const (
	StatusPending  IngestStatus = "pending"
	StatusIngested IngestStatus = "ingested"
	StatusFailed   IngestStatus = "failed"
)

type DocumentRecord struct {
	ID           string       `json:"id"`
	Category     Category     `json:"category"`
	SourceURL    string       `json:"source_url"`
	Title        string       `json:"title,omitempty"`
	ContentHash  string       `json:"content_hash"`
	LocalPath    string       `json:"local_path"`
	Format       Format       `json:"format"`
	SizeBytes    int64        `json:"size_bytes"`
	FirstSeen    time.Time    `json:"first_seen"`
	LastVerified time.Time    `json:"last_verified"`
	Status       IngestStatus `json:"status"`
	ChunkCount   int          `json:"chunk_count"`
	LastError    string       `json:"last_error,omitempty"`
	ETag         string       `json:"etag,omitempty"`
	LastModified string       `json:"last_modified,omitempty"`
}

// DisplayName is what citations show for the document.
func (d DocumentRecord) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	if d.LocalPath != "" {
		return filepath.Base(d.LocalPath)
	}
	return d.ID
}

type ChunkRecord struct {
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Page         int       `json:"page"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
	ContentHash  string    `json:"content_hash"`
	DocumentHash string    `json:"document_hash"`
	Source       string    `json:"source"`
	SourceURL    string    `json:"source_url,omitempty"`
	Category     Category  `json:"category"`
}

type ScoredChunk struct {
	Chunk ChunkRecord `json:"chunk"`
	Score float32     `json:"score"`
}

// Tracker is the persistent record of every document the crawler has seen.
type Tracker interface {
	IsKnown(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (DocumentRecord, bool, error)
	Record(ctx context.Context, record DocumentRecord) error
	ListByCategory(ctx context.Context, category Category) ([]DocumentRecord, error)
	ListByStatus(ctx context.Context, statuses ...IngestStatus) ([]DocumentRecord, error)
	Touch(ctx context.Context, id string, verifiedAt time.Time) error
	MarkIngested(ctx context.Context, id string, contentHash string, chunkCount int) error
	MarkFailed(ctx context.Context, id string, reason string) error
	Close() error
}

type CategoryStats struct {
	Category Category `json:"category"`
	Total    int      `json:"total"`
	Ingested int      `json:"ingested"`
	Pending  int      `json:"pending"`
	Failed   int      `json:"failed"`
	Chunks   int      `json:"chunks"`
}
