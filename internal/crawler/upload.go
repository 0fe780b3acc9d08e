package crawler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
)

const uploadScheme = "upload"

// Upload stores a manually supplied document next to the crawled ones and
// records it as pending. The identity is derived from category and file
// name, so uploading the same name again replaces the earlier version.
// unchanged is true when the stored bytes already match.
func (c *Crawler) Upload(ctx context.Context, category documentModel.Category, name, title string, data []byte) (record documentModel.DocumentRecord, unchanged bool, err error) {
	format, ok := documentModel.FormatFromName(name)
	if !ok {
		return documentModel.DocumentRecord{}, false, &errorModel.UnsupportedFormatError{Format: filepath.Ext(name)}
	}
	if len(data) == 0 {
		return documentModel.DocumentRecord{}, false, &errorModel.CorruptInputError{Format: string(format), Err: fmt.Errorf("empty upload")}
	}

	source := (&url.URL{Scheme: uploadScheme, Host: string(category), Path: "/" + filepath.Base(name)}).String()
	canonical, err := tracker.Canonicalize(source)
	if err != nil {
		return documentModel.DocumentRecord{}, false, err
	}
	id := tracker.DocumentID(canonical)
	hash := tracker.ContentHash(data)

	prior, found, err := c.tracker.Get(ctx, id)
	if err != nil {
		return documentModel.DocumentRecord{}, false, errorModel.Storage("get", err)
	}
	if found && prior.ContentHash == hash {
		return prior, true, nil
	}

	dir := filepath.Join(c.documentsDir, string(category))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return documentModel.DocumentRecord{}, false, fmt.Errorf("creating %s: %w", dir, err)
	}
	cand := Candidate{Category: category, URL: source, ID: id, Title: title, Format: format}
	if found {
		cand.Prior = &prior
	}
	dest := c.destination(dir, cand, format)
	if err := writeAtomic(dir, dest, data); err != nil {
		return documentModel.DocumentRecord{}, false, err
	}

	now := c.now()
	record = documentModel.DocumentRecord{
		ID:           id,
		Category:     category,
		SourceURL:    source,
		Title:        title,
		ContentHash:  hash,
		LocalPath:    dest,
		Format:       format,
		SizeBytes:    int64(len(data)),
		LastVerified: now,
		Status:       documentModel.StatusPending,
	}
	if found {
		record.FirstSeen = prior.FirstSeen
		if record.Title == "" {
			record.Title = prior.Title
		}
	}
	if err := c.tracker.Record(ctx, record); err != nil {
		return documentModel.DocumentRecord{}, false, errorModel.Storage("record", err)
	}
	c.logger.ForContext(ctx).Info("uploaded document stored", "category", category, "docId", id, "file", filepath.Base(dest), "bytes", len(data))
	return record, false, nil
}

func writeAtomic(dir, dest string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("storing %s: %w", dest, err)
	}
	return nil
}
