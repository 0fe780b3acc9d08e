package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/retry"
)

type outcome string

const (
	outcomeNew       outcome = "new"
	outcomeChanged   outcome = "changed"
	outcomeUnchanged outcome = "unchanged"
)

var (
	ErrUnexpectedContent = errors.New("unexpected content type")
	ErrTooLarge          = errors.New("document exceeds size limit")
)

type download struct {
	notModified  bool
	tempPath     string
	hash         string
	size         int64
	format       documentModel.Format
	etag         string
	lastModified string
}

// fetch downloads one candidate and records the outcome in the tracker.
func (c *Crawler) fetch(ctx context.Context, cand Candidate) (outcome, documentModel.DocumentRecord, error) {
	dir := filepath.Join(c.documentsDir, string(cand.Category))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", documentModel.DocumentRecord{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	var dl download
	_, err := retry.Do(ctx, c.policy, errorModel.IsRetryable, func(ctx context.Context, attempt int) error {
		var err error
		dl, err = c.download(ctx, cand, dir)
		return err
	})
	if err != nil {
		return "", documentModel.DocumentRecord{}, err
	}

	now := c.now()
	if dl.notModified || (cand.Prior != nil && cand.Prior.ContentHash == dl.hash) {
		if dl.tempPath != "" {
			_ = os.Remove(dl.tempPath)
		}
		if err := c.tracker.Touch(ctx, cand.ID, now); err != nil {
			return "", documentModel.DocumentRecord{}, errorModel.Storage("touch", err)
		}
		return outcomeUnchanged, documentModel.DocumentRecord{}, nil
	}

	dest := c.destination(dir, cand, dl.format)
	if err := os.Rename(dl.tempPath, dest); err != nil {
		_ = os.Remove(dl.tempPath)
		return "", documentModel.DocumentRecord{}, fmt.Errorf("storing %s: %w", dest, err)
	}

	record := documentModel.DocumentRecord{
		ID:           cand.ID,
		Category:     cand.Category,
		SourceURL:    cand.URL,
		Title:        cand.Title,
		ContentHash:  dl.hash,
		LocalPath:    dest,
		Format:       dl.format,
		SizeBytes:    dl.size,
		LastVerified: now,
		Status:       documentModel.StatusPending,
		ETag:         dl.etag,
		LastModified: dl.lastModified,
	}
	if cand.Prior != nil {
		record.FirstSeen = cand.Prior.FirstSeen
		if record.Title == "" {
			record.Title = cand.Prior.Title
		}
	}
	if err := c.tracker.Record(ctx, record); err != nil {
		return "", documentModel.DocumentRecord{}, errorModel.Storage("record", err)
	}

	c.logger.ForContext(ctx).Info("document stored", "category", cand.Category, "docId", cand.ID, "file", filepath.Base(dest), "bytes", dl.size)
	if cand.Prior != nil {
		return outcomeChanged, record, nil
	}
	return outcomeNew, record, nil
}

// download streams one response body to a temp file in dir while hashing it.
func (c *Crawler) download(ctx context.Context, cand Candidate, dir string) (download, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return download{}, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return download{}, err
	}
	c.decorate(req)
	if cand.Prior != nil {
		if cand.Prior.ETag != "" {
			req.Header.Set("If-None-Match", cand.Prior.ETag)
		}
		if cand.Prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", cand.Prior.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return download{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cand.Prior != nil {
		return download{notModified: true}, nil
	}
	if err := statusError(resp); err != nil {
		return download{}, err
	}

	format, err := checkContentType(resp.Header.Get("Content-Type"), cand.Format)
	if err != nil {
		return download{}, err
	}

	sizeLimit := c.settings.MaxDocumentSize
	if sizeLimit > 0 && resp.ContentLength > sizeLimit {
		return download{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return download{}, err
	}
	hasher := sha256.New()
	body := io.Reader(resp.Body)
	if sizeLimit > 0 {
		body = io.LimitReader(resp.Body, sizeLimit+1)
	}
	n, copyErr := io.Copy(io.MultiWriter(tmp, hasher), body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil || (sizeLimit > 0 && n > sizeLimit) {
		_ = os.Remove(tmp.Name())
		switch {
		case copyErr != nil:
			return download{}, transportError(ctx, copyErr)
		case closeErr != nil:
			return download{}, closeErr
		}
		return download{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, sizeLimit)
	}

	return download{
		tempPath:     tmp.Name(),
		hash:         hex.EncodeToString(hasher.Sum(nil)),
		size:         n,
		format:       format,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// destination keeps a changed document at its old path and avoids clobbering
// another document that sanitised to the same name.
func (c *Crawler) destination(dir string, cand Candidate, format documentModel.Format) string {
	if cand.Prior != nil && cand.Prior.LocalPath != "" && cand.Prior.Format == format {
		return cand.Prior.LocalPath
	}
	name := fileName(cand.URL, format)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		dest = filepath.Join(dir, strings.TrimSuffix(name, ext)+"_"+cand.ID[:8]+ext)
	}
	return dest
}

func (c *Crawler) decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.settings.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

var contentTypeHints = map[documentModel.Format][]string{
	documentModel.PDF:  {"pdf"},
	documentModel.XLSX: {"spreadsheetml", "ms-excel", "excel"},
	documentModel.DOCX: {"wordprocessingml", "msword"},
}

// checkContentType accepts the response when its media type matches the
// expected format. Generic binary types are accepted for links that already
// name their format. An unknown format is resolved from the media type.
func checkContentType(header string, expected documentModel.Format) (documentModel.Format, error) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType = strings.ToLower(header)
	}

	if expected != "" {
		if mediaType == "application/octet-stream" || mediaType == "binary/octet-stream" {
			return expected, nil
		}
		for _, hint := range contentTypeHints[expected] {
			if strings.Contains(mediaType, hint) {
				return expected, nil
			}
		}
		return "", fmt.Errorf("%w %q for %s", ErrUnexpectedContent, header, expected)
	}

	for _, format := range []documentModel.Format{documentModel.PDF, documentModel.XLSX, documentModel.DOCX} {
		for _, hint := range contentTypeHints[format] {
			if strings.Contains(mediaType, hint) {
				return format, nil
			}
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnexpectedContent, header)
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	se := &errorModel.ServiceError{
		Service:     "source",
		StatusCode:  resp.StatusCode,
		Retryable:   resp.StatusCode >= 500,
		RateLimited: resp.StatusCode == http.StatusTooManyRequests,
		Err:         errors.New(http.StatusText(resp.StatusCode)),
	}
	if se.RateLimited {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			se.Err = fmt.Errorf("%s, retry after %s", se.Err, time.Duration(secs)*time.Second)
		}
	}
	return se
}

// transportError marks network failures retryable unless the caller gave up.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &errorModel.ServiceError{Service: "source", Retryable: true, Err: err}
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
