package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves a small regulator site. Routes can be overridden per test.
type fakeSite struct {
	*httptest.Server
	mux         *http.ServeMux
	flakyCalls  atomic.Int32
	etagChecked atomic.Bool
}

func newFakeSite(t *testing.T) *fakeSite {
	site := &fakeSite{mux: http.NewServeMux()}
	site.Server = httptest.NewServer(site.mux)
	t.Cleanup(site.Close)

	site.mux.HandleFunc("/web/guest/circulars", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "text/html")
		if page == "2" {
			fmt.Fprint(w, `<html><body><a href="/files/d.pdf">Circular D</a></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/documents/37343/365525/Master+Circular.pdf/1f2e3d?t=123">Master circular</a>
			<a href="/files/known.pdf">Already known</a>
			<a href="/files/known.pdf#dup">Duplicate link</a>
			<a href="javascript:void(0)">noise</a>
			<a href="/web/guest/document-detail?documentId=9">Detail</a>
			<a href="/web/guest/circulars?page=2">Next</a>
		</body></html>`)
	})
	site.mux.HandleFunc("/web/guest/document-detail", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/files/annex.xlsx">Annexure</a></body></html>`)
	})
	site.mux.HandleFunc("/web/guest/regulations", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	site.mux.HandleFunc("/documents/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 master circular")
	})
	site.mux.HandleFunc("/files/known.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 known")
	})
	site.mux.HandleFunc("/files/d.pdf", func(w http.ResponseWriter, r *http.Request) {
		// first call fails to exercise the retry path
		if site.flakyCalls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("ETag", `"d-v1"`)
		fmt.Fprint(w, "%PDF-1.4 circular d")
	})
	site.mux.HandleFunc("/files/annex.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		fmt.Fprint(w, "PK fake workbook")
	})
	return site
}

func newTestCrawler(t *testing.T, site *fakeSite, tr documentModel.Tracker) *Crawler {
	c, err := New(config.SourceSettings{
		BaseURL: site.URL,
		Categories: map[string]string{
			"circular":   "/web/guest/circulars",
			"regulation": "/web/guest/regulations",
		},
		MaxPages:        3,
		Workers:         2,
		RequestTimeout:  5 * time.Second,
		MaxAttempts:     3,
		BackoffBase:     time.Millisecond,
		MaxDocumentSize: 1 << 20,
		IgnoredParams:   []string{"t"},
	}, t.TempDir(), tr, site.Client())
	require.NoError(t, err)
	return c
}

func knownRecord(t *testing.T, rawURL string) documentModel.DocumentRecord {
	canonical, err := tracker.Canonicalize(rawURL)
	require.NoError(t, err)
	return documentModel.DocumentRecord{
		ID:           tracker.DocumentID(canonical),
		Category:     documentModel.Circular,
		SourceURL:    canonical,
		Format:       documentModel.PDF,
		Status:       documentModel.StatusIngested,
		LastVerified: time.Now(),
	}
}

func TestCrawl_SkipsKnownAndIsolatesFailures(t *testing.T) {
	site := newFakeSite(t)
	tr := tracker.NewMemoryTracker()
	ctx := context.Background()
	require.NoError(t, tr.Record(ctx, knownRecord(t, site.URL+"/files/known.pdf")))

	c := newTestCrawler(t, site, tr)
	report, err := c.Crawl(ctx)
	var listingErr *errorModel.ListingError
	require.ErrorAs(t, err, &listingErr, "the regulations listing is missing")
	assert.Equal(t, string(documentModel.Regulation), listingErr.Category)

	circulars := report.Categories[documentModel.Circular]
	require.NotNil(t, circulars)
	assert.Equal(t, 3, circulars.New, "master circular, annexure and page two")
	assert.Equal(t, 1, circulars.Unchanged)
	assert.Equal(t, 4, circulars.Discovered)
	assert.Empty(t, circulars.Failures)
	assert.Len(t, report.Documents, 3)

	regulations := report.Categories[documentModel.Regulation]
	require.NotNil(t, regulations)
	assert.NotEmpty(t, regulations.ListingError)
	assert.Zero(t, regulations.New)

	assert.Equal(t, int32(2), site.flakyCalls.Load(), "500 must be retried once")

	records, err := tr.ListByCategory(ctx, documentModel.Circular)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	for _, rec := range report.Documents {
		assert.Equal(t, documentModel.StatusPending, rec.Status)
		assert.FileExists(t, rec.LocalPath)
		assert.Len(t, rec.ContentHash, 64)
	}
}

func TestCrawl_TwoNewOneKnown(t *testing.T) {
	site := &fakeSite{mux: http.NewServeMux()}
	site.Server = httptest.NewServer(site.mux)
	t.Cleanup(site.Close)
	site.mux.HandleFunc("/web/guest/circulars", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/f/a.pdf">A</a><a href="/f/b.pdf">B</a><a href="/f/c.pdf">C</a>`)
	})
	site.mux.HandleFunc("/f/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF "+r.URL.Path)
	})

	tr := tracker.NewMemoryTracker()
	ctx := context.Background()
	require.NoError(t, tr.Record(ctx, knownRecord(t, site.URL+"/f/b.pdf")))

	c := newTestCrawler(t, site, tr)
	report, err := c.Crawl(ctx, documentModel.Circular)
	require.NoError(t, err)

	assert.Len(t, report.Documents, 2)
	records, err := tr.ListByCategory(ctx, documentModel.Circular)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDiscover_YieldsOnlyUnknown(t *testing.T) {
	site := newFakeSite(t)
	tr := tracker.NewMemoryTracker()
	ctx := context.Background()
	known := knownRecord(t, site.URL+"/files/known.pdf")
	require.NoError(t, tr.Record(ctx, known))

	c := newTestCrawler(t, site, tr)
	var ids []string
	for cand, err := range c.Discover(ctx, documentModel.Circular) {
		require.NoError(t, err)
		assert.NotEqual(t, known.ID, cand.ID)
		ids = append(ids, cand.ID)
	}
	assert.Len(t, ids, 3)
}

func TestDiscover_ListingFailure(t *testing.T) {
	site := newFakeSite(t)
	c := newTestCrawler(t, site, tracker.NewMemoryTracker())

	var errs []error
	for _, err := range c.Discover(context.Background(), documentModel.Regulation) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	var listingErr *errorModel.ListingError
	assert.True(t, errors.As(errs[0], &listingErr))
	assert.Equal(t, "regulation", listingErr.Category)
}

func TestCrawl_RejectsUnexpectedContentType(t *testing.T) {
	site := &fakeSite{mux: http.NewServeMux()}
	site.Server = httptest.NewServer(site.mux)
	t.Cleanup(site.Close)
	site.mux.HandleFunc("/web/guest/circulars", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/f/login.pdf">Login wall</a>`)
	})
	site.mux.HandleFunc("/f/login.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html>please sign in</html>")
	})

	tr := tracker.NewMemoryTracker()
	c := newTestCrawler(t, site, tr)
	report, err := c.Crawl(context.Background(), documentModel.Circular)
	require.NoError(t, err)

	circulars := report.Categories[documentModel.Circular]
	require.Len(t, circulars.Failures, 1)
	assert.Contains(t, circulars.Failures[0].Error, "unexpected content type")
	assert.Empty(t, report.Documents)

	records, err := tr.ListByCategory(context.Background(), documentModel.Circular)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCrawl_RevalidatesStaleRecords(t *testing.T) {
	site := &fakeSite{mux: http.NewServeMux()}
	site.Server = httptest.NewServer(site.mux)
	t.Cleanup(site.Close)
	site.mux.HandleFunc("/web/guest/circulars", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/f/a.pdf">A</a>`)
	})
	site.mux.HandleFunc("/f/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			site.etagChecked.Store(true)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF new")
	})

	tr := tracker.NewMemoryTracker()
	ctx := context.Background()
	stale := knownRecord(t, site.URL+"/f/a.pdf")
	stale.ETag = `"v1"`
	stale.LastVerified = time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, tr.Record(ctx, stale))

	c := newTestCrawler(t, site, tr)
	c.settings.RevalidateAfter = 7 * 24 * time.Hour

	report, err := c.Crawl(ctx, documentModel.Circular)
	require.NoError(t, err)
	assert.True(t, site.etagChecked.Load())
	assert.Empty(t, report.Documents)
	assert.Equal(t, 1, report.Categories[documentModel.Circular].Unchanged)

	got, _, err := tr.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, got.LastVerified.After(stale.LastVerified))
	assert.Equal(t, documentModel.StatusIngested, got.Status)
}

func TestCrawl_ChangedContentIsRecordedAgain(t *testing.T) {
	site := &fakeSite{mux: http.NewServeMux()}
	site.Server = httptest.NewServer(site.mux)
	t.Cleanup(site.Close)
	site.mux.HandleFunc("/web/guest/circulars", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/f/a.pdf">A</a>`)
	})
	site.mux.HandleFunc("/f/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF amended")
	})

	tr := tracker.NewMemoryTracker()
	ctx := context.Background()
	stale := knownRecord(t, site.URL+"/f/a.pdf")
	stale.ContentHash = "old-hash"
	stale.ChunkCount = 7
	stale.FirstSeen = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	stale.LastVerified = time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, tr.Record(ctx, stale))

	c := newTestCrawler(t, site, tr)
	c.settings.RevalidateAfter = time.Hour

	report, err := c.Crawl(ctx, documentModel.Circular)
	require.NoError(t, err)
	require.Len(t, report.Documents, 1)
	assert.Equal(t, 1, report.Categories[documentModel.Circular].Changed)

	got, _, err := tr.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, documentModel.StatusPending, got.Status)
	assert.NotEqual(t, "old-hash", got.ContentHash)
	assert.True(t, got.FirstSeen.Equal(stale.FirstSeen))
}

func TestCrawl_TrackerFailureAborts(t *testing.T) {
	site := newFakeSite(t)
	tr := &failingTracker{MemoryTracker: tracker.NewMemoryTracker()}
	c := newTestCrawler(t, site, tr)

	_, err := c.Crawl(context.Background(), documentModel.Circular)
	require.Error(t, err)
	var storageErr *errorModel.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

type failingTracker struct {
	*tracker.MemoryTracker
}

func (f *failingTracker) Record(ctx context.Context, record documentModel.DocumentRecord) error {
	return errorModel.Storage("record", errors.New("disk full"))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url    string
		format documentModel.Format
		want   string
	}{
		{"https://irdai.gov.in/documents/1/2/Master+Circular.pdf/abc", documentModel.PDF, "Master Circular.pdf"},
		{"https://irdai.gov.in/f/%E0%A4%AC%E0%A5%80%E0%A4%AE%E0%A4%BE_rules.pdf", documentModel.PDF, "rules.pdf"},
		{"https://irdai.gov.in/f/annex.xlsx", documentModel.XLSX, "annex.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, fileName(tt.url, tt.format))
		})
	}

	fallback := fileName("https://irdai.gov.in/f/%E0%A4%AC.pdf", documentModel.PDF)
	assert.Regexp(t, `^doc_[0-9a-f]{8}\.pdf$`, fallback)
}

func TestCheckContentType(t *testing.T) {
	format, err := checkContentType("application/octet-stream", documentModel.PDF)
	require.NoError(t, err)
	assert.Equal(t, documentModel.PDF, format)

	format, err = checkContentType("application/vnd.openxmlformats-officedocument.wordprocessingml.document", "")
	require.NoError(t, err)
	assert.Equal(t, documentModel.DOCX, format)

	_, err = checkContentType("text/html", documentModel.PDF)
	assert.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestUpload_RecordsPendingAndDetectsRepeats(t *testing.T) {
	site := newFakeSite(t)
	tr := tracker.NewMemoryTracker()
	c := newTestCrawler(t, site, tr)
	ctx := context.Background()

	first, unchanged, err := c.Upload(ctx, documentModel.Guideline, "Board Guidelines.pdf", "Board Guidelines", []byte("%PDF-1.4 one"))
	require.NoError(t, err)
	require.False(t, unchanged)
	require.Equal(t, documentModel.StatusPending, first.Status)
	require.Equal(t, documentModel.PDF, first.Format)
	require.FileExists(t, first.LocalPath)

	again, unchanged, err := c.Upload(ctx, documentModel.Guideline, "Board Guidelines.pdf", "", []byte("%PDF-1.4 one"))
	require.NoError(t, err)
	require.True(t, unchanged)
	require.Equal(t, first.ID, again.ID)

	changed, unchanged, err := c.Upload(ctx, documentModel.Guideline, "Board Guidelines.pdf", "", []byte("%PDF-1.4 two"))
	require.NoError(t, err)
	require.False(t, unchanged)
	require.Equal(t, first.ID, changed.ID)
	require.Equal(t, first.LocalPath, changed.LocalPath)
	require.Equal(t, "Board Guidelines", changed.Title)
	require.NotEqual(t, first.ContentHash, changed.ContentHash)

	_, _, err = c.Upload(ctx, documentModel.Guideline, "notes.txt", "", []byte("text"))
	var unsupported *errorModel.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
}
