package crawler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/retry"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Candidate is a document link found on a listing that the tracker either has
// never seen or wants revalidated (Prior set).
type Candidate struct {
	Category documentModel.Category
	URL      string
	ID       string
	Title    string
	Format   documentModel.Format
	Prior    *documentModel.DocumentRecord
}

type Failure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type CategoryReport struct {
	Discovered   int       `json:"discovered"`
	New          int       `json:"new"`
	Changed      int       `json:"changed"`
	Unchanged    int       `json:"unchanged"`
	Failures     []Failure `json:"failures,omitempty"`
	ListingError string    `json:"listing_error,omitempty"`
}

type Report struct {
	StartedAt  time.Time                                  `json:"started_at"`
	FinishedAt time.Time                                  `json:"finished_at"`
	Categories map[documentModel.Category]*CategoryReport `json:"categories"`
	// Documents holds the new and changed records, all pending ingestion.
	Documents []documentModel.DocumentRecord `json:"documents"`
}

type Crawler struct {
	settings     config.SourceSettings
	documentsDir string
	categories   map[documentModel.Category]string
	tracker      documentModel.Tracker
	client       *http.Client
	limiter      *rate.Limiter
	policy       retry.Policy
	logger       *logger_i.Logger
	now          func() time.Time
}

func New(settings config.SourceSettings, documentsDir string, tracker documentModel.Tracker, client *http.Client) (*Crawler, error) {
	categories := make(map[documentModel.Category]string, len(settings.Categories))
	for name, path := range settings.Categories {
		c, err := documentModel.ParseCategory(strings.TrimSuffix(name, "s"))
		if err != nil {
			return nil, err
		}
		categories[c] = path
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if settings.MaxPages < 1 {
		settings.MaxPages = 1
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = config.CrawlRequestTimeout
	}
	if settings.UserAgent == "" {
		settings.UserAgent = config.SourceUserAgent
	}

	limit := rate.Inf
	if settings.RatePerSecond > 0 {
		limit = rate.Limit(settings.RatePerSecond)
	}
	logger := logger_i.NewLogger("crawler")
	return &Crawler{
		settings:     settings,
		documentsDir: documentsDir,
		categories:   categories,
		tracker:      tracker,
		client:       client,
		limiter:      rate.NewLimiter(limit, settings.Workers),
		policy: retry.Policy{
			MaxAttempts: settings.MaxAttempts,
			Base:        settings.BackoffBase,
			Max:         30 * time.Second,
			Jitter:      0.2,
			Logger:      logger,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Categories lists the configured categories in their canonical order.
func (c *Crawler) Categories() []documentModel.Category {
	out := make([]documentModel.Category, 0, len(c.categories))
	for _, category := range documentModel.Categories {
		if _, ok := c.categories[category]; ok {
			out = append(out, category)
		}
	}
	return out
}

// Crawl discovers and fetches every category. Per-document failures land in
// the report. A listing failure stops only its own category; the others are
// still fetched and the listing errors are returned joined with the report.
// A tracker failure or cancellation aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, categories ...documentModel.Category) (Report, error) {
	if len(categories) == 0 {
		categories = c.Categories()
	}
	log := c.logger.ForContext(ctx)

	report := Report{
		StartedAt:  c.now(),
		Categories: make(map[documentModel.Category]*CategoryReport, len(categories)),
	}
	for _, category := range categories {
		report.Categories[category] = &CategoryReport{}
	}

	var (
		mu          sync.Mutex
		listingErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Workers)

	for _, category := range categories {
		catReport := report.Categories[category]
		stats := &discoverStats{}

		for cand, err := range c.discover(gctx, category, stats) {
			if err != nil {
				var listingErr *errorModel.ListingError
				if errors.As(err, &listingErr) {
					log.Warn("category listing failed", "category", category, "error", err)
					mu.Lock()
					catReport.ListingError = err.Error()
					listingErrs = append(listingErrs, err)
					mu.Unlock()
					continue
				}
				// tracker failure; stop dispatching and let running fetches settle
				g.Go(func() error { return err })
				break
			}

			g.Go(func() error {
				outcome, record, err := c.fetch(gctx, cand)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					var storageErr *errorModel.StorageError
					if errors.As(err, &storageErr) {
						return err
					}
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn("document fetch failed", "category", category, "url", cand.URL, "error", err)
					catReport.Failures = append(catReport.Failures, Failure{URL: cand.URL, Error: err.Error()})
					metrics.CountCrawledDocument(string(category), "failed")
					return nil
				}
				switch outcome {
				case outcomeNew:
					catReport.New++
					report.Documents = append(report.Documents, record)
				case outcomeChanged:
					catReport.Changed++
					report.Documents = append(report.Documents, record)
				case outcomeUnchanged:
					catReport.Unchanged++
				}
				metrics.CountCrawledDocument(string(category), string(outcome))
				return nil
			})
		}

		mu.Lock()
		catReport.Discovered = stats.discovered
		catReport.Unchanged += stats.known
		mu.Unlock()

		if gctx.Err() != nil {
			break
		}
	}

	err := g.Wait()
	report.FinishedAt = c.now()
	sort.SliceStable(report.Documents, func(i, j int) bool {
		return report.Documents[i].Category < report.Documents[j].Category
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return report, err
	}
	if len(listingErrs) > 0 {
		return report, errors.Join(listingErrs...)
	}

	log.Info("crawl finished", "documents", len(report.Documents), "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}
