package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/retry"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
)

const maxListingBytes = 8 << 20

type discoverStats struct {
	discovered int
	known      int
}

// Discover lazily yields the candidates of one category. The sequence is
// finite and single use. A listing failure yields a *errorModel.ListingError
// and ends the sequence; a tracker failure yields its StorageError.
func (c *Crawler) Discover(ctx context.Context, category documentModel.Category) iter.Seq2[Candidate, error] {
	return c.discover(ctx, category, &discoverStats{})
}

func (c *Crawler) discover(ctx context.Context, category documentModel.Category, stats *discoverStats) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		log := c.logger.ForContext(ctx).With("category", category)

		path, ok := c.categories[category]
		if !ok {
			yield(Candidate{}, &errorModel.ListingError{Category: string(category), Err: fmt.Errorf("category not configured")})
			return
		}

		seen := map[string]bool{}
		emit := func(l link) (bool, error) {
			canonical, err := tracker.Canonicalize(l.URL, c.settings.IgnoredParams...)
			if err != nil || seen[canonical] {
				return true, nil
			}
			seen[canonical] = true
			stats.discovered++

			id := tracker.DocumentID(canonical)
			prior, found, err := c.tracker.Get(ctx, id)
			if err != nil {
				return false, errorModel.Storage("discover", err)
			}
			cand := Candidate{Category: category, URL: canonical, ID: id, Title: l.Title}
			cand.Format, _ = formatFromPath(urlPath(canonical))
			if found {
				if !c.needsRevalidation(prior) {
					stats.known++
					return true, nil
				}
				cand.Prior = &prior
			}
			return yield(cand, nil), nil
		}

		pageURL := strings.TrimRight(c.settings.BaseURL, "/") + path
		for pageNum := 1; pageNum <= c.settings.MaxPages; pageNum++ {
			log.Info("crawling listing", "page", pageNum, "url", pageURL)
			listing, err := c.fetchListing(ctx, pageURL)
			if err != nil {
				yield(Candidate{}, &errorModel.ListingError{Category: string(category), URL: pageURL, Err: err})
				return
			}

			for _, l := range listing.Documents {
				more, err := emit(l)
				if err != nil {
					yield(Candidate{}, err)
					return
				}
				if !more {
					return
				}
			}

			for _, detail := range listing.Details {
				inner, err := c.fetchListing(ctx, detail.URL)
				if err != nil {
					if ctx.Err() != nil {
						yield(Candidate{}, &errorModel.ListingError{Category: string(category), URL: detail.URL, Err: ctx.Err()})
						return
					}
					log.Warn("skipping detail page", "url", detail.URL, "error", err)
					continue
				}
				for _, l := range inner.Documents {
					if l.Title == "" {
						l.Title = detail.Title
					}
					more, err := emit(l)
					if err != nil {
						yield(Candidate{}, err)
						return
					}
					if !more {
						return
					}
				}
			}

			if listing.Next == "" || listing.Next == pageURL {
				log.Debug("no more listing pages", "pages", pageNum)
				return
			}
			pageURL = listing.Next
		}
	}
}

func (c *Crawler) needsRevalidation(prior documentModel.DocumentRecord) bool {
	if c.settings.RevalidateAfter <= 0 {
		return false
	}
	return c.now().Sub(prior.LastVerified) >= c.settings.RevalidateAfter
}

func (c *Crawler) fetchListing(ctx context.Context, pageURL string) (listingPage, error) {
	var body []byte
	_, err := retry.Do(ctx, c.policy, errorModel.IsRetryable, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		c.decorate(req)
		resp, err := c.client.Do(req)
		if err != nil {
			return transportError(ctx, err)
		}
		defer resp.Body.Close()
		if err := statusError(resp); err != nil {
			return err
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
		if err != nil {
			return transportError(ctx, err)
		}
		return nil
	})
	if err != nil {
		return listingPage{}, err
	}
	return parseListing(bytes.NewReader(body), pageURL)
}
