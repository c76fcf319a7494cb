// Package scraper walks a paginated job board and streams the postings it
// discovers. Listing pages are fetched one at a time; the detail pages found
// on each listing are fetched concurrently under an admission limit.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/talonjobs/talon/internal/limiter"
	"github.com/talonjobs/talon/internal/model"
)

// Scraper produces a stream of raw job records for a search query.
type Scraper struct {
	baseURL  string
	maxPages int
	lim      *limiter.Limiter
	fetcher  PageFetcher
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a scraper. maxConcurrent bounds simultaneous detail-page
// fetches; listing pages are always fetched sequentially.
func New(baseURL string, maxPages, maxConcurrent int, fetcher PageFetcher, logger *slog.Logger) *Scraper {
	return &Scraper{
		baseURL:  baseURL,
		maxPages: maxPages,
		lim:      limiter.New(maxConcurrent),
		fetcher:  fetcher,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Seed marks job IDs as already seen so the scraper skips their detail pages.
// Used to avoid re-fetching postings stored by a previous run.
func (s *Scraper) Seed(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
}

// Scrape walks listing pages 1..maxPages and returns a channel of postings.
// Records arrive in completion order, not discovery order. The channel is
// closed once every page has been attempted and all in-flight detail fetches
// have finished. A failed listing page or detail page is logged and skipped;
// it never aborts the run.
func (s *Scraper) Scrape(ctx context.Context, query string) <-chan model.Job {
	out := make(chan model.Job)

	go func() {
		defer close(out)
		var wg sync.WaitGroup

		s.logger.Info("starting scrape", "query", query, "max_pages", s.maxPages)

		for page := 1; page <= s.maxPages; page++ {
			if ctx.Err() != nil {
				break
			}
			if err := s.scrapePage(ctx, query, page, &wg, out); err != nil {
				s.logger.Error("listing page failed",
					"page", page,
					"error", err,
				)
				continue
			}
			s.logger.Debug("completed listing page", "page", page)
		}
		s.logger.Debug("reached page limit", "max_pages", s.maxPages)

		wg.Wait()
		s.logger.Info("scrape complete")
	}()

	return out
}

// scrapePage fetches one listing page and spawns a bounded fetch for each
// previously-unseen detail link on it.
func (s *Scraper) scrapePage(ctx context.Context, query string, page int, wg *sync.WaitGroup, out chan<- model.Job) error {
	pageURL := s.searchURL(query, page)

	body, err := s.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return err
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse listing page %d: %w", page, err)
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}

	links := extractListingLinks(doc, base)
	s.logger.Debug("found listing links", "page", page, "count", len(links))

	for _, link := range links {
		if !s.markSeen(link.jobID) {
			s.logger.Debug("skipping already seen job", "job_id", link.jobID)
			continue
		}

		wg.Add(1)
		go func(link listingLink) {
			defer wg.Done()

			var job model.Job
			err := s.lim.Do(ctx, func() error {
				detail, err := s.fetcher.FetchPage(ctx, link.url)
				if err != nil {
					return err
				}
				doc, err := html.Parse(strings.NewReader(detail))
				if err != nil {
					return err
				}
				job = extractDetailFields(doc, link.url, link.jobID)
				return nil
			})
			if err != nil {
				s.logger.Error("detail page failed", "job_id", link.jobID, "error", err)
				return
			}

			// Emit outside the admission slot so a slow consumer does not
			// hold up sibling fetches.
			select {
			case out <- job:
				s.logger.Debug("scraped job", "job_id", job.JobID, "title", job.Title)
			case <-ctx.Done():
			}
		}(link)
	}

	return nil
}

// markSeen records the ID and reports whether it was new. Check and insert
// are a single operation under the lock; concurrent detail workers for the
// same ID can never both proceed.
func (s *Scraper) markSeen(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[jobID]; ok {
		return false
	}
	s.seen[jobID] = struct{}{}
	return true
}

// SeenIDs returns a copy of the IDs encountered so far.
func (s *Scraper) SeenIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	return ids
}

// searchURL builds the listing URL for a query and page number.
func (s *Scraper) searchURL(query string, page int) string {
	q := strings.ReplaceAll(strings.TrimSpace(query), " ", "+")
	return fmt.Sprintf("%sjobsearch/powersearch.aspx?q=%s&rad_units=miles&pp=25&nosal=true&vw=b&setype=2&pg=%d&re=3",
		s.baseURL, q, page)
}
