// Package pipeline wires the scrape, enrich, and sink stages into one
// streaming run and reports an end-of-run summary.
package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/talonjobs/talon/internal/enrich"
	"github.com/talonjobs/talon/internal/model"
	"github.com/talonjobs/talon/internal/scraper"
	"github.com/talonjobs/talon/internal/sink"
)

// Summary aggregates the counters of one run.
type Summary struct {
	// Scraped is the number of raw postings the scraper emitted.
	Scraped int
	// Filtered is the number dropped by enrichment: not software-related,
	// undecodable or invalid judgements, or exhausted retries.
	Filtered int
	// Stored, Duplicates, and Failed are the sink's outcome tallies.
	Stored     int
	Duplicates int
	Failed     int
}

// idLister is implemented by stores that can report which job IDs they
// already hold, letting a run skip detail pages ingested previously.
type idLister interface {
	JobIDs(ctx context.Context) ([]string, error)
}

// Pipeline runs a full ingestion pass.
type Pipeline struct {
	scraper *scraper.Scraper
	stage   *enrich.Stage
	store   sink.Store
	logger  *slog.Logger
}

// New assembles a pipeline from its three stages.
func New(s *scraper.Scraper, stage *enrich.Stage, store sink.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{scraper: s, stage: stage, store: store, logger: logger}
}

// Run executes one scrape-enrich-store pass for the query and blocks until
// every stage has drained. Individual posting failures are absorbed by the
// stages; the returned error is non-nil only when the run itself was cut
// short, e.g. by context cancellation.
func (p *Pipeline) Run(ctx context.Context, query string) (Summary, error) {
	if lister, ok := p.store.(idLister); ok {
		ids, err := lister.JobIDs(ctx)
		if err != nil {
			p.logger.Warn("could not load stored job ids, re-scraping everything", "error", err)
		} else if len(ids) > 0 {
			p.scraper.Seed(ids)
			p.logger.Info("seeded scraper with stored job ids", "count", len(ids))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	raw := p.scraper.Scrape(gctx, query)

	// Count raw postings as they pass from the scraper to enrichment.
	counted := make(chan model.Job)
	var scraped int
	g.Go(func() error {
		defer close(counted)
		for job := range raw {
			scraped++
			select {
			case counted <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	enriched := p.stage.Run(gctx, counted)

	var counts sink.Counts
	g.Go(func() error {
		counts = sink.Consume(gctx, enriched, p.store, p.logger)
		return nil
	})

	err := g.Wait()

	summary := Summary{
		Scraped:    scraped,
		Stored:     counts.Stored,
		Duplicates: counts.Duplicates,
		Failed:     counts.Failed,
	}
	if dropped := scraped - (counts.Stored + counts.Duplicates + counts.Failed); dropped > 0 {
		summary.Filtered = dropped
	}

	p.logger.Info("run complete",
		"scraped", summary.Scraped,
		"filtered", summary.Filtered,
		"stored", summary.Stored,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return summary, err
}
