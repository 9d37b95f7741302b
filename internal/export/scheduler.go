package export

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Firmograph/Firmograph/internal/model"
)

// Source yields the rows to export; the store satisfies it.
type Source interface {
	Results() ([]model.CrawlResult, error)
}

// Scheduler runs exports on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers an export job under the given standard cron spec.
// The spec must already be validated by the config layer; an invalid spec
// is returned as an error anyway.
func NewScheduler(spec, dir, runID string, src Source, opts Options) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		rows, err := src.Results()
		if err != nil {
			log.Printf("Scheduled export: reading results: %v", err)
			return
		}
		paths, err := Run(dir, runID, rows, opts, time.Now())
		if err != nil {
			log.Printf("Scheduled export failed: %v", err)
			return
		}
		log.Printf("Scheduled export wrote %d rows to %v", len(rows), paths)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
