// Package orchestrator drives the crawl: it leases queue entries, runs the
// preflight/fetch/extract pipeline on each, and writes the outcome back to
// the store under the lease's transaction.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sony/gobreaker"

	"github.com/Firmograph/Firmograph/internal/assemble"
	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/discover"
	"github.com/Firmograph/Firmograph/internal/enrich"
	"github.com/Firmograph/Firmograph/internal/extract"
	"github.com/Firmograph/Firmograph/internal/fetch"
	"github.com/Firmograph/Firmograph/internal/isolate"
	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/netutil"
	"github.com/Firmograph/Firmograph/internal/preflight"
	"github.com/Firmograph/Firmograph/internal/scanloop"
	"github.com/Firmograph/Firmograph/internal/store"
	"github.com/Firmograph/Firmograph/internal/validate"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitConfig  = 2
	ExitStorage = 3
	ExitBreaker = 4
)

// errUnhealthy feeds network-level failures into the circuit breaker.
var errUnhealthy = errors.New("network failure")

// sentinelPollInterval is how often the stop-sentinel path is checked.
const sentinelPollInterval = 2 * time.Second

// Orchestrator owns the worker pool and the shared crawl collaborators.
type Orchestrator struct {
	cfg     *config.EnvConfig
	store   *store.Store
	checker *preflight.Checker
	fetcher *fetch.Fetcher
	packs   []config.CountryPack
	rdap    *enrich.Client
	rdapMu  sync.Mutex
	mx      func(domain string) bool

	runID string

	// hostMu holds one entry per registered domain currently being
	// crawled; a second lease on the same registered domain is released
	// back to the queue instead of waiting.
	hostMu *xsync.Map[string, struct{}]

	breaker  *gobreaker.CircuitBreaker
	trips    atomic.Int32
	exitCode atomic.Int32
	stop     context.CancelFunc
}

// New wires an Orchestrator from configuration. renderer may be nil; the
// fetcher then never renders.
func New(cfg *config.EnvConfig, st *store.Store, renderer fetch.Renderer) (*Orchestrator, error) {
	blacklist, err := config.LoadBlacklist(cfg.BlacklistFile, cfg.Blacklist)
	if err != nil {
		return nil, err
	}
	fetcher, err := fetch.New(cfg, renderer)
	if err != nil {
		return nil, err
	}
	checker, err := preflight.NewChecker(cfg, blacklist, nil, fetcher.NextUserAgent())
	if err != nil {
		return nil, err
	}
	var packs []config.CountryPack
	if cfg.CountryPatternSet != "" {
		packs, err = config.LoadCountryPacks(cfg.CountryPatternSet)
		if err != nil {
			return nil, err
		}
	}

	o := &Orchestrator{
		cfg:     cfg,
		store:   st,
		checker: checker,
		fetcher: fetcher,
		packs:   packs,
		runID:   uuid.NewString(),
		hostMu:  xsync.NewMap[string, struct{}](),
		mx:      validate.NewMXLookup(cfg.DNSServers, cfg.DNSTimeout),
	}
	if cfg.RDAPEnrich {
		o.rdap = enrich.NewClient(nil, "")
	}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "crawl",
		// Half-open probing doubles as the reduced-concurrency recovery
		// phase: at most half the workers carry requests until the
		// breaker closes again.
		MaxRequests: uint32(max(1, cfg.Workers/2)),
		Interval:    time.Minute,
		Timeout:     cfg.BreakerPause,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if int(counts.Requests) < cfg.BreakerMinEvents {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: o.onBreakerChange,
	})
	return o, nil
}

// RunID identifies this process run on results and export filenames.
func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) onBreakerChange(name string, from, to gobreaker.State) {
	log.Printf("Error budget breaker %s: %s -> %s", name, from, to)
	if to != gobreaker.StateOpen {
		return
	}
	trips := o.trips.Add(1)
	if int(trips) > o.cfg.RecoveryBudget {
		log.Printf("Breaker tripped %d times, recovery budget %d exhausted; halting", trips, o.cfg.RecoveryBudget)
		o.halt(ExitBreaker)
		return
	}
	log.Printf("Crawling paused for %s (trip %d of %d)", o.cfg.BreakerPause, trips, o.cfg.RecoveryBudget)
}

// halt records the exit code and cancels all workers. The first cause wins.
func (o *Orchestrator) halt(code int) {
	if o.exitCode.CompareAndSwap(0, int32(code)) && o.stop != nil {
		o.stop()
	}
}

// Run executes the crawl until the queue drains, a stop is requested, or an
// infrastructure failure halts it. The returned code follows the process
// exit-code contract.
func (o *Orchestrator) Run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.stop = cancel

	if o.cfg.StopSentinelPath != "" {
		go scanloop.Run(ctx.Done(), sentinelPollInterval, sentinelPollInterval/2, func() {
			if _, err := os.Stat(o.cfg.StopSentinelPath); err == nil {
				log.Printf("Stop sentinel %s present, stopping", o.cfg.StopSentinelPath)
				cancel()
			}
		})
	}
	go scanloop.Run(ctx.Done(), 30*time.Second, 5*time.Second, o.logStats)

	log.Printf("Run %s starting with %d workers", o.runID, o.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx)
		}()
	}
	wg.Wait()

	code := int(o.exitCode.Load())
	log.Printf("Run %s finished, exit code %d", o.runID, code)
	return code
}

func (o *Orchestrator) logStats() {
	stats, err := o.store.SnapshotStats()
	if err != nil {
		return
	}
	log.Printf("Queue: pending=%d processing=%d completed=%d failed_extraction=%d",
		stats[model.StatusPending], stats[model.StatusProcessing],
		stats[model.StatusCompleted], stats[model.StatusFailedExtraction])
}

func (o *Orchestrator) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil || o.exitCode.Load() != 0 {
			return
		}
		if o.breaker.State() == gobreaker.StateOpen {
			o.idle(ctx, time.Second)
			continue
		}

		entries, err := o.store.Lease(1, o.cfg.LeaseTTL)
		if err != nil {
			if errors.Is(err, store.ErrStorageUnavailable) {
				log.Printf("Storage unavailable, draining: %v", err)
				o.halt(ExitStorage)
				return
			}
			log.Printf("Lease failed: %v", err)
			o.idle(ctx, o.cfg.EmptyQueueBackoff)
			continue
		}
		if len(entries) == 0 {
			if o.queueDrained() {
				return
			}
			o.idle(ctx, o.cfg.EmptyQueueBackoff)
			continue
		}
		o.handle(ctx, entries[0])
	}
}

// queueDrained reports whether no work remains now or later: no PENDING
// entries and no leases held elsewhere that could be released back.
func (o *Orchestrator) queueDrained() bool {
	stats, err := o.store.SnapshotStats()
	if err != nil {
		return false
	}
	return stats[model.StatusPending] == 0 && stats[model.StatusProcessing] == 0
}

// idle sleeps for roughly d, jittered, or until cancellation.
func (o *Orchestrator) idle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	d += rand.N(d / 2)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handle runs one leased entry through the pipeline and records the
// outcome. Stop-signal cancellation releases the lease instead of writing a
// terminal status.
func (o *Orchestrator) handle(ctx context.Context, entry model.QueueEntry) {
	key := netutil.RegisteredDomain(entry.Domain)
	if _, busy := o.hostMu.LoadOrStore(key, struct{}{}); busy {
		// Another worker already crawls this registered domain; put the
		// entry back rather than queue behind the host mutex.
		if err := o.store.Release(entry.Domain); err != nil {
			log.Printf("Release %s: %v", entry.Domain, err)
		}
		return
	}
	defer o.hostMu.Delete(key)

	ectx, cancel := context.WithTimeout(ctx, o.cfg.PerEntryDeadline)
	defer cancel()

	var (
		status model.Status
		res    *model.CrawlResult
	)
	_, brkErr := o.breaker.Execute(func() (any, error) {
		status, res = o.process(ectx, entry.Domain)
		if status == model.StatusFailedConnection || status == model.StatusFailedHTTP5xx {
			return nil, errUnhealthy
		}
		return nil, nil
	})
	if status == "" {
		// The breaker rejected the attempt before the pipeline ran.
		if errors.Is(brkErr, gobreaker.ErrOpenState) || errors.Is(brkErr, gobreaker.ErrTooManyRequests) {
			if err := o.store.Release(entry.Domain); err != nil {
				log.Printf("Release %s: %v", entry.Domain, err)
			}
		}
		return
	}

	// A stop signal mid-entry relinquishes the lease; attempts stay.
	if ctx.Err() != nil && ectx.Err() != context.DeadlineExceeded {
		if err := o.store.Release(entry.Domain); err != nil {
			log.Printf("Release %s: %v", entry.Domain, err)
		}
		return
	}

	var err error
	if res != nil {
		err = o.store.Complete(entry.Domain, res, status)
	} else {
		err = o.store.Fail(entry.Domain, status)
	}
	if err != nil {
		if errors.Is(err, store.ErrStorageUnavailable) {
			log.Printf("Storage unavailable, draining: %v", err)
			o.halt(ExitStorage)
			return
		}
		log.Printf("Recording %s for %s: %v", status, entry.Domain, err)
		return
	}
	log.Printf("%s -> %s (attempt %d)", entry.Domain, status, entry.Attempts)
}

// process runs preflight, fetch, discovery and extraction for one domain
// and returns the terminal status plus the result row, if any.
func (o *Orchestrator) process(ctx context.Context, domain string) (model.Status, *model.CrawlResult) {
	dec := o.checker.Check(ctx, domain)
	if !dec.Allowed {
		return dec.Status, nil
	}

	policy := fetch.NewHostPolicy(dec.Host, o.cfg.MinDelay, o.cfg.Jitter, dec.Rules, o.fetcher.NextUserAgent())
	home, err := o.fetcher.Fetch(ctx, "https://"+dec.Host+"/", policy)
	if err != nil {
		return failureStatus(err), nil
	}
	homeText := isolate.Text(home.Body, home.FinalURL)
	if preflight.DetectParked(homeText) {
		return model.StatusParked, nil
	}

	urls := discover.LegalURLs(home.Body, home.FinalURL, o.cfg.MaxLegalPages)
	if len(urls) == 0 {
		urls = discover.FallbackURLs(home.FinalURL, o.cfg.MaxLegalPages)
	}

	var best *model.CrawlResult
	var lastFetchErr error
	for _, u := range urls {
		if ctx.Err() != nil {
			return abortStatus(lastFetchErr, ctx.Err()), nil
		}
		if parsed, err := url.Parse(u); err != nil || !policy.PathAllowed(parsed.Path) {
			continue
		}
		page, err := o.fetcher.Fetch(ctx, u, policy)
		if err != nil {
			lastFetchErr = err
			continue
		}
		res := o.extractFrom(domain, dec, page, true)
		if res == nil {
			continue
		}
		if res.LegalName.IsSet() {
			best = res
			break
		}
		if best == nil {
			best = res
		}
	}

	// The home page itself may carry the annotation (single-page sites).
	if best == nil || !best.LegalName.IsSet() {
		if res := o.extractFrom(domain, dec, home, false); res != nil {
			if best == nil || res.LegalName.IsSet() {
				best = res
			}
		}
	}

	if o.rdap != nil && (best == nil || !best.LegalName.IsSet() || !best.Country.IsSet()) {
		best = o.enrichFromRegistry(ctx, domain, dec, best)
	}

	if best == nil || !best.LegalName.IsSet() {
		return model.StatusFailedExtraction, nil
	}
	return model.StatusCompleted, best
}

// extractFrom runs all passes over one fetched page, merges and validates.
func (o *Orchestrator) extractFrom(domain string, dec preflight.Decision, page *fetch.Result, legalPage bool) *model.CrawlResult {
	text := isolate.Text(page.Body, page.FinalURL)
	ectx := extract.Context{
		Host:    dec.Host,
		Country: extract.DetectCountry(dec.Host, text),
		Packs:   o.packs,
	}
	var exts []*extract.Extraction
	if e := extract.StructuredPass(page.Body, ectx); e != nil {
		exts = append(exts, e)
	}
	if e := extract.CountryPass(text, ectx); e != nil {
		exts = append(exts, e)
	}
	if e := extract.GenericPass(text, ectx); e != nil {
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		return nil
	}

	res := assemble.Merge(assemble.Input{
		Domain:         domain,
		RunID:          o.runID,
		LegalSourceURL: page.FinalURL,
		CrawledAt:      time.Now(),
		RobotsAllowed:  dec.RobotsReason == "",
		RobotsReason:   dec.RobotsReason,
		FetchTier:      page.Tier,
		PageHash:       page.PageHash,
		Extractions:    exts,
	})
	rep := validate.Apply(res, validate.Options{
		Host:      dec.Host,
		LegalPage: legalPage,
		MXCheck:   o.cfg.MXCheck,
		LookupMX:  o.mx,
	})
	for field, reason := range rep.Dropped {
		log.Printf("%s: dropped %s (%s)", domain, field, reason)
	}
	res.Confidence = assemble.OverallConfidence(res)
	return res
}

// enrichFromRegistry fills missing identity fields from RDAP. It never
// creates a result with nothing but registry data unless the registry knows
// an organisation name.
func (o *Orchestrator) enrichFromRegistry(ctx context.Context, domain string, dec preflight.Decision, best *model.CrawlResult) *model.CrawlResult {
	o.rdapMu.Lock()
	reg, err := o.rdap.Lookup(ctx, netutil.RegisteredDomain(domain))
	o.rdapMu.Unlock()
	if err != nil {
		log.Printf("%s: rdap lookup: %v", domain, err)
		return best
	}
	if best == nil {
		best = &model.CrawlResult{
			Domain:        domain,
			RunID:         o.runID,
			CrawledAtNs:   time.Now().UnixNano(),
			RobotsAllowed: dec.RobotsReason == "",
			RobotsReason:  dec.RobotsReason,
		}
	}
	if enrich.Apply(best, reg) {
		best.Confidence = assemble.OverallConfidence(best)
	}
	return best
}

// abortStatus classifies a legal-page sweep cut short by the entry
// deadline: a concrete fetch failure seen on an earlier candidate is more
// specific than the deadline itself.
func abortStatus(lastFetch, ctxErr error) model.Status {
	if lastFetch != nil {
		return failureStatus(lastFetch)
	}
	return failureStatus(ctxErr)
}

// failureStatus maps a fetch error onto the most specific terminal status.
// Deadline expiry and plain connection problems both land on
// FAILED_CONNECTION.
func failureStatus(err error) model.Status {
	var hs *fetch.HTTPStatusError
	if errors.As(err, &hs) {
		if hs.StatusCode >= 500 {
			return model.StatusFailedHTTP5xx
		}
		return model.StatusFailedHTTP4xx
	}
	return model.StatusFailedConnection
}
