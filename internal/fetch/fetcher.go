// Package fetch acquires pages through a three-tier ladder: direct HTTP,
// proxy pool, archive snapshot. It enforces per-host politeness, redirect
// hygiene, and response budgets, and reports failures as typed errors.
package fetch

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/semaphore"

	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/model"
)

// Result is a successfully fetched page.
type Result struct {
	StatusCode int
	FinalURL   string
	Body       string
	Header     http.Header
	Tier       string
	Rendered   bool
	PageHash   uint64
}

// Renderer is the optional external browser-rendering collaborator. It is
// consulted when a response body is empty or script-dominated.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Fetcher drives the fallback ladder.
type Fetcher struct {
	direct  *http.Client
	uas     *UAPool
	proxies *ProxyPool
	archive *ArchiveClient

	renderer  Renderer
	renderSem *semaphore.Weighted

	timeout       time.Duration
	maxRedirects  int
	maxRetries    int
	backoffBase   time.Duration
	backoffFactor float64
	backoffCap    time.Duration
	maxBodyBytes  int64
	allowedTypes  []string
	archiveOn     bool

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Fetcher from configuration. renderer may be nil.
func New(cfg *config.EnvConfig, renderer Renderer) (*Fetcher, error) {
	pool, err := NewProxyPool(cfg.ProxyPool, cfg.BackoffCap*4)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		uas:           NewUAPool(cfg.UserAgents),
		proxies:       pool,
		renderer:      renderer,
		timeout:       cfg.HTTPTimeout,
		maxRedirects:  cfg.MaxRedirects,
		maxRetries:    cfg.MaxRetries,
		backoffBase:   cfg.BackoffBase,
		backoffFactor: cfg.BackoffFactor,
		backoffCap:    cfg.BackoffCap,
		maxBodyBytes:  cfg.MaxBodyBytes,
		allowedTypes:  cfg.AllowedContentTypes,
		archiveOn:     cfg.ArchiveFallback,
		sleep:         sleepCtx,
	}
	f.direct = &http.Client{CheckRedirect: f.checkRedirect}
	f.archive = NewArchiveClient(f.direct, "")
	if renderer != nil {
		f.renderSem = semaphore.NewWeighted(cfg.RenderConcurrency)
	}
	return f, nil
}

// NextUserAgent hands out the next agent from the rotation pool; the
// orchestrator pins it into the lease's host policy.
func (f *Fetcher) NextUserAgent() string { return f.uas.Next() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	max := f.maxRedirects
	if max <= 0 {
		max = 5
	}
	if len(via) >= max {
		return ErrTooManyHops
	}
	prev := via[len(via)-1]
	if prev.URL.Scheme == "https" && req.URL.Scheme == "http" {
		return ErrSchemeDowngrade
	}
	target := req.URL.String()
	for _, v := range via {
		if v.URL.String() == target {
			return ErrRedirectCycle
		}
	}
	return nil
}

// Fetch runs the ladder for rawURL under the host policy. The returned
// error is one of the typed fetch errors; the ladder stops early on
// permanent failures (4xx other than 403/429, policy violations).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, policy *HostPolicy) (*Result, error) {
	if err := policy.Wait(ctx); err != nil {
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}

	res, err := f.do(ctx, f.direct, rawURL, policy.UserAgent)
	if err == nil {
		res.Tier = model.TierDirect
		return f.maybeRender(ctx, res)
	}
	f.penalizeIfThrottled(policy, err)
	if !retryable(err) {
		return nil, err
	}
	lastErr := err

	if f.proxies != nil {
		res, err = f.fetchViaProxies(ctx, rawURL, policy)
		if err == nil {
			res.Tier = model.TierProxy
			return f.maybeRender(ctx, res)
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	if f.archiveOn {
		res, err = f.fetchViaArchive(ctx, rawURL, policy.UserAgent)
		if err == nil {
			res.Tier = model.TierArchive
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) fetchViaProxies(ctx context.Context, rawURL string, policy *HostPolicy) (*Result, error) {
	var lastErr error = &ConnectionError{URL: rawURL, Err: errors.New("no healthy proxy")}
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := f.sleep(ctx, f.backoff(attempt)); err != nil {
			return nil, &ConnectionError{URL: rawURL, Err: err}
		}
		proxy := f.proxies.Next()
		if proxy == nil {
			return nil, lastErr
		}
		if err := policy.Wait(ctx); err != nil {
			return nil, &ConnectionError{URL: rawURL, Err: err}
		}
		client := &http.Client{Transport: proxy.Transport(), CheckRedirect: f.checkRedirect}
		res, err := f.do(ctx, client, rawURL, policy.UserAgent)
		if err == nil {
			proxy.MarkSuccess()
			return res, nil
		}
		f.proxies.MarkFailure(proxy)
		f.penalizeIfThrottled(policy, err)
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) fetchViaArchive(ctx context.Context, rawURL, userAgent string) (*Result, error) {
	snapshot, err := f.archive.SnapshotURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if snapshot == "" {
		return nil, &ConnectionError{URL: rawURL, Err: errors.New("no archive snapshot available")}
	}
	return f.do(ctx, f.direct, snapshot, userAgent)
}

// backoff returns base * factor^attempt capped at backoffCap.
func (f *Fetcher) backoff(attempt int) time.Duration {
	d := time.Duration(float64(f.backoffBase) * math.Pow(f.backoffFactor, float64(attempt)))
	if d > f.backoffCap {
		d = f.backoffCap
	}
	return d
}

func (f *Fetcher) penalizeIfThrottled(policy *HostPolicy, err error) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == 429 || statusErr.StatusCode == 503) {
		policy.Penalize()
	}
}

// do performs one HTTP attempt, enforcing the byte cap and content-type
// budget, and hashes the accepted body.
func (f *Fetcher) do(ctx context.Context, client *http.Client, rawURL, userAgent string) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedByPolicy) {
			return nil, unwrapPolicyErr(err)
		}
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	if !f.contentTypeAllowed(resp.Header.Get("Content-Type"), resp.Request.URL.Path) {
		return nil, ErrBadContentType
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	return &Result{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Body:       string(body),
		Header:     resp.Header,
		PageHash:   xxh3.Hash(body),
	}, nil
}

// unwrapPolicyErr digs the typed policy error out of the *url.Error the
// http client wraps CheckRedirect failures in.
func unwrapPolicyErr(err error) error {
	for _, sentinel := range []error{ErrTooManyHops, ErrSchemeDowngrade, ErrRedirectCycle} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return ErrBlockedByPolicy
}

func (f *Fetcher) contentTypeAllowed(ct, path string) bool {
	if ct == "" {
		return true
	}
	for _, allowed := range f.allowedTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	// Paths that clearly name an HTML document pass even with a sloppy
	// content type.
	lower := strings.ToLower(path)
	for _, ext := range []string{".html", ".htm", ".php", ".asp", ".aspx"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// maybeRender sends empty or script-dominated bodies through the renderer.
// A failed render keeps the raw body unless there was nothing to keep.
func (f *Fetcher) maybeRender(ctx context.Context, res *Result) (*Result, error) {
	if f.renderer == nil || !needsRender(res.Body) {
		return res, nil
	}
	if err := f.renderSem.Acquire(ctx, 1); err != nil {
		return res, nil
	}
	defer f.renderSem.Release(1)

	html, err := f.renderer.Render(ctx, res.FinalURL)
	if err != nil {
		if strings.TrimSpace(res.Body) == "" {
			return nil, &RenderError{URL: res.FinalURL, Err: err}
		}
		return res, nil
	}
	res.Body = html
	res.Rendered = true
	res.PageHash = xxh3.HashString(html)
	return res, nil
}

// needsRender flags bodies that are empty or consist mostly of script tags.
func needsRender(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return true
	}
	scripts := strings.Count(strings.ToLower(body), "<script")
	return scripts >= 5 && len(stripTags(body)) < 200
}

// stripTags is a rough visible-text estimate; exact extraction happens in
// the isolator.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
