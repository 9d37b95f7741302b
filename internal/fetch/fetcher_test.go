package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/model"
)

func testConfig() *config.EnvConfig {
	return &config.EnvConfig{
		HTTPTimeout:         5 * time.Second,
		MaxRedirects:        5,
		MaxRetries:          2,
		BackoffBase:         time.Millisecond,
		BackoffFactor:       2,
		BackoffCap:          4 * time.Millisecond,
		MaxBodyBytes:        1 << 20,
		AllowedContentTypes: []string{"text/html", "application/xhtml+xml"},
		RenderConcurrency:   1,
	}
}

func testFetcher(t *testing.T, cfg *config.EnvConfig) *Fetcher {
	t.Helper()
	f, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func testPolicy(host string) *HostPolicy {
	return NewHostPolicy(host, time.Millisecond, 0, nil, "test-agent")
}

func TestFetchDirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body>Impressum</body></html>")
	}))
	defer srv.Close()

	f := testFetcher(t, testConfig())
	res, err := f.Fetch(context.Background(), srv.URL, testPolicy("x"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Tier != model.TierDirect {
		t.Errorf("Tier = %q, want direct", res.Tier)
	}
	if res.PageHash == 0 {
		t.Error("PageHash not set")
	}
}

func TestFetch404IsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := testFetcher(t, testConfig())
	_, err := f.Fetch(context.Background(), srv.URL, testPolicy("x"))
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 404 {
		t.Fatalf("err = %v, want 404 HTTPStatusError", err)
	}
	if statusErr.Retryable() {
		t.Error("404 must not be retryable")
	}
}

// proxyHandler is a minimal forward proxy that tags requests it relays.
func proxyHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out, err := http.NewRequest(r.Method, r.URL.String(), nil)
		if err != nil {
			t.Errorf("proxy request: %v", err)
			return
		}
		out.Header = r.Header.Clone()
		out.Header.Set("X-Via-Proxy", "1")
		resp, err := http.DefaultTransport.RoundTrip(out)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	})
}

func TestFetchProxyFallbackOn403(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Via-Proxy") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>Impressum</html>")
	}))
	defer target.Close()
	proxy := httptest.NewServer(proxyHandler(t))
	defer proxy.Close()

	cfg := testConfig()
	cfg.ProxyPool = []string{proxy.URL}
	f := testFetcher(t, cfg)

	res, err := f.Fetch(context.Background(), target.URL, testPolicy("x"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Tier != model.TierProxy {
		t.Errorf("Tier = %q, want proxy", res.Tier)
	}
}

func TestFetchArchiveFallback(t *testing.T) {
	snapshot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>archived Impressum</html>")
	}))
	defer snapshot.Close()
	availability := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"archived_snapshots":{"closest":{"available":true,"url":"`+snapshot.URL+`"}}}`)
	}))
	defer availability.Close()

	cfg := testConfig()
	cfg.ArchiveFallback = true
	f := testFetcher(t, cfg)
	f.archive = NewArchiveClient(http.DefaultClient, availability.URL)

	// 127.0.0.1:1 refuses connections, so direct fails with ConnectionError.
	res, err := f.Fetch(context.Background(), "http://127.0.0.1:1/", testPolicy("x"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Tier != model.TierArchive {
		t.Errorf("Tier = %q, want archive", res.Tier)
	}
	if res.Body != "<html>archived Impressum</html>" {
		t.Errorf("Body = %q", res.Body)
	}
}

func TestBackoffCapped(t *testing.T) {
	f := testFetcher(t, testConfig())
	if got := f.backoff(0); got != time.Millisecond {
		t.Errorf("backoff(0) = %v", got)
	}
	if got := f.backoff(1); got != 2*time.Millisecond {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := f.backoff(10); got != 4*time.Millisecond {
		t.Errorf("backoff(10) = %v, want cap", got)
	}
}

func TestCheckRedirectDowngrade(t *testing.T) {
	f := testFetcher(t, testConfig())
	from, _ := url.Parse("https://example.de/a")
	to, _ := url.Parse("http://example.de/b")
	via := []*http.Request{{URL: from}}
	err := f.checkRedirect(&http.Request{URL: to}, via)
	if !errors.Is(err, ErrSchemeDowngrade) {
		t.Errorf("err = %v, want downgrade refusal", err)
	}
}

func TestCheckRedirectCycle(t *testing.T) {
	f := testFetcher(t, testConfig())
	a, _ := url.Parse("http://example.de/a")
	b, _ := url.Parse("http://example.de/b")
	via := []*http.Request{{URL: a}, {URL: b}}
	err := f.checkRedirect(&http.Request{URL: a}, via)
	if !errors.Is(err, ErrRedirectCycle) {
		t.Errorf("err = %v, want cycle refusal", err)
	}
}

func TestHostPolicyPenalize(t *testing.T) {
	p := NewHostPolicy("example.de", time.Second, 0, nil, "ua")
	p.Penalize()
	if got := p.MinDelay(); got != 2*time.Second {
		t.Errorf("MinDelay = %v, want doubled", got)
	}
	for i := 0; i < 20; i++ {
		p.Penalize()
	}
	if got := p.MinDelay(); got != maxMinDelay {
		t.Errorf("MinDelay = %v, want cap %v", got, maxMinDelay)
	}
}

func TestUAPoolRotates(t *testing.T) {
	p := NewUAPool([]string{"a", "b"})
	if p.Next() != "a" || p.Next() != "b" || p.Next() != "a" {
		t.Error("pool should rotate round-robin")
	}
}

func TestNeedsRender(t *testing.T) {
	if !needsRender("") {
		t.Error("empty body needs render")
	}
	scripts := ""
	for i := 0; i < 6; i++ {
		scripts += "<script>var x=1;</script>"
	}
	if !needsRender("<html>" + scripts + "</html>") {
		t.Error("script-dominated body needs render")
	}
	if needsRender("<html><body>" + string(make([]byte, 0)) + "Impressum: Beispiel GmbH, Musterweg 7, 80333 München. Vertreten durch Max Mustermann. Registergericht München HRB 12345. Umsatzsteuer-ID DE123456789. Telefon +49 89 123456. E-Mail info@beispiel.de. Alle Rechte vorbehalten.</body></html>") {
		t.Error("text page must not need render")
	}
}

func TestProxyPoolQuarantine(t *testing.T) {
	pool, err := NewProxyPool([]string{"http://p1:8080", "http://p2:8080"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	first := pool.Next()
	for i := 0; i < quarantineAfter; i++ {
		pool.MarkFailure(first)
	}
	for i := 0; i < 4; i++ {
		if p := pool.Next(); p == first {
			t.Fatal("quarantined proxy handed out")
		}
	}
}
