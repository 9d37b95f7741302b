package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/fetch"
	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/store"
)

func testConfig() *config.EnvConfig {
	return &config.EnvConfig{
		Workers:           2,
		LeaseTTL:          time.Minute,
		PerEntryDeadline:  time.Minute,
		MinDelay:          time.Millisecond,
		MaxRetries:        0,
		BackoffBase:       time.Millisecond,
		BackoffFactor:     2,
		BackoffCap:        10 * time.Millisecond,
		HTTPTimeout:       time.Second,
		MaxRedirects:      5,
		MaxBodyBytes:      1 << 20,
		RenderConcurrency: 1,
		RespectRobots:     config.RobotsRespect,
		RobotsTTL:         time.Minute,
		DNSTimeout:        time.Second,
		DNSServers:        []string{"127.0.0.1:53"},
		MaxLegalPages:     3,
		FailureThreshold:  0.5,
		BreakerMinEvents:  5,
		BreakerPause:      time.Minute,
		RecoveryBudget:    2,
		EmptyQueueBackoff: 10 * time.Millisecond,
	}
}

func testOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	o, err := New(testConfig(), st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, st
}

func TestFailureStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want model.Status
	}{
		{&fetch.HTTPStatusError{StatusCode: 404, URL: "https://x.de/"}, model.StatusFailedHTTP4xx},
		{&fetch.HTTPStatusError{StatusCode: 503, URL: "https://x.de/"}, model.StatusFailedHTTP5xx},
		{&fetch.ConnectionError{URL: "https://x.de/", Err: errors.New("refused")}, model.StatusFailedConnection},
		{context.DeadlineExceeded, model.StatusFailedConnection},
	}
	for _, c := range cases {
		if got := failureStatus(c.err); got != c.want {
			t.Errorf("failureStatus(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestAbortStatusPrefersObservedFailure(t *testing.T) {
	cases := []struct {
		lastFetch error
		want      model.Status
	}{
		{&fetch.HTTPStatusError{StatusCode: 503, URL: "https://x.de/impressum"}, model.StatusFailedHTTP5xx},
		{&fetch.HTTPStatusError{StatusCode: 404, URL: "https://x.de/impressum"}, model.StatusFailedHTTP4xx},
		{nil, model.StatusFailedConnection},
	}
	for _, c := range cases {
		if got := abortStatus(c.lastFetch, context.DeadlineExceeded); got != c.want {
			t.Errorf("abortStatus(%v) = %s, want %s", c.lastFetch, got, c.want)
		}
	}
}

func TestHandleReleasesWhenHostBusy(t *testing.T) {
	o, st := testOrchestrator(t)

	if err := st.Enqueue("beispiel.de", "test"); err != nil {
		t.Fatal(err)
	}
	entries, err := st.Lease(1, time.Minute)
	if err != nil || len(entries) != 1 {
		t.Fatalf("lease: %v %v", entries, err)
	}

	// Another worker already crawls this registered domain.
	o.hostMu.Store("beispiel.de", struct{}{})
	o.handle(context.Background(), entries[0])

	entry, err := st.Entry("beispiel.de")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != model.StatusPending {
		t.Errorf("status = %s, want PENDING after deferral", entry.Status)
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, deferral must not burn attempts", entry.Attempts)
	}
}

func TestBreakerRecoveryBudget(t *testing.T) {
	o, _ := testOrchestrator(t)

	o.onBreakerChange("crawl", gobreaker.StateClosed, gobreaker.StateOpen)
	o.onBreakerChange("crawl", gobreaker.StateHalfOpen, gobreaker.StateOpen)
	if code := o.exitCode.Load(); code != 0 {
		t.Fatalf("exit code = %d, two trips are within the budget", code)
	}

	o.onBreakerChange("crawl", gobreaker.StateHalfOpen, gobreaker.StateOpen)
	if code := o.exitCode.Load(); code != ExitBreaker {
		t.Errorf("exit code = %d, want %d after exceeding the budget", code, ExitBreaker)
	}
}

func TestQueueDrained(t *testing.T) {
	o, st := testOrchestrator(t)

	if !o.queueDrained() {
		t.Error("empty queue must count as drained")
	}
	if err := st.Enqueue("beispiel.de", "test"); err != nil {
		t.Fatal(err)
	}
	if o.queueDrained() {
		t.Error("pending entries mean the queue is not drained")
	}
}

func TestRunExitsWhenQueueEmpty(t *testing.T) {
	o, _ := testOrchestrator(t)

	done := make(chan int, 1)
	go func() { done <- o.Run(context.Background()) }()
	select {
	case code := <-done:
		if code != ExitOK {
			t.Errorf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on an empty queue")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	o, st := testOrchestrator(t)
	// A pending entry for an unresolvable domain keeps workers busy.
	if err := st.Enqueue("nxdomain.invalid", "test"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	a, _ := testOrchestrator(t)
	b, _ := testOrchestrator(t)
	if a.RunID() == b.RunID() || a.RunID() == "" {
		t.Errorf("run ids %q and %q", a.RunID(), b.RunID())
	}
}
