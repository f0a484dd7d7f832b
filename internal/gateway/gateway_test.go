package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tabwatch/tabwatch/internal/config"
)

// gatewayStub records push requests and serves a scripted status per call.
type gatewayStub struct {
	mu       sync.Mutex
	statuses []int // consumed one per request; last repeats
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	g.requests = append(g.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		body:   string(body),
	})

	status := g.statuses[0]
	if len(g.statuses) > 1 {
		g.statuses = g.statuses[1:]
	}
	w.WriteHeader(status)
}

func (g *gatewayStub) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func newTestPusher(t *testing.T, srvURL string, maxAttempts int) *Pusher {
	t.Helper()
	p, err := New(config.GatewayConfig{
		URL:         srvURL,
		Job:         "data_observability",
		Timeout:     2 * time.Second,
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Keep test retries fast.
	p.boInitial = 5 * time.Millisecond
	p.boMax = 10 * time.Millisecond
	return p
}

func TestPush_Delivers(t *testing.T) {
	stub := &gatewayStub{statuses: []int{http.StatusOK}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	p := newTestPusher(t, srv.URL, 1)
	res := p.Push(context.Background(), "data_volume_rows 48\n")

	if !res.Delivered {
		t.Fatalf("Delivered = false, err = %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	req := stub.requests[0]
	if req.method != http.MethodPut {
		t.Errorf("method = %q, want PUT", req.method)
	}
	if req.path != "/metrics/job/data_observability" {
		t.Errorf("path = %q, want /metrics/job/data_observability", req.path)
	}
	if req.body != "data_volume_rows 48\n" {
		t.Errorf("body = %q", req.body)
	}
}

func TestPush_RetriesTransientThenSucceeds(t *testing.T) {
	// First two attempts hit a 5xx, the third succeeds.
	stub := &gatewayStub{statuses: []int{503, 502, 200}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	p := newTestPusher(t, srv.URL, 3)
	res := p.Push(context.Background(), "payload\n")

	if !res.Delivered {
		t.Fatalf("Delivered = false, err = %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil after success", res.Err)
	}
}

func TestPush_RejectionNotRetried(t *testing.T) {
	stub := &gatewayStub{statuses: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	p := newTestPusher(t, srv.URL, 3)
	res := p.Push(context.Background(), "payload\n")

	if res.Delivered {
		t.Fatal("Delivered = true for a 400 response")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no retry on rejection)", res.Attempts)
	}
	var rejected *RejectedError
	if !errors.As(res.Err, &rejected) {
		t.Fatalf("Err = %v, want *RejectedError", res.Err)
	}
	if rejected.Status != http.StatusBadRequest {
		t.Errorf("rejected.Status = %d, want 400", rejected.Status)
	}
	if stub.count() != 1 {
		t.Errorf("gateway saw %d requests, want 1", stub.count())
	}
}

func TestPush_ExhaustsRetries(t *testing.T) {
	stub := &gatewayStub{statuses: []int{500}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	p := newTestPusher(t, srv.URL, 2)
	res := p.Push(context.Background(), "payload\n")

	if res.Delivered {
		t.Fatal("Delivered = true after exhausted retries")
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	var transient *TransientError
	if !errors.As(res.Err, &transient) {
		t.Fatalf("Err = %v, want *TransientError", res.Err)
	}
	if stub.count() != 2 {
		t.Errorf("gateway saw %d requests, want 2", stub.count())
	}
}

func TestPush_ConnectionRefusedIsTransient(t *testing.T) {
	p := newTestPusher(t, "http://127.0.0.1:1", 2)
	res := p.Push(context.Background(), "payload\n")

	if res.Delivered {
		t.Fatal("Delivered = true against a closed port")
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (connection refused retried)", res.Attempts)
	}
	var transient *TransientError
	if !errors.As(res.Err, &transient) {
		t.Fatalf("Err = %v, want *TransientError", res.Err)
	}
}

func TestNew_JobLabelEscaped(t *testing.T) {
	p, err := New(config.GatewayConfig{
		URL:         "http://gw:9091/",
		Job:         "team a/batch",
		Timeout:     time.Second,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := "http://gw:9091/metrics/job/team%20a%2Fbatch"
	if p.pushURL != want {
		t.Errorf("pushURL = %q, want %q", p.pushURL, want)
	}
}

func TestPush_UnbuildableRequestRejectedWithCause(t *testing.T) {
	// A push URL the request constructor refuses. New never produces
	// one, so assemble the Pusher by hand.
	p := &Pusher{
		pushURL:   "http://gw:9091/metrics/job/bad\nlabel",
		cfg:       config.GatewayConfig{Timeout: time.Second, MaxAttempts: 3},
		client:    &http.Client{},
		boInitial: time.Millisecond,
		boMax:     time.Millisecond,
	}

	res := p.Push(context.Background(), "data_volume_rows 48\n")

	if res.Delivered {
		t.Fatal("Delivered = true, want false")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no retry after rejection)", res.Attempts)
	}
	var rejected *RejectedError
	if !errors.As(res.Err, &rejected) {
		t.Fatalf("Err = %v, want *RejectedError", res.Err)
	}
	if rejected.Err == nil {
		t.Error("RejectedError.Err = nil, want the underlying cause")
	}
	if msg := res.Err.Error(); strings.Contains(msg, "HTTP 0") {
		t.Errorf("Err = %q, must carry the cause instead of a zero status", msg)
	}
}

func TestNew_BadURLFatal(t *testing.T) {
	for _, bad := range []string{"", "gw:9091 oops", "/relative", "ftp://gw"} {
		if _, err := New(config.GatewayConfig{URL: bad, Job: "j", Timeout: time.Second, MaxAttempts: 1}); err == nil {
			t.Errorf("New(%q) expected error, got nil", bad)
		}
	}
}
