package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tabwatch/tabwatch/internal/config"
)

// Result reports the outcome of one push, including failed ones.
// It is created by Push, consumed by the run coordinator, and discarded.
type Result struct {
	Delivered bool
	Attempts  int
	Status    int   // last HTTP status seen; 0 if no response was received
	Err       error // last error; nil when Delivered
}

// RejectedError is a non-retryable push failure: a 4xx gateway response,
// or a request that could not be built at all. Either way the payload or
// request itself is wrong and repeating it cannot help.
type RejectedError struct {
	Status int   // 0 when no request was sent
	Err    error // underlying error when the request could not be built
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway rejected push: %v", e.Err)
	}
	return fmt.Sprintf("gateway rejected push: HTTP %d", e.Status)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// TransientError is a retryable delivery failure: connection trouble,
// timeout, or a 5xx response.
type TransientError struct {
	Status int   // 0 when no response was received
	Err    error // underlying transport error, if any
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient push failure: %v", e.Err)
	}
	return fmt.Sprintf("transient push failure: HTTP %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Pusher delivers exposition payloads to a push gateway with a bounded
// number of attempts. Safe to reuse across runs.
type Pusher struct {
	pushURL string
	cfg     config.GatewayConfig
	client  *http.Client

	// backoff bounds, fields so tests can shrink the waits
	boInitial time.Duration
	boMax     time.Duration
}

// New builds a Pusher from the gateway config. An unparsable base URL is
// a startup-fatal misconfiguration and returns an error here; no other
// gateway condition is fatal.
func New(cfg config.GatewayConfig) (*Pusher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("gateway: %q is not an absolute http(s) URL", cfg.URL)
	}

	return &Pusher{
		pushURL:   strings.TrimRight(cfg.URL, "/") + "/metrics/job/" + url.PathEscape(cfg.Job),
		cfg:       cfg,
		client:    &http.Client{},
		boInitial: backoffInitial,
		boMax:     backoffMax,
	}, nil
}

// Push PUTs payload to <base>/metrics/job/<job>. Transient failures are
// retried up to cfg.MaxAttempts with backoff; a 4xx rejection stops
// immediately. Push never panics or returns an error — the outcome,
// including the last error, lives in the Result.
func (p *Pusher) Push(ctx context.Context, payload string) Result {
	bo := newBackoff(p.boInitial, p.boMax)
	var res Result

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		status, err := p.attempt(ctx, payload)
		res.Status = status
		if err == nil {
			res.Delivered = true
			res.Err = nil
			slog.Debug("gateway: push delivered", "attempts", attempt, "status", status)
			return res
		}
		res.Err = err

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			slog.Warn("gateway: push rejected, not retrying",
				"status", rejected.Status, "attempt", attempt)
			return res
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		wait := bo.next()
		slog.Warn("gateway: transient push failure, will retry",
			"attempt", attempt, "retry_in", wait, "err", err)
		select {
		case <-ctx.Done():
			res.Err = fmt.Errorf("push cancelled: %w", ctx.Err())
			return res
		case <-time.After(wait):
		}
	}

	slog.Error("gateway: push failed after all attempts",
		"attempts", res.Attempts, "err", res.Err)
	return res
}

// attempt performs a single delivery bounded by the configured timeout.
func (p *Pusher) attempt(ctx context.Context, payload string) (int, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPut, p.pushURL, strings.NewReader(payload))
	if err != nil {
		return 0, &RejectedError{Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &TransientError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500:
		return resp.StatusCode, &TransientError{Status: resp.StatusCode}
	default:
		return resp.StatusCode, &RejectedError{Status: resp.StatusCode}
	}
}
