package rate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitError is returned when the provider keeps answering 429.
type RateLimitError struct {
	Provider   string
	Attempts   int
	RetryAfter time.Duration
	URL        string
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %d consecutive 429 responses for %s (last retry-after %s)",
		e.Provider, e.Attempts, e.URL, e.RetryAfter)
}

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WrapHTTP wraps an http.Client so that 429 responses are retried per policy.
// The client-wide Timeout is cleared; policy.RequestTimeout bounds each
// attempt instead, so backoff waits are not counted against it.
func WrapHTTP(policy Policy, base *http.Client, sleep Sleeper) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	client.Timeout = 0
	client.Transport = NewTransport(policy, client.Transport, sleep)
	return &client
}

// NewTransport returns a RoundTripper enforcing the retry policy on top of base.
// A positive policy.RequestTimeout limits every attempt, body read included.
func NewTransport(policy Policy, base http.RoundTripper, sleep Sleeper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if sleep == nil {
		sleep = Sleep
	}
	if policy.Provider == "" {
		policy.Provider = DefaultProvider
	}
	return &roundTripper{base: base, policy: policy, sleep: sleep}
}

type roundTripper struct {
	base   http.RoundTripper
	policy Policy
	sleep  Sleeper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	bodyBytes, err := drainBody(req)
	if err != nil {
		return nil, err
	}
	provider := rt.policy.Provider

	for attempt := 0; ; attempt++ {
		resp, cancel, err := rt.attempt(req, bodyBytes)
		if err != nil {
			return nil, err
		}
		recordResponse(provider, resp.StatusCode, resp.Header)
		if resp.StatusCode != http.StatusTooManyRequests {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		wait := RetryAfter(resp.Header, rt.policy.DefaultRetryAfter)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		cancel()

		if attempt >= rt.policy.MaxRetries {
			rateLimitedTotal.WithLabelValues(provider).Inc()
			return nil, RateLimitError{
				Provider:   provider,
				Attempts:   attempt + 1,
				RetryAfter: wait,
				URL:        redactURL(req),
			}
		}

		retriesTotal.WithLabelValues(provider).Inc()
		retryAfterGauge.WithLabelValues(provider).Set(wait.Seconds())
		log.Printf("%s: 429 on %s, waiting %s (retry %d/%d)", provider, req.URL.Path, wait, attempt+1, rt.policy.MaxRetries)
		if err := rt.sleep(req.Context(), wait); err != nil {
			return nil, err
		}
	}
}

// attempt sends one clone of req under its own timeout. The caller owns
// cancel and must call it once the response body is done with.
func (rt *roundTripper) attempt(req *http.Request, body []byte) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := req.Context(), context.CancelFunc(func() {})
	if rt.policy.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, rt.policy.RequestTimeout)
	}
	out := req.Clone(ctx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := rt.base.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// RetryAfter reads the Retry-After header in seconds, falling back to def.
func RetryAfter(h http.Header, def time.Duration) time.Duration {
	val := strings.TrimSpace(h.Get(RetryAfterHeader))
	if val == "" {
		return def
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// ParseBudget extracts the IETF RateLimit-* headers. Missing values are -1.
func ParseBudget(h http.Header) Budget {
	budget := Budget{Limit: -1, Remaining: -1, Reset: -1}

	// RateLimit-Limit may carry a policy suffix, e.g. "7500;w=3600".
	if raw := strings.TrimSpace(h.Get(RateLimitLimitHeader)); raw != "" {
		parts := strings.Split(raw, ";")
		budget.Limit = headerValue(parts[0])
		for _, part := range parts[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && key == "w" {
				if secs := headerValue(value); secs >= 0 {
					budget.Window = time.Duration(secs) * time.Second
				}
			}
		}
	}
	budget.Remaining = headerValue(h.Get(RateLimitRemainingHeader))
	if secs := headerValue(h.Get(RateLimitResetHeader)); secs >= 0 {
		budget.Reset = time.Duration(secs) * time.Second
	}
	return budget
}

func headerValue(val string) int {
	val = strings.TrimSpace(val)
	if val == "" {
		return -1
	}
	out, err := strconv.Atoi(val)
	if err != nil {
		return -1
	}
	return out
}

func recordResponse(provider string, status int, headers http.Header) {
	lastStatusGauge.WithLabelValues(provider).Set(float64(status))
	budget := ParseBudget(headers)
	if budget.Remaining >= 0 {
		remainingGauge.WithLabelValues(provider).Set(float64(budget.Remaining))
	}
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()
	return data, nil
}

func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.User = nil
	return u.String()
}
