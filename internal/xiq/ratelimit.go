package xiq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/joshp123/xiqsync/internal/rate"
)

// Severity follows the Nagios plugin exit codes.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// BudgetProbe is the outcome of a single unretried request.
type BudgetProbe struct {
	Status int
	Budget rate.Budget
}

// ProbeBudget issues one GET /devices?page=1&limit=1 without 429 retries
// and returns the advertised budget headers.
func (c *Client) ProbeBudget(ctx context.Context) (BudgetProbe, error) {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("limit", "1")

	resp, err := c.doRequest(ctx, c.probeClient, devicesPath, query)
	if err != nil {
		return BudgetProbe{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return BudgetProbe{Status: resp.StatusCode, Budget: rate.ParseBudget(resp.Header)}, nil
}

// Thresholds are percentages of the remaining budget.
type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 20, Critical: 5}
}

// Evaluate maps a probe to a severity and a one-line summary.
func (t Thresholds) Evaluate(p BudgetProbe) (Severity, string) {
	warn, crit := t.Warning, t.Critical
	if warn < crit {
		warn, crit = crit, warn
	}
	b := p.Budget

	switch {
	case p.Status == http.StatusTooManyRequests:
		return SeverityCritical, fmt.Sprintf("rate limit exceeded (429), remaining %d, reset in %s", max(b.Remaining, 0), max(b.Reset, 0))
	case p.Status < 200 || p.Status >= 300:
		return SeverityUnknown, fmt.Sprintf("api error: http status %d", p.Status)
	case !b.Known() || b.Reset < 0:
		return SeverityUnknown, "rate limit headers missing from response"
	}

	pct := b.RemainingPercent()
	severity := SeverityOK
	switch {
	case pct <= crit:
		severity = SeverityCritical
	case pct <= warn:
		severity = SeverityWarning
	}
	return severity, fmt.Sprintf("%d of %d requests (%.2f%%) remaining, reset in %s", b.Remaining, b.Limit, pct, b.Reset)
}
