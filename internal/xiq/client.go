package xiq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/joshp123/xiqsync/internal/rate"
)

// ErrUnauthorized marks a 401 from the API; the bearer token was rejected.
var ErrUnauthorized = errors.New("xiq api unauthorized")

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("xiq api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e HTTPStatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Policy  rate.Policy
	// Sleep replaces real sleeps for both backoff and pacing.
	Sleep rate.Sleeper
	// Transport is the innermost RoundTripper. Nil means http.DefaultTransport.
	Transport   http.RoundTripper
	SSIDWorkers int
}

// Client talks to the ExtremeCloud IQ REST API with a fixed bearer token.
type Client struct {
	baseURL string
	policy  rate.Policy
	sleep   rate.Sleeper
	workers int

	// httpClient retries 429 per policy with a per-attempt timeout;
	// probeClient sends once under a client-wide timeout.
	httpClient  *http.Client
	probeClient *http.Client
}

func NewClient(cfg ClientConfig, token string) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("bearer token is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = rate.Sleep
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	workers := cfg.SSIDWorkers
	if workers <= 0 {
		workers = 1
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &Client{
		baseURL: baseURL,
		policy:  cfg.Policy,
		sleep:   sleep,
		workers: workers,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: source,
				Base:   rate.NewTransport(cfg.Policy, base, sleep),
			},
		},
		probeClient: &http.Client{
			Timeout:   cfg.Policy.RequestTimeout,
			Transport: &oauth2.Transport{Source: source, Base: base},
		},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.doRequest(ctx, c.httpClient, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var rl rate.RateLimitError
		if errors.As(err, &rl) {
			return nil, rl
		}
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}
