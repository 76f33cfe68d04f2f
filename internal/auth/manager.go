package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joshp123/xiqsync/internal/config"
)

const loginPath = "/login"

// AuthError reports a failed login. It is fatal for the run.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %v", e.Err)
	}
	return fmt.Sprintf("login failed %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Credential is the bearer token plus where it came from.
type Credential struct {
	Token string
	// Fresh is true when the token was just issued by a login.
	Fresh bool
}

// LoginPolicy decides how many times a login is attempted. Only transport
// failures are ever retried; a rejected login is final.
type LoginPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// FailFast is the default: one attempt, no retry.
func FailFast() LoginPolicy {
	return LoginPolicy{Attempts: 1}
}

// CredentialSource supplies login credentials on demand.
type CredentialSource func() (config.Credentials, error)

// Authenticator obtains and persists the bearer credential.
type Authenticator struct {
	baseURL     string
	store       CredentialStore
	credentials CredentialSource
	httpClient  *http.Client
	policy      LoginPolicy
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = client }
}

func WithLoginPolicy(policy LoginPolicy) Option {
	return func(a *Authenticator) { a.policy = policy }
}

func WithCredentialSource(source CredentialSource) Option {
	return func(a *Authenticator) { a.credentials = source }
}

func NewAuthenticator(baseURL string, store CredentialStore, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	a := &Authenticator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		store:       store,
		credentials: config.CredentialsFromEnv,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		policy:      FailFast(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy.Attempts <= 0 {
		a.policy.Attempts = 1
	}
	return a, nil
}

// Credential returns the stored token unless force is set or none is stored,
// in which case it logs in and persists the new token.
func (a *Authenticator) Credential(ctx context.Context, force bool) (Credential, error) {
	if !force {
		token, err := a.store.Load(ctx)
		switch {
		case err == nil && token != "":
			log.Printf("credential loaded from store")
			return Credential{Token: token}, nil
		case err != nil && !errors.Is(err, ErrCredentialNotFound):
			return Credential{}, fmt.Errorf("load credential: %w", err)
		}
	}

	creds, err := a.credentials()
	if err != nil {
		return Credential{}, err
	}

	token, err := a.loginWithPolicy(ctx, creds)
	if err != nil {
		loginFailure.Inc()
		return Credential{}, err
	}
	loginSuccess.Inc()

	if err := a.store.Save(ctx, token); err != nil {
		return Credential{}, fmt.Errorf("persist credential: %w", err)
	}
	log.Printf("new credential obtained and saved")
	return Credential{Token: token, Fresh: true}, nil
}

func (a *Authenticator) loginWithPolicy(ctx context.Context, creds config.Credentials) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.policy.Attempts; attempt++ {
		token, err := a.login(ctx, creds)
		if err == nil {
			return token, nil
		}
		lastErr = err

		var authErr *AuthError
		if !errors.As(err, &authErr) || authErr.Err == nil || attempt == a.policy.Attempts {
			break
		}
		log.Printf("login attempt %d/%d failed: %v", attempt, a.policy.Attempts, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.policy.Backoff):
		}
	}
	return "", lastErr
}

func (a *Authenticator) login(ctx context.Context, creds config.Credentials) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Body: "decode login response: " + err.Error()}
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "login response missing access_token"}
	}
	return strings.TrimSpace(out.AccessToken), nil
}
