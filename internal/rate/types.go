package rate

import (
	"fmt"
	"time"
)

const (
	DefaultPageDelay         = 800 * time.Millisecond
	DefaultChunkDelay        = 500 * time.Millisecond
	DefaultRecordTTL         = 2 * time.Hour
	DefaultMaxRetries        = 5
	DefaultChunkSize         = 10
	DefaultRetryAfter        = 60 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultProvider          = "xiq"
	RetryAfterHeader         = "Retry-After"
	RateLimitLimitHeader     = "RateLimit-Limit"
	RateLimitRemainingHeader = "RateLimit-Remaining"
	RateLimitResetHeader     = "RateLimit-Reset"
)

// Policy holds every pacing and retry constant used against the provider.
type Policy struct {
	Provider          string        `mapstructure:"provider"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	ChunkDelay        time.Duration `mapstructure:"chunk_delay"`
	RecordTTL         time.Duration `mapstructure:"record_ttl"`
	MaxRetries        int           `mapstructure:"max_retries"`
	ChunkSize         int           `mapstructure:"chunk_size"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// DefaultPolicy returns the limits ExtremeCloud IQ tolerates in practice.
func DefaultPolicy() Policy {
	return Policy{
		Provider:          DefaultProvider,
		PageDelay:         DefaultPageDelay,
		ChunkDelay:        DefaultChunkDelay,
		RecordTTL:         DefaultRecordTTL,
		MaxRetries:        DefaultMaxRetries,
		ChunkSize:         DefaultChunkSize,
		DefaultRetryAfter: DefaultRetryAfter,
		RequestTimeout:    DefaultRequestTimeout,
	}
}

func (p Policy) WithPageDelay(d time.Duration) Policy {
	p.PageDelay = d
	return p
}

func (p Policy) WithChunkDelay(d time.Duration) Policy {
	p.ChunkDelay = d
	return p
}

func (p Policy) WithMaxRetries(n int) Policy {
	p.MaxRetries = n
	return p
}

func (p Policy) WithRequestTimeout(d time.Duration) Policy {
	p.RequestTimeout = d
	return p
}

func (p Policy) WithDefaultRetryAfter(d time.Duration) Policy {
	p.DefaultRetryAfter = d
	return p
}

// Validate rejects values that would make the pipeline spin or stall.
func (p Policy) Validate() error {
	if p.PageDelay < 0 {
		return fmt.Errorf("policy.page_delay must not be negative")
	}
	if p.ChunkDelay < 0 {
		return fmt.Errorf("policy.chunk_delay must not be negative")
	}
	if p.RecordTTL <= 0 {
		return fmt.Errorf("policy.record_ttl must be positive")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("policy.max_retries must not be negative")
	}
	if p.ChunkSize <= 0 {
		return fmt.Errorf("policy.chunk_size must be positive")
	}
	if p.DefaultRetryAfter < 0 {
		return fmt.Errorf("policy.default_retry_after must not be negative")
	}
	if p.RequestTimeout < 0 {
		return fmt.Errorf("policy.request_timeout must not be negative")
	}
	return nil
}

// Budget is the provider's advertised request budget.
type Budget struct {
	Limit     int
	Window    time.Duration
	Remaining int
	Reset     time.Duration
}

// RemainingPercent is the share of the budget still available.
func (b Budget) RemainingPercent() float64 {
	if b.Limit <= 0 {
		return 0
	}
	return float64(b.Remaining) / float64(b.Limit) * 100
}

// Known reports whether limit and remaining headers were both present.
func (b Budget) Known() bool {
	return b.Limit > 0 && b.Remaining >= 0
}
