package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordPrefix = "ap:"
	ssidSuffix   = ":ssids"
	// LocationsKey holds the location tree as returned by the API.
	LocationsKey = "xiq:locations:tree"
)

// ErrNotFound is returned when no record exists for an access point.
var ErrNotFound = errors.New("record not found")

// StoreError wraps a failed Redis command.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("redis %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("redis %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store is the Redis-backed access point store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &StoreError{Op: "PARSEURL", Err: err}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &StoreError{Op: "PING", Err: err}
	}
	return New(client, ttl), nil
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &StoreError{Op: "PING", Err: err}
	}
	return nil
}

func RecordKey(id int64) string {
	return recordPrefix + strconv.FormatInt(id, 10)
}

func SSIDKey(id int64) string {
	return RecordKey(id) + ssidSuffix
}

// parseRecordKey returns the device ID of a primary record key.
func parseRecordKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, recordPrefix) || strings.HasSuffix(key, ssidSuffix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, recordPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
