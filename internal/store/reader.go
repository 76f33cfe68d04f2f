package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshp123/xiqsync/internal/xiq"
)

const scanCount = 500

// Record is a stored access point with its SSID names.
type Record struct {
	Device xiq.Device    `json:"device" yaml:"device"`
	SSIDs  []string      `json:"ssids" yaml:"ssids"`
	TTL    time.Duration `json:"-" yaml:"-"`
}

// Get loads one access point.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	key := RecordKey(id)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, &StoreError{Op: "GET", Key: key, Err: err}
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec.Device); err != nil {
		return Record{}, &StoreError{Op: "DECODE", Key: key, Err: err}
	}
	rec.SSIDs, err = s.client.LRange(ctx, SSIDKey(id), 0, -1).Result()
	if err != nil {
		return Record{}, &StoreError{Op: "LRANGE", Key: SSIDKey(id), Err: err}
	}
	rec.TTL, err = s.client.TTL(ctx, key).Result()
	if err != nil {
		return Record{}, &StoreError{Op: "TTL", Key: key, Err: err}
	}
	return rec, nil
}

// IDs scans for primary record keys and returns their IDs in ascending order.
func (s *Store) IDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := s.client.Scan(ctx, 0, recordPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if id, ok := parseRecordKey(iter.Val()); ok {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, &StoreError{Op: "SCAN", Key: recordPrefix + "*", Err: err}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// List loads every stored access point, ordered by ID. Records expiring
// between scan and read are skipped.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindByHostname returns records whose hostname equals name, or contains it
// (case-insensitive) when exact is false.
func (s *Store) FindByHostname(ctx context.Context, name string, exact bool) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(name)
	var out []Record
	for _, rec := range records {
		host := rec.Device.Hostname
		if host == nil {
			continue
		}
		if (exact && *host == name) || (!exact && strings.Contains(strings.ToLower(*host), needle)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LoadLocations returns the stored location tree.
func (s *Store) LoadLocations(ctx context.Context) ([]byte, error) {
	raw, err := s.client.Get(ctx, LocationsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "GET", Key: LocationsKey, Err: err}
	}
	return raw, nil
}
