package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/joshp123/xiqsync/internal/xiq"
)

// Persist writes every device and its SSID names. Per device the commands
// run in a fixed order: SET record, DEL ssids, RPUSH ssids (only when there
// are any), EXPIRE record. The SSID list gets no expiry.
//
// The first failing command aborts the run. Devices already written stay
// written. The returned count is the number of devices fully persisted.
func (s *Store) Persist(ctx context.Context, devices []xiq.Device, ssids map[int64][]xiq.Wlan) (int, error) {
	stored := 0
	for _, device := range devices {
		if err := s.persistOne(ctx, device, ssids[device.ID]); err != nil {
			return stored, err
		}
		stored++
	}
	log.Printf("stored %d access points", stored)
	return stored, nil
}

func (s *Store) persistOne(ctx context.Context, device xiq.Device, wlans []xiq.Wlan) error {
	key := RecordKey(device.ID)
	ssidKey := SSIDKey(device.ID)

	payload, err := json.Marshal(device)
	if err != nil {
		return &StoreError{Op: "ENCODE", Key: key, Err: err}
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return &StoreError{Op: "SET", Key: key, Err: err}
	}
	if err := s.client.Del(ctx, ssidKey).Err(); err != nil {
		return &StoreError{Op: "DEL", Key: ssidKey, Err: err}
	}
	if names := xiq.SSIDNames(wlans); len(names) > 0 {
		values := make([]any, 0, len(names))
		for _, name := range names {
			values = append(values, name)
		}
		if err := s.client.RPush(ctx, ssidKey, values...).Err(); err != nil {
			return &StoreError{Op: "RPUSH", Key: ssidKey, Err: err}
		}
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return &StoreError{Op: "EXPIRE", Key: key, Err: err}
	}
	return nil
}

// SaveLocations stores the location tree verbatim, without expiry.
func (s *Store) SaveLocations(ctx context.Context, raw []byte) error {
	if err := s.client.Set(ctx, LocationsKey, raw, 0).Err(); err != nil {
		return &StoreError{Op: "SET", Key: LocationsKey, Err: err}
	}
	return nil
}
