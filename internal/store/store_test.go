package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/xiqsync/internal/xiq"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", 2*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func strPtr(s string) *string { return &s }

func fixture() ([]xiq.Device, map[int64][]xiq.Wlan) {
	devices := []xiq.Device{
		{ID: 101, Hostname: strPtr("ap-lobby"), DeviceFunction: "AP", Connected: true},
		{ID: 102, Hostname: strPtr("ap-floor2"), DeviceFunction: "AP"},
	}
	ssids := map[int64][]xiq.Wlan{
		101: {{SSID: "corp"}, {SSID: "guest"}},
	}
	return devices, ssids
}

func TestPersistWritesRecordsAndSSIDs(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	devices, ssids := fixture()

	n, err := s.Persist(ctx, devices, ssids)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := mr.Get("ap:101")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":101,"hostname":"ap-lobby","device_function":"AP","serial_number":null,"product_type":null,"connected":true,"location_id":null}`, raw)
	assert.Equal(t, 2*time.Hour, mr.TTL("ap:101"))

	list, err := mr.List("ap:101:ssids")
	require.NoError(t, err)
	assert.Equal(t, []string{"corp", "guest"}, list)

	// The SSID list is deliberately left without an expiry.
	assert.Equal(t, time.Duration(0), mr.TTL("ap:101:ssids"))

	assert.False(t, mr.Exists("ap:102:ssids"), "no SSID key for a device without SSIDs")
}

func TestPersistIsIdempotentAndResetsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	devices, ssids := fixture()

	_, err := s.Persist(ctx, devices, ssids)
	require.NoError(t, err)
	first, _ := mr.Get("ap:101")

	mr.FastForward(90 * time.Minute)
	assert.Equal(t, 30*time.Minute, mr.TTL("ap:101"))

	_, err = s.Persist(ctx, devices, ssids)
	require.NoError(t, err)

	second, _ := mr.Get("ap:101")
	assert.Equal(t, first, second)
	assert.Equal(t, 2*time.Hour, mr.TTL("ap:101"))
	list, _ := mr.List("ap:101:ssids")
	assert.Equal(t, []string{"corp", "guest"}, list, "list must not grow across runs")
}

func TestPersistDeletesStaleSSIDs(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	devices, _ := fixture()

	_, err := mr.Push("ap:102:ssids", "old-network")
	require.NoError(t, err)

	_, err = s.Persist(ctx, devices, map[int64][]xiq.Wlan{})
	require.NoError(t, err)
	assert.False(t, mr.Exists("ap:102:ssids"))
}

func TestPersistAbortsOnFailure(t *testing.T) {
	s, mr := newTestStore(t)
	devices, ssids := fixture()

	mr.SetError("READONLY You can't write against a read only replica.")
	n, err := s.Persist(context.Background(), devices, ssids)
	mr.SetError("")

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr), "expected StoreError, got %v", err)
	assert.Equal(t, "SET", storeErr.Op)
	assert.Equal(t, "ap:101", storeErr.Key)
	assert.Equal(t, 0, n)
	assert.False(t, mr.Exists("ap:102"))
}

// commandRecorder logs "name key" for each command and fails the failAt-th
// one (1-based) without sending it. Zero never fails.
type commandRecorder struct {
	mu       sync.Mutex
	commands []string
	failAt   int
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (r *commandRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		r.mu.Lock()
		args := cmd.Args()
		entry := cmd.Name()
		if len(args) > 1 {
			entry += " " + fmt.Sprint(args[1])
		}
		r.commands = append(r.commands, entry)
		fail := r.failAt > 0 && len(r.commands) == r.failAt
		r.mu.Unlock()

		if fail {
			err := errors.New("connection reset by peer")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (r *commandRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (r *commandRecorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func TestPersistCommandOrder(t *testing.T) {
	s, _ := newTestStore(t)
	recorder := &commandRecorder{}
	s.client.AddHook(recorder)
	devices, ssids := fixture()

	n, err := s.Persist(context.Background(), devices, ssids)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{
		"set ap:101",
		"del ap:101:ssids",
		"rpush ap:101:ssids",
		"expire ap:101",
		"set ap:102",
		"del ap:102:ssids",
		"expire ap:102",
	}, recorder.Commands())
}

func TestPersistKeepsEarlierDevicesOnMidRunFailure(t *testing.T) {
	s, mr := newTestStore(t)
	devices, ssids := fixture()
	_, err := mr.Push("ap:102:ssids", "old-network")
	require.NoError(t, err)

	// Sixth command is DEL ap:102:ssids.
	recorder := &commandRecorder{failAt: 6}
	s.client.AddHook(recorder)

	n, err := s.Persist(context.Background(), devices, ssids)
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr), "expected StoreError, got %v", err)
	assert.Equal(t, "DEL", storeErr.Op)
	assert.Equal(t, "ap:102:ssids", storeErr.Key)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{
		"set ap:101",
		"del ap:101:ssids",
		"rpush ap:101:ssids",
		"expire ap:101",
		"set ap:102",
		"del ap:102:ssids",
	}, recorder.Commands())

	// Device 101 is complete and not rolled back.
	assert.True(t, mr.Exists("ap:101"))
	assert.Equal(t, 2*time.Hour, mr.TTL("ap:101"))
	list, err := mr.List("ap:101:ssids")
	require.NoError(t, err)
	assert.Equal(t, []string{"corp", "guest"}, list)

	// Device 102 stopped after its SET: no expiry yet and the old list untouched.
	assert.True(t, mr.Exists("ap:102"))
	assert.Equal(t, time.Duration(0), mr.TTL("ap:102"))
	stale, err := mr.List("ap:102:ssids")
	require.NoError(t, err)
	assert.Equal(t, []string{"old-network"}, stale)
}

func TestReaderGetListFind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	devices, ssids := fixture()
	_, err := s.Persist(ctx, devices, ssids)
	require.NoError(t, err)

	rec, err := s.Get(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "ap-lobby", *rec.Device.Hostname)
	assert.Equal(t, []string{"corp", "guest"}, rec.SSIDs)
	assert.Equal(t, 2*time.Hour, rec.TTL)

	_, err = s.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(101), records[0].Device.ID)
	assert.Equal(t, int64(102), records[1].Device.ID)
	assert.Empty(t, records[1].SSIDs)

	found, err := s.FindByHostname(ctx, "FLOOR", false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(102), found[0].Device.ID)

	found, err = s.FindByHostname(ctx, "ap-flo", true)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLocations(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadLocations(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveLocations(ctx, []byte(`[{"id":1,"name":"Global"}]`)))
	raw, err := s.LoadLocations(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Global"}]`, string(raw))
	assert.Equal(t, time.Duration(0), mr.TTL(LocationsKey))
}

func TestParseRecordKey(t *testing.T) {
	id, ok := parseRecordKey("ap:42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseRecordKey("ap:42:ssids")
	assert.False(t, ok)
	_, ok = parseRecordKey("xiq:locations:tree")
	assert.False(t, ok)
}
