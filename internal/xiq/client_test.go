package xiq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/xiqsync/internal/rate"
)

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func (r *recordingSleeper) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func newTestClient(t *testing.T, server *httptest.Server, sleeper *recordingSleeper, workers int) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Policy:      rate.DefaultPolicy(),
		Sleep:       sleeper.Sleep,
		SSIDWorkers: workers,
	}, "test-token")
	require.NoError(t, err)
	return c
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("unexpected auth header: %q", got)
	}
}

func devicesJSON(start, n int, function func(i int) string) string {
	items := make([]string, 0, n)
	for i := start; i < start+n; i++ {
		items = append(items, fmt.Sprintf(`{"id":%d,"hostname":"host-%d","device_function":%q,"connected":true}`, i, i, function(i)))
	}
	return `{"data":[` + strings.Join(items, ",") + `]}`
}

func allAP(int) string { return FunctionAP }

func TestWalkDevicesStopsOnShortPage(t *testing.T) {
	sizes := []int{100, 100, 37}
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, devicesPath, r.URL.Path)
		assertAuth(t, r)
		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "FULL", q.Get("views"))

		page, err := strconv.Atoi(q.Get("page"))
		assert.NoError(t, err)
		requests++
		if page < 1 || page > len(sizes) {
			t.Errorf("unexpected page %d", page)
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(devicesJSON(page*1000, sizes[page-1], allAP)))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, server, sleeper, 1)

	var raw int
	err := c.walkDevices(context.Background(), 100, func(p DevicePage) error {
		raw += len(p.Data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Equal(t, 237, raw)
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 800 * time.Millisecond}, sleeper.Waits())
}

func TestFetchAccessPointsFiltersByFunction(t *testing.T) {
	functions := []string{"AP", "SWITCH", "AP", "ROUTER", "AP"}
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page := r.URL.Query().Get("page")
		if page == "1" {
			// A full raw page with only three APs must not end the walk.
			_, _ = w.Write([]byte(devicesJSON(1, 5, func(i int) string { return functions[i-1] })))
			return
		}
		_, _ = w.Write([]byte(devicesJSON(10, 1, func(int) string { return "SWITCH" })))
	}))
	defer server.Close()

	c := newTestClient(t, server, &recordingSleeper{}, 1)
	aps, err := c.FetchAccessPoints(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	assert.Equal(t, []int64{1, 3, 5}, DeviceIDs(aps))
	for _, ap := range aps {
		assert.True(t, ap.IsAccessPoint())
	}
}

func TestFetchAccessPointsPropagatesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_message":"token expired"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, &recordingSleeper{}, 1)
	_, err := c.FetchAccessPoints(context.Background(), 100)

	var statusErr HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestFetchAccessPointsRateLimitExhausted(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, server, sleeper, 1)
	_, err := c.FetchAccessPoints(context.Background(), 100)

	var rl rate.RateLimitError
	require.True(t, errors.As(err, &rl), "expected RateLimitError, got %v", err)
	assert.Equal(t, 6, requests)
	assert.Len(t, sleeper.Waits(), 5)
	for _, d := range sleeper.Waits() {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestFetchAccessPointsRetriesPastRequestTimeout(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(devicesJSON(1, 2, allAP)))
	}))
	defer server.Close()

	// The backoff is longer than the per-request timeout and uses real sleeps.
	c, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Policy:  rate.DefaultPolicy().WithRequestTimeout(200 * time.Millisecond),
	}, "test-token")
	require.NoError(t, err)

	start := time.Now()
	aps, err := c.FetchAccessPoints(context.Background(), 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, 2, requests)
	assert.Equal(t, []int64{1, 2}, DeviceIDs(aps))
}

func TestFetchAccessPointsRequestTimeoutPerAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Policy:  rate.DefaultPolicy().WithRequestTimeout(50 * time.Millisecond),
		Sleep:   (&recordingSleeper{}).Sleep,
	}, "test-token")
	require.NoError(t, err)

	_, err = c.FetchAccessPoints(context.Background(), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}

func TestFetchAccessPointsDropsRepeatedDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"data":[{"id":1,"hostname":"first","device_function":"AP"},{"id":2,"hostname":"first","device_function":"AP"}]}`))
		case "2":
			// The inventory shifted between requests; device 2 shows up again.
			_, _ = w.Write([]byte(`{"data":[{"id":2,"hostname":"second","device_function":"AP"}]}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, &recordingSleeper{}, 1)
	aps, err := c.FetchAccessPoints(context.Background(), 2)
	require.NoError(t, err)

	require.Equal(t, []int64{1, 2}, DeviceIDs(aps))
	assert.Equal(t, "first", aps[1].Name())
}

func radioServer(t *testing.T, batches *[][]string, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, radioInfoPath, r.URL.Path)
		assertAuth(t, r)
		q := r.URL.Query()
		assert.Equal(t, "false", q.Get("includeDisabledRadio"))
		assert.Equal(t, "100", q.Get("limit"))

		ids := strings.Split(q.Get("deviceIds"), ",")
		mu.Lock()
		*batches = append(*batches, ids)
		mu.Unlock()

		type wlan struct {
			SSID string `json:"ssid"`
		}
		type radio struct {
			Wlans []wlan `json:"wlans"`
		}
		type info struct {
			DeviceID int64   `json:"device_id"`
			Radios   []radio `json:"radios"`
		}
		var data []info
		for _, raw := range ids {
			id, _ := strconv.ParseInt(raw, 10, 64)
			if id%7 == 0 {
				continue
			}
			data = append(data, info{DeviceID: id, Radios: []radio{
				{Wlans: []wlan{{SSID: "corp"}, {SSID: "guest"}}},
				{Wlans: []wlan{{SSID: "guest"}}},
			}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestFetchSSIDsChunksAndPaces(t *testing.T) {
	var batches [][]string
	var mu sync.Mutex
	server := radioServer(t, &batches, &mu)
	defer server.Close()

	ids := make([]int64, 0, 23)
	for i := int64(1); i <= 23; i++ {
		ids = append(ids, i)
	}

	sleeper := &recordingSleeper{}
	c := newTestClient(t, server, sleeper, 1)
	ssids, err := c.FetchSSIDs(context.Background(), ids)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 3)
	assert.Equal(t, []string{"21", "22", "23"}, batches[2])
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeper.Waits())

	assert.Len(t, ssids, 20)
	assert.Equal(t, []string{"corp", "guest"}, SSIDNames(ssids[1]))
	_, ok := ssids[7]
	assert.False(t, ok, "unreported device must have no key")
}

func TestFetchSSIDsWorkerPool(t *testing.T) {
	var batches [][]string
	var mu sync.Mutex
	server := radioServer(t, &batches, &mu)
	defer server.Close()

	ids := make([]int64, 0, 45)
	for i := int64(1); i <= 45; i++ {
		ids = append(ids, i)
	}

	sleeper := &recordingSleeper{}
	c := newTestClient(t, server, sleeper, 3)
	ssids, err := c.FetchSSIDs(context.Background(), ids)
	require.NoError(t, err)

	assert.Len(t, batches, 5)
	assert.Len(t, sleeper.Waits(), 4, "pacing is shared across workers")
	assert.Len(t, ssids, 45-6)
}

func TestDedupSSIDsFirstWins(t *testing.T) {
	wpa2, open := "WPA2", "Open"
	wlans := []Wlan{
		{SSID: "Guest", SecurityType: &wpa2},
		{SSID: "Corp"},
		{SSID: "Guest", SecurityType: &open},
	}

	out := DedupSSIDs(wlans)
	require.Len(t, out, 2)
	assert.Equal(t, "Guest", out[0].SSID)
	require.NotNil(t, out[0].SecurityType)
	assert.Equal(t, "WPA2", *out[0].SecurityType)
	assert.Equal(t, "Corp", out[1].SSID)
}

func TestChunk(t *testing.T) {
	assert.Empty(t, Chunk(nil, 10))
	assert.Equal(t, [][]int64{{1, 2}, {3}}, Chunk([]int64{1, 2, 3}, 2))
}

func TestDeviceJSONKeepsNulls(t *testing.T) {
	host := "ap-1"
	data, err := json.Marshal(Device{ID: 1, Hostname: &host, DeviceFunction: "AP", Connected: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"hostname":"ap-1","device_function":"AP","serial_number":null,"product_type":null,"connected":true,"location_id":null}`, string(data))
}
