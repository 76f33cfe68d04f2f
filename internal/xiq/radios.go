package xiq

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joshp123/xiqsync/internal/rate"
)

const (
	radioInfoPath  = "/devices/radio-information"
	radioInfoLimit = 100
)

// FetchSSIDs queries radio information for ids in chunks and returns the
// deduplicated SSIDs per device. Devices the API did not report have no key.
func (c *Client) FetchSSIDs(ctx context.Context, ids []int64) (map[int64][]Wlan, error) {
	chunks := Chunk(ids, c.policy.ChunkSize)
	results := make([]map[int64][]Wlan, len(chunks))
	pacer := rate.NewPacer(c.policy.ChunkDelay, c.sleep)

	fetch := func(ctx context.Context, i int) error {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		log.Printf("fetching radio information for %d devices (chunk %d/%d)", len(chunks[i]), i+1, len(chunks))
		out, err := c.fetchRadioChunk(ctx, chunks[i])
		if err != nil {
			return err
		}
		results[i] = out
		return nil
	}

	if c.workers <= 1 {
		for i := range chunks {
			if err := fetch(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for i := range chunks {
			g.Go(func() error { return fetch(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	merged := make(map[int64][]Wlan)
	for _, part := range results {
		for id, wlans := range part {
			merged[id] = wlans
		}
	}
	return merged, nil
}

func (c *Client) fetchRadioChunk(ctx context.Context, chunk []int64) (map[int64][]Wlan, error) {
	requested := make(map[int64]struct{}, len(chunk))
	parts := make([]string, 0, len(chunk))
	for _, id := range chunk {
		requested[id] = struct{}{}
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	query := url.Values{}
	query.Set("deviceIds", strings.Join(parts, ","))
	query.Set("includeDisabledRadio", "false")
	query.Set("limit", strconv.Itoa(radioInfoLimit))

	var resp radioInfoResponse
	if err := c.getJSON(ctx, radioInfoPath, query, &resp); err != nil {
		return nil, err
	}

	out := make(map[int64][]Wlan, len(resp.Data))
	for _, info := range resp.Data {
		if _, ok := requested[info.DeviceID]; !ok {
			log.Printf("ignoring radio information for unrequested device %d", info.DeviceID)
			continue
		}
		var wlans []Wlan
		for _, r := range info.Radios {
			wlans = append(wlans, r.Wlans...)
		}
		out[info.DeviceID] = DedupSSIDs(wlans)
	}
	return out, nil
}

// DedupSSIDs keeps the first record for every SSID name, preserving order.
func DedupSSIDs(wlans []Wlan) []Wlan {
	seen := make(map[string]struct{}, len(wlans))
	out := make([]Wlan, 0, len(wlans))
	for _, w := range wlans {
		if _, ok := seen[w.SSID]; ok {
			continue
		}
		seen[w.SSID] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = rate.DefaultChunkSize
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// SSIDNames projects wlans onto their names.
func SSIDNames(wlans []Wlan) []string {
	names := make([]string, 0, len(wlans))
	for _, w := range wlans {
		names = append(names, w.SSID)
	}
	return names
}

// DeviceIDs returns the IDs of devices in order.
func DeviceIDs(devices []Device) []int64 {
	ids := make([]int64, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}
