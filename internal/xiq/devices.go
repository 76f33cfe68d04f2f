package xiq

import (
	"context"
	"log"
	"net/url"
	"strconv"

	"github.com/joshp123/xiqsync/internal/rate"
)

const devicesPath = "/devices"

// FetchAccessPoints pages through the device inventory and keeps only
// access points, in the order the API returns them. A device seen on an
// earlier page is kept as first returned.
func (c *Client) FetchAccessPoints(ctx context.Context, pageSize int) ([]Device, error) {
	var aps []Device
	seen := make(map[int64]struct{})
	err := c.walkDevices(ctx, pageSize, func(page DevicePage) error {
		for _, device := range page.Data {
			if !device.IsAccessPoint() {
				continue
			}
			if _, dup := seen[device.ID]; dup {
				log.Printf("device %d returned twice; keeping first occurrence", device.ID)
				continue
			}
			seen[device.ID] = struct{}{}
			aps = append(aps, device)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aps, nil
}

// walkDevices requests pages until one returns fewer raw records than
// pageSize. The AP filter must not influence termination.
func (c *Client) walkDevices(ctx context.Context, pageSize int, visit func(DevicePage) error) error {
	pacer := rate.NewPacer(c.policy.PageDelay, c.sleep)

	for page := 1; ; page++ {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		log.Printf("fetching devices page %d (limit %d)", page, pageSize)

		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("views", "FULL")

		var resp DevicePage
		if err := c.getJSON(ctx, devicesPath, query, &resp); err != nil {
			return err
		}
		if err := visit(resp); err != nil {
			return err
		}
		if len(resp.Data) < pageSize {
			return nil
		}
	}
}
