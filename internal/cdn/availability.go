package cdn

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckAvailability reports for every path whether the CDN has it. Paths are
// looked up in waves of AvailabilityBatchSize concurrent requests with a
// short pause between waves. A failed lookup yields false for its own path
// only. Paths not reached before ctx ends are reported as false.
func (c *Client) CheckAvailability(ctx context.Context, paths []string, principalID string) []bool {
	results := make([]bool, len(paths))

	for i, w := range splitWaves(len(paths), c.cfg.AvailabilityBatchSize) {
		if i > 0 && !c.pause(ctx) {
			break
		}

		var g errgroup.Group
		for j := w.start; j < w.end; j++ {
			g.Go(func() error {
				results[j] = c.available(ctx, paths[j], principalID)
				return nil
			})
		}
		_ = g.Wait()
	}

	return results
}

func (c *Client) available(ctx context.Context, path, principalID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Availability lookup panicked", "path", path, "panic", r)
			ok = false
		}
	}()

	info, err := c.GetFileInfo(ctx, path, principalID)
	if err != nil {
		c.logger.Warn("Availability lookup failed", "path", path, "error", err)
		return false
	}
	return info != nil
}

func (c *Client) pause(ctx context.Context) bool {
	if c.cfg.AvailabilityPause <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(c.cfg.AvailabilityPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type wave struct {
	start, end int
}

func splitWaves(n, size int) []wave {
	if size <= 0 {
		size = n
	}
	var out []wave
	for start := 0; start < n; start += size {
		out = append(out, wave{start: start, end: min(start+size, n)})
	}
	return out
}
