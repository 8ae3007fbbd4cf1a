package capture

import (
	"context"
	"hash/fnv"
	"log/slog"
	"time"
)

// stabilityPollInterval is how often the monitor samples a frame.
const stabilityPollInterval = 100 * time.Millisecond

// frameFunc captures a cheap frame representation for change detection.
type frameFunc func() ([]byte, error)

// waitForStability polls frames until the content stops changing.
//
// A frame is hashed each interval; when the hash holds steady for the
// quiet period the page counts as stable. Capture errors are treated as
// "not yet stable" and logged, never propagated: this monitor is a
// readiness gate, not a correctness check. Returns false on timeout or
// context cancellation.
func waitForStability(ctx context.Context, frame frameFunc, timeout, quiet time.Duration) bool {
	start := time.Now()
	lastChange := start

	var lastHash uint64
	hashValid := false

	for time.Since(start) < timeout {
		if !sleepCtx(ctx, stabilityPollInterval) {
			return false
		}

		data, err := frame()
		if err != nil {
			slog.Debug("frame sample failed, treating as unstable", "error", err)
			lastChange = time.Now()
			hashValid = false
			continue
		}

		h := hashFrame(data)
		if !hashValid || h != lastHash {
			lastHash = h
			hashValid = true
			lastChange = time.Now()
			continue
		}

		if time.Since(lastChange) >= quiet {
			slog.Debug("frame stability reached",
				"elapsed", time.Since(start).Round(time.Millisecond))
			return true
		}
	}

	slog.Debug("frame stability timeout", "timeout", timeout)
	return false
}

func hashFrame(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// sleepCtx sleeps for d unless the context ends first. Reports whether
// the full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
