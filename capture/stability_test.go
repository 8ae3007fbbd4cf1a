package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForStabilityStaticContent(t *testing.T) {
	frame := func() ([]byte, error) {
		return []byte("same frame"), nil
	}

	if !waitForStability(context.Background(), frame, 3*time.Second, 300*time.Millisecond) {
		t.Error("static content should stabilize")
	}
}

func TestWaitForStabilityChangingContentTimesOut(t *testing.T) {
	var n atomic.Int64
	frame := func() ([]byte, error) {
		return []byte{byte(n.Add(1))}, nil
	}

	if waitForStability(context.Background(), frame, 800*time.Millisecond, 500*time.Millisecond) {
		t.Error("continuously changing content should not stabilize")
	}
}

func TestWaitForStabilitySettlesAfterChanges(t *testing.T) {
	var n atomic.Int64
	frame := func() ([]byte, error) {
		// three distinct frames, then steady state
		v := n.Add(1)
		if v > 3 {
			v = 3
		}
		return []byte{byte(v)}, nil
	}

	if !waitForStability(context.Background(), frame, 3*time.Second, 300*time.Millisecond) {
		t.Error("content should stabilize once frames stop changing")
	}
}

func TestWaitForStabilityErrorsAreNotStable(t *testing.T) {
	frame := func() ([]byte, error) {
		return nil, errors.New("capture failed")
	}

	if waitForStability(context.Background(), frame, 500*time.Millisecond, 300*time.Millisecond) {
		t.Error("persistent capture errors must not count as stable")
	}
}

func TestWaitForStabilityCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frame := func() ([]byte, error) {
		return []byte("frame"), nil
	}

	if waitForStability(ctx, frame, time.Second, 300*time.Millisecond) {
		t.Error("canceled context should report unstable")
	}
}

func TestSleepCtx(t *testing.T) {
	if !sleepCtx(context.Background(), 10*time.Millisecond) {
		t.Error("uninterrupted sleep should complete")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Second) {
		t.Error("canceled context should interrupt the sleep")
	}

	if !sleepCtx(ctx, 0) {
		t.Error("zero duration should complete regardless of context")
	}
}
