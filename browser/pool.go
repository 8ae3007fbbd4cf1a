package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banner-tools/bannershot/config"
	"github.com/banner-tools/bannershot/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const (
	// retireErrScore is the decayed error score above which an instance
	// is considered unhealthy and replaced instead of reused.
	retireErrScore = 3.0

	// retireUseCount bounds how many captures one Chromium serves before
	// a preventive restart. Long-lived renderers leak.
	retireUseCount = 200

	// retireAge bounds instance lifetime regardless of use.
	retireAge = 2 * time.Hour

	// errScoreDecay is multiplied into the error score on every success,
	// so sporadic failures do not accumulate into retirement.
	errScoreDecay = 0.5
)

// Instance is one pooled Chromium with its health bookkeeping.
type Instance struct {
	ID      int64
	Browser *rod.Browser

	launcher  *launcher.Launcher
	temporary bool
	createdAt time.Time

	mu       sync.Mutex
	errScore float64
	useCount int
}

// recordResult updates the health counters after a capture.
func (i *Instance) recordResult(success bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.useCount++
	if success {
		i.errScore *= errScoreDecay
	} else {
		i.errScore++
	}
}

// shouldRetire reports whether the instance is past its useful life.
func (i *Instance) shouldRetire() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.errScore >= retireErrScore ||
		i.useCount >= retireUseCount ||
		time.Since(i.createdAt) >= retireAge
}

// Close shuts down the Chromium process. Safe to call on a half-dead
// instance; the launcher kill is the backstop when the CDP close fails.
func (i *Instance) Close() {
	if i.Browser != nil {
		if err := i.Browser.Close(); err != nil {
			slog.Debug("browser close failed", "id", i.ID, "error", err)
		}
	}
	if i.launcher != nil {
		i.launcher.Kill()
		i.launcher.Cleanup()
	}
}

// Pool manages a fixed number of reusable Chromium instances.
//
// Acquire hands out an idle instance, launches a new pooled one while
// capacity remains, and past capacity launches a temporary instance that
// is closed on release instead of returned. Callers therefore never
// block on the pool; the cost of overload is extra launches, not queueing.
type Pool struct {
	cfg      config.BrowserConfig
	launchFn func(config.BrowserConfig) (*rod.Browser, *launcher.Launcher, error)

	mu     sync.Mutex
	idle   []*Instance
	pooled int // live pooled instances, idle or checked out
	active int // checked-out instances, pooled or temporary
	closed bool

	temporary atomic.Int64
	nextID    atomic.Int64
}

// NewPool creates an empty pool. Instances launch lazily on first use so
// startup stays fast and a broken Chromium install surfaces as a capture
// error rather than a crash at boot.
func NewPool(cfg config.BrowserConfig) *Pool {
	return &Pool{cfg: cfg, launchFn: launch}
}

// Acquire returns a healthy instance, launching one if needed.
func (p *Pool) Acquire() (*Instance, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, models.NewCaptureError(
				models.ErrCodeInternal, "browser pool is closed", nil)
		}

		if n := len(p.idle); n > 0 {
			inst := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active++
			p.mu.Unlock()

			if inst.shouldRetire() {
				slog.Info("retiring browser instance", "id", inst.ID,
					"uses", inst.useCount)
				inst.Close()
				p.mu.Lock()
				p.pooled--
				p.active--
				p.mu.Unlock()
				continue
			}
			return inst, nil
		}

		makeTemporary := p.pooled >= p.cfg.PoolSize
		if !makeTemporary {
			p.pooled++
		}
		p.active++
		p.mu.Unlock()

		inst, err := p.launchInstance(makeTemporary)
		if err != nil {
			p.mu.Lock()
			if !makeTemporary {
				p.pooled--
			}
			p.active--
			p.mu.Unlock()
			return nil, err
		}
		return inst, nil
	}
}

func (p *Pool) launchInstance(temporary bool) (*Instance, error) {
	b, l, err := p.launchFn(p.cfg)
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		ID:        p.nextID.Add(1),
		Browser:   b,
		launcher:  l,
		temporary: temporary,
		createdAt: time.Now(),
	}
	if temporary {
		p.temporary.Add(1)
		slog.Warn("pool exhausted, launched temporary browser", "id", inst.ID)
	}
	return inst, nil
}

// Release returns an instance to the pool. Temporary and unhealthy
// instances are closed instead of being returned.
func (p *Pool) Release(inst *Instance, success bool) {
	if inst == nil {
		return
	}
	inst.recordResult(success)

	p.mu.Lock()
	p.active--
	closed := p.closed
	p.mu.Unlock()

	if inst.temporary {
		p.temporary.Add(-1)
		inst.Close()
		return
	}
	if closed || inst.shouldRetire() {
		inst.Close()
		p.mu.Lock()
		p.pooled--
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, inst)
	p.mu.Unlock()
}

// Stats reports the pool's current occupancy.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		PoolSize:  p.cfg.PoolSize,
		Active:    p.active,
		Temporary: int(p.temporary.Load()),
	}
}

// Close shuts down all idle instances and marks the pool closed.
// Checked-out instances are closed by Release when they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.pooled -= len(idle)
	p.mu.Unlock()

	for _, inst := range idle {
		inst.Close()
	}
}
