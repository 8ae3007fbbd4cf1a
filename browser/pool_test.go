package browser

import (
	"testing"
	"time"

	"github.com/banner-tools/bannershot/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

func newTestPool(size int) *Pool {
	p := NewPool(config.BrowserConfig{PoolSize: size})
	p.launchFn = func(config.BrowserConfig) (*rod.Browser, *launcher.Launcher, error) {
		return nil, nil, nil
	}
	return p
}

func TestPoolReusesReleasedInstance(t *testing.T) {
	p := newTestPool(2)

	a, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(a, true)

	b, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if b.ID != a.ID {
		t.Errorf("expected reuse of instance %d, got %d", a.ID, b.ID)
	}
}

func TestPoolOverflowLaunchesTemporary(t *testing.T) {
	p := newTestPool(1)

	a, _ := p.Acquire()
	b, err := p.Acquire()
	if err != nil {
		t.Fatalf("overflow acquire: %v", err)
	}
	if a.temporary {
		t.Error("first instance should be pooled")
	}
	if !b.temporary {
		t.Error("second instance should be temporary")
	}

	stats := p.Stats()
	if stats.Active != 2 {
		t.Errorf("active = %d, want 2", stats.Active)
	}
	if stats.Temporary != 1 {
		t.Errorf("temporary = %d, want 1", stats.Temporary)
	}

	p.Release(b, true)
	if got := p.Stats().Temporary; got != 0 {
		t.Errorf("temporary after release = %d, want 0", got)
	}

	// The temporary instance must not re-enter the free list.
	p.Release(a, true)
	c, _ := p.Acquire()
	if c.ID != a.ID {
		t.Errorf("expected pooled instance %d back, got %d", a.ID, c.ID)
	}
}

func TestPoolRetiresAfterErrors(t *testing.T) {
	p := newTestPool(1)

	a, _ := p.Acquire()
	id := a.ID
	for i := 0; i < 3; i++ {
		p.Release(a, false)
		a, _ = p.Acquire()
		if a.ID != id {
			break
		}
	}
	if a.ID == id {
		t.Error("instance survived repeated failures")
	}
}

func TestPoolRetiresByAge(t *testing.T) {
	p := newTestPool(1)

	a, _ := p.Acquire()
	a.createdAt = time.Now().Add(-retireAge - time.Minute)
	p.Release(a, true)

	b, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if b.ID == a.ID {
		t.Error("aged-out instance was reused")
	}
}

func TestPoolCloseRejectsAcquire(t *testing.T) {
	p := newTestPool(1)
	a, _ := p.Acquire()
	p.Release(a, true)
	p.Close()

	if _, err := p.Acquire(); err == nil {
		t.Error("acquire after close should fail")
	}
}
