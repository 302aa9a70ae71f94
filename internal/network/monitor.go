// Package network tracks whether the device can reach the internet and runs
// a hook when connectivity comes back.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

// Status is a connectivity snapshot
type Status struct {
	IsConnected         bool `json:"is_connected"`
	IsInternetReachable bool `json:"is_internet_reachable"`
}

// Usable reports whether remote calls are worth attempting
func (s Status) Usable() bool {
	return s.IsConnected && s.IsInternetReachable
}

// Prober performs one connectivity check
type Prober interface {
	Probe(ctx context.Context) Status
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context) Status

func (f ProberFunc) Probe(ctx context.Context) Status { return f(ctx) }

// Options configures a Monitor
type Options struct {
	// Interval between polls; zero disables the poll loop (Refresh only)
	Interval time.Duration
	// Timeout bounds each probe
	Timeout time.Duration
	// OnReconnect runs in the background on every not-usable to usable transition
	OnReconnect func(ctx context.Context) error
}

// Monitor polls a Prober and fans status changes out to listeners
type Monitor struct {
	prober Prober
	opts   Options

	mu        sync.RWMutex
	status    Status
	listeners map[int]func(Status)
	nextID    int
	destroyed bool

	// Serialises probes so transitions are observed in order
	probeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMonitor performs one synchronous check and then starts polling
func NewMonitor(prober Prober, opts Options) *Monitor {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultProbeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		prober:    prober,
		opts:      opts,
		listeners: make(map[int]func(Status)),
		ctx:       ctx,
		cancel:    cancel,
	}

	// The first observation establishes the baseline and never fires the hook
	m.mu.Lock()
	m.status = m.probe(ctx)
	m.mu.Unlock()

	if opts.Interval > 0 {
		m.wg.Add(1)
		go m.poll()
	}
	return m
}

func (m *Monitor) poll() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(m.ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	return m.prober.Probe(ctx)
}

// Refresh runs one check now and returns the new status. Listeners and the
// reconnect hook fire as they would from the poll loop.
func (m *Monitor) Refresh(ctx context.Context) Status {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	next := m.probe(ctx)

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return next
	}
	prev := m.status
	m.status = next
	var listeners []func(Status)
	if prev != next {
		for _, fn := range m.listeners {
			listeners = append(listeners, fn)
		}
	}
	reconnected := !prev.Usable() && next.Usable()
	if reconnected && m.opts.OnReconnect != nil {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if prev != next {
		logger.Debug("Connectivity changed", "connected", next.IsConnected, "reachable", next.IsInternetReachable)
	}
	for _, fn := range listeners {
		fn(next)
	}
	if reconnected && m.opts.OnReconnect != nil {
		go func() {
			defer m.wg.Done()
			if err := m.opts.OnReconnect(m.ctx); err != nil {
				logger.Warn("Sync after reconnect failed", "error", err)
			}
		}()
	}
	return next
}

// Status returns the last observed status
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsOnline reports whether the last observed status is usable
func (m *Monitor) IsOnline() bool {
	return m.Status().Usable()
}

// Subscribe registers fn for every status change and returns its unsubscribe func
func (m *Monitor) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Destroy stops polling, drops listeners and waits for reconnect hooks to return.
// It is safe to call more than once.
func (m *Monitor) Destroy() {
	m.once.Do(func() {
		m.mu.Lock()
		m.destroyed = true
		m.listeners = make(map[int]func(Status))
		m.mu.Unlock()

		m.cancel()
		m.wg.Wait()
	})
}
