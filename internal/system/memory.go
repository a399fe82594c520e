// Package system watches host resources on behalf of the loading layer.
package system

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/surfsidere/kova-scroll/internal/events"
)

// Monitor samples the process resident set size and the host's overall
// memory use and reports pressure transitions. Pressure engages when RSS
// crosses LimitMB or system use crosses SystemPercent, and releases once
// both drop back under 90% of their thresholds, so a process hovering at a
// limit does not flap.
type Monitor struct {
	LimitMB       int
	SystemPercent float64 // 0 disables the system-wide check
	Interval      time.Duration

	bus      *events.Bus
	onChange func(pressured bool)

	mu        sync.Mutex
	pressured bool
	lastMB    float64
	cancel    context.CancelFunc
	done      chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorBus publishes pressure transitions to bus.
func WithMonitorBus(bus *events.Bus) MonitorOption {
	return func(m *Monitor) { m.bus = bus }
}

// WithOnChange invokes fn on every pressure transition.
func WithOnChange(fn func(pressured bool)) MonitorOption {
	return func(m *Monitor) { m.onChange = fn }
}

// NewMonitor creates a monitor with the given RSS limit in MB.
func NewMonitor(limitMB int, interval time.Duration, opts ...MonitorOption) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	m := &Monitor{
		LimitMB:       limitMB,
		SystemPercent: 90,
		Interval:      interval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start samples on the configured interval until ctx is done or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sample(); err != nil {
					log.Printf("[!] memory sample failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Sample reads the current RSS and system memory use once and applies the
// pressure thresholds.
func (m *Monitor) Sample() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return err
	}
	sysPct := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		sysPct = vm.UsedPercent
	}
	m.apply(float64(info.RSS)/(1<<20), sysPct)
	return nil
}

func (m *Monitor) apply(rssMB, sysPct float64) {
	m.mu.Lock()
	m.lastMB = rssMB

	limit := float64(m.LimitMB)
	rssOver := limit > 0 && rssMB > limit
	rssClear := limit <= 0 || rssMB < limit*0.9
	sysOver := m.SystemPercent > 0 && sysPct > m.SystemPercent
	sysClear := m.SystemPercent <= 0 || sysPct < m.SystemPercent*0.9

	was := m.pressured
	if !was && (rssOver || sysOver) {
		m.pressured = true
	} else if was && rssClear && sysClear {
		m.pressured = false
	}
	now := m.pressured
	onChange := m.onChange
	m.mu.Unlock()

	if was == now {
		return
	}
	detail := "released"
	if now {
		detail = "engaged"
		log.Printf("[!] memory pressure: rss %.0fMB over limit %dMB", rssMB, m.LimitMB)
	} else {
		log.Printf("[*] memory pressure released: rss %.0fMB", rssMB)
	}
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Kind:   events.MemoryPressure,
			SizeKB: int(rssMB * 1024),
			Detail: detail,
		})
	}
	if onChange != nil {
		onChange(now)
	}
}

// Pressured reports the current pressure state.
func (m *Monitor) Pressured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pressured
}

// LastSampleMB returns the most recent RSS sample in MB.
func (m *Monitor) LastSampleMB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMB
}
