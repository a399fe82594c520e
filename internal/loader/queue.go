package loader

import (
	"context"
	"sort"
	"time"
)

func scoreFor(m Metadata) int {
	score := 0
	switch m.Priority {
	case PriorityCritical:
		score = 300
	case PriorityAboveFold:
		score = 200
	case PriorityBelowFold:
		score = 100
	}
	if m.PreloadTrigger == TriggerImmediate {
		score += 500
	}
	return score
}

// enqueue queues id for a preload unless it is already loaded, in flight or
// queued. The queue is bounded: when full, the lowest-score entry loses.
func (l *Loader) enqueue(id string, score int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.meta[id]; !ok {
		return
	}
	if _, ok := l.loaded[id]; ok {
		return
	}
	if _, ok := l.loading[id]; ok {
		return
	}
	if _, ok := l.preloading[id]; ok {
		return
	}
	for _, q := range l.queue {
		if q.id == id {
			return
		}
	}

	if len(l.queue) >= l.queueCap {
		lowest := 0
		for i, q := range l.queue {
			if q.score < l.queue[lowest].score {
				lowest = i
			}
		}
		if l.queue[lowest].score >= score {
			return
		}
		l.queue = append(l.queue[:lowest], l.queue[lowest+1:]...)
	}

	l.queueSeq++
	l.queue = append(l.queue, queued{id: id, score: score, seq: l.queueSeq})
}

// removeQueuedLocked drops id from the queue.
func (l *Loader) removeQueuedLocked(id string) {
	for i, q := range l.queue {
		if q.id == id {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// QueueLen returns the number of queued preloads.
func (l *Loader) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain dispatches queued preloads, highest score first (FIFO on ties),
// without exceeding the effective concurrency. Dispatched loads run on their
// own goroutines; Drain returns how many it started.
func (l *Loader) Drain(ctx context.Context) int {
	l.mu.Lock()
	inFlight := len(l.loading) + len(l.preloading)
	slots := l.effectiveLocked() - inFlight
	if slots <= 0 || len(l.queue) == 0 {
		l.mu.Unlock()
		return 0
	}

	sort.SliceStable(l.queue, func(i, j int) bool {
		if l.queue[i].score != l.queue[j].score {
			return l.queue[i].score > l.queue[j].score
		}
		return l.queue[i].seq < l.queue[j].seq
	})

	n := slots
	if n > len(l.queue) {
		n = len(l.queue)
	}
	batch := make([]string, n)
	for i := 0; i < n; i++ {
		batch[i] = l.queue[i].id
	}
	l.queue = append(l.queue[:0], l.queue[n:]...)
	l.mu.Unlock()

	for _, id := range batch {
		go func(id string) {
			// Queue-driven loads are speculative; failures surface
			// through the failed set and the event bus.
			_, _ = l.Load(ctx, id, LoadOptions{Preload: true})
		}(id)
	}
	return n
}

// Start drains the queue on a fixed interval until ctx is done.
func (l *Loader) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Drain(ctx)
			}
		}
	}()
}

// schedulePreloads queues the next preloadDistance sections in registration
// order after id.
func (l *Loader) schedulePreloads(id string) {
	l.mu.Lock()
	dist := l.preloadDist
	if l.pressured {
		dist = 0
	}
	var upcoming []Metadata
	if dist > 0 {
		idx := -1
		for i, v := range l.order {
			if v == id {
				idx = i
				break
			}
		}
		if idx >= 0 {
			for i := idx + 1; i <= idx+dist && i < len(l.order); i++ {
				upcoming = append(upcoming, *l.meta[l.order[i]])
			}
		}
	}
	l.mu.Unlock()

	for _, m := range upcoming {
		l.enqueue(m.ID, scoreFor(m))
	}
}

// NotifyViewport reports that a section is approaching the viewport; it
// queues sections with the viewport preload trigger.
func (l *Loader) NotifyViewport(id string) {
	l.mu.Lock()
	m, ok := l.meta[id]
	trigger := TriggerViewport
	var meta Metadata
	if ok {
		trigger = m.PreloadTrigger
		meta = *m
	}
	l.mu.Unlock()

	if ok && trigger == TriggerViewport {
		l.enqueue(id, scoreFor(meta))
	}
}

// NotifyInteraction queues a section whose trigger is interaction.
func (l *Loader) NotifyInteraction(id string) {
	l.mu.Lock()
	m, ok := l.meta[id]
	var meta Metadata
	if ok {
		meta = *m
	}
	l.mu.Unlock()

	if ok && meta.PreloadTrigger == TriggerInteraction {
		l.enqueue(id, scoreFor(meta))
	}
}

// NotifyIdle queues every idle-trigger section that is not yet loaded.
func (l *Loader) NotifyIdle() {
	l.mu.Lock()
	var idle []Metadata
	for _, id := range l.order {
		m := l.meta[id]
		if m.PreloadTrigger == TriggerIdle {
			idle = append(idle, *m)
		}
	}
	l.mu.Unlock()

	for _, m := range idle {
		l.enqueue(m.ID, scoreFor(m))
	}
}

// SetNetworkQuality adapts concurrency and preload distance to the
// connection. Slow connections drop to serial loading with minimal
// lookahead; fast restores the configured values.
func (l *Loader) SetNetworkQuality(q Quality) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch q {
	case QualitySlow:
		l.effective = 1
		l.preloadDist = min(1, l.basePreload)
	case QualityModerate:
		l.effective = max(1, l.maxConcurrent/2)
		l.preloadDist = max(1, l.basePreload/2)
	default:
		l.effective = l.maxConcurrent
		l.preloadDist = l.basePreload
	}
}

// SetMemoryPressure pauses preload scheduling and halves dispatch
// concurrency while the host is under memory pressure; existing loads are
// untouched.
func (l *Loader) SetMemoryPressure(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pressured = on
}

func (l *Loader) effectiveLocked() int {
	if l.pressured {
		return max(1, l.effective/2)
	}
	return l.effective
}

// EffectiveConcurrency returns the current dispatch bound.
func (l *Loader) EffectiveConcurrency() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effectiveLocked()
}

// PreloadDistance returns the current lookahead.
func (l *Loader) PreloadDistance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pressured {
		return 0
	}
	return l.preloadDist
}
