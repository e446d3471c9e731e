package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces rapid events per path before they reach the sync
// service. Sequences within one window merge:
//
//	CREATE + MODIFY = CREATE
//	CREATE + DELETE = dropped
//	MODIFY + DELETE = DELETE
//	DELETE + CREATE = MODIFY (file replaced)
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*trackedEvent
	timer   *time.Timer
	output  chan []Event
	stopped bool
}

type trackedEvent struct {
	event   Event
	firstOp Op
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*trackedEvent),
		output:  make(chan []Event, 8),
	}
}

func (d *debouncer) add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(existing.firstOp, ev)
		if !keep {
			delete(d.pending, ev.Path)
		} else {
			existing.event = merged
		}
	} else {
		d.pending[ev.Path] = &trackedEvent{event: ev, firstOp: ev.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges a new event into a pending one. keep=false means the
// pair cancelled out.
func coalesce(firstOp Op, next Event) (merged Event, keep bool) {
	switch firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return Event{Path: next.Path, Op: OpCreate}, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if next.Op == OpCreate {
			return Event{Path: next.Path, Op: OpModify}, true
		}
	}
	return next, true
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, te := range d.pending {
		batch = append(batch, te.event)
	}
	d.pending = make(map[string]*trackedEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("watcher debounce buffer full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
