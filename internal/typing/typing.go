// Package typing implements the sender-side debounce and receiver-side
// state of typing signals.
package typing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdleTimeout is how long after the last input "stopped" is emitted.
const IdleTimeout = 2 * time.Second

// Debouncer turns a stream of key presses into one "started" signal per
// burst and one "stopped" signal after the idle interval.
type Debouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	emit   func(isTyping bool)
	timer  *time.Timer
	gen    uint64
	active bool
}

func NewDebouncer(idle time.Duration, emit func(isTyping bool)) *Debouncer {
	if idle <= 0 {
		idle = IdleTimeout
	}
	return &Debouncer{idle: idle, emit: emit}
}

// Input records activity and resets the idle timer.
func (d *Debouncer) Input() {
	d.mu.Lock()
	start := !d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.idle, func() { d.expire(gen) })
	d.mu.Unlock()

	if start {
		d.emit(true)
	}
}

// Stop ends the burst now, e.g. when the message is sent.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	wasActive := d.active
	d.active = false
	d.mu.Unlock()

	if wasActive {
		d.emit(false)
	}
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(false)
}

// Tracker holds who is typing, as seen by the receiving client. With a
// positive ttl a lost "stopped" signal clears itself.
type Tracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	typing map[uuid.UUID]time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		ttl:    ttl,
		now:    time.Now,
		typing: make(map[uuid.UUID]time.Time),
	}
}

func (t *Tracker) Set(userID uuid.UUID, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isTyping {
		t.typing[userID] = t.now()
	} else {
		delete(t.typing, userID)
	}
}

func (t *Tracker) IsTyping(userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.typing[userID]
	if !ok {
		return false
	}
	if t.ttl > 0 && t.now().Sub(since) > t.ttl {
		delete(t.typing, userID)
		return false
	}
	return true
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = make(map[uuid.UUID]time.Time)
}
