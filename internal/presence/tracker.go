// Package presence decides when a disconnected identity has really left.
//
// A disconnect arms a one-shot grace timer. The timer itself never touches
// shared state: it hands an Expiry back to the owner's event loop, which
// calls Expire. Stale expiries (the identity reconnected, disconnected
// again, or is already gone) are no-ops, so timers never need to be
// cancelled for correctness.
package presence

import (
	"time"

	"codeberg.org/anonchat/server/internal/identity"
)

// default delay between a disconnect and a confirmed departure
const DefaultGracePeriod = 5 * time.Minute

// the part of the identity registry the tracker relies on
type Registry interface {
	EvictIfStillOffline(number int) bool
	ListOnline() []int
}

// a pending one-shot timer
type Timer interface {
	Stop() bool
}

// runs fn once after d
type Scheduler func(d time.Duration, fn func()) Timer

// posted back into the event loop when a grace timer fires
type Expiry struct {
	Number     int
	Generation uint64
}

type pending struct {
	generation uint64
	timer      Timer
}

// not safe for concurrent use, except that notify is invoked from timer goroutines
type Tracker struct {
	registry   Registry
	grace      time.Duration
	schedule   Scheduler
	notify     func(Expiry)
	pending    map[int]pending
	generation uint64
}

// creates a tracker. notify is called from the timer goroutine and must only
// hand the expiry over to the event loop
func NewTracker(registry Registry, grace time.Duration, notify func(Expiry)) *Tracker {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	return &Tracker{
		registry: registry,
		grace:    grace,
		schedule: afterFunc,
		notify:   notify,
		pending:  make(map[int]pending),
	}
}

func afterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// replaces the timer source, used by tests
func (t *Tracker) SetScheduler(s Scheduler) {
	t.schedule = s
}

func (t *Tracker) GracePeriod() time.Duration {
	return t.grace
}

// arms the departure check for an identity that just went offline.
// an earlier timer for the same number becomes stale
func (t *Tracker) OnDisconnect(id identity.Identity) {
	t.stop(id.Number)

	t.generation++
	expiry := Expiry{Number: id.Number, Generation: t.generation}

	timer := t.schedule(t.grace, func() {
		t.notify(expiry)
	})

	t.pending[id.Number] = pending{generation: expiry.Generation, timer: timer}
}

// drops the pending check for an identity that came back.
// a timer that already fired is still harmless
func (t *Tracker) OnReconnect(number int) {
	t.stop(number)
}

// handles a fired timer on the event loop.
// returns true when the identity was evicted and a departure should be announced
func (t *Tracker) Expire(e Expiry) bool {
	p, ok := t.pending[e.Number]
	if !ok || p.generation != e.Generation {
		return false
	}

	delete(t.pending, e.Number)

	return t.registry.EvictIfStillOffline(e.Number)
}

// the broadcastable online list, ascending
func (t *Tracker) Online() []int {
	return t.registry.ListOnline()
}

// number of armed departure checks
func (t *Tracker) Pending() int {
	return len(t.pending)
}

// stops every pending timer, used on shutdown
func (t *Tracker) StopAll() {
	for number := range t.pending {
		t.stop(number)
	}
}

func (t *Tracker) stop(number int) {
	p, ok := t.pending[number]
	if !ok {
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}

	delete(t.pending, number)
}
