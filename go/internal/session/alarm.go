package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// alarm is the room's single one-shot wake-up. It is owned by the actor
// goroutine and never touched concurrently. Every arm bumps the generation,
// so a fire that raced with a re-arm can be recognised as stale.
type alarm struct {
	clock clockwork.Clock
	fire  func(gen uint64)

	timer    clockwork.Timer
	stop     chan struct{}
	deadline time.Time
	gen      uint64
}

func newAlarm(clock clockwork.Clock, fire func(gen uint64)) *alarm {
	return &alarm{clock: clock, fire: fire}
}

// arm schedules a wake-up at deadline, replacing any pending one.
// Re-arming for the deadline already pending is a no-op.
func (a *alarm) arm(deadline time.Time) {
	if a.timer != nil && a.deadline.Equal(deadline) {
		return
	}
	a.cancel()

	a.gen++
	gen := a.gen
	d := deadline.Sub(a.clock.Now())
	if d < 0 {
		d = 0
	}
	timer := a.clock.NewTimer(d)
	stop := make(chan struct{})
	a.timer, a.stop, a.deadline = timer, stop, deadline

	go func() {
		select {
		case <-timer.Chan():
			a.fire(gen)
		case <-stop:
		}
	}()
}

// cancel stops the pending wake-up, if any.
func (a *alarm) cancel() {
	if a.timer == nil {
		return
	}
	stopAndDrainTimer(a.timer)
	close(a.stop)
	a.timer, a.stop, a.deadline = nil, nil, time.Time{}
}

// current reports whether gen belongs to the pending wake-up. A current
// fire clears the slot so the next arm always schedules.
func (a *alarm) current(gen uint64) bool {
	if a.timer == nil || gen != a.gen {
		return false
	}
	close(a.stop)
	a.timer, a.stop, a.deadline = nil, nil, time.Time{}
	return true
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
