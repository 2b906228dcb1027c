// Package breaker implements per-lane circuit breaking: consecutive-failure
// accounting with closed/open/half-open states and cooldown-based reopen.
package breaker

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/fathomsearch/fathom/internal/lane"
)

// State is the circuit state of a single lane.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Decision is the outcome of Before.
type Decision int

const (
	Admit Decision = iota
	Reject
)

// Settings holds the per-lane breaker thresholds.
type Settings struct {
	MaxFailures int
	Cooldown    time.Duration
}

// Transition is reported to the optional callback whenever a lane's
// circuit state changes.
type Transition struct {
	Lane lane.ID
	From State
	To   State
}

// laneState is the mutable circuit state for one lane, guarded by mu.
type laneState struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probing             bool // half-open: one in-flight probe max
}

// Breaker tracks circuit state for every lane. Shared across requests;
// all state reads and writes happen under the per-lane mutex.
type Breaker struct {
	states   *xsync.Map[lane.ID, *laneState]
	settings map[lane.ID]Settings

	// now is injectable for tests.
	now func() time.Time

	// onTransition, if set, is called outside the per-lane lock after any
	// state change. Used to feed telemetry.
	onTransition func(Transition)
}

// Config configures a Breaker.
type Config struct {
	Settings     map[lane.ID]Settings
	OnTransition func(Transition)
	Now          func() time.Time // nil means time.Now
}

// New creates a Breaker with all lanes closed.
func New(cfg Config) *Breaker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	b := &Breaker{
		states:       xsync.NewMap[lane.ID, *laneState](),
		settings:     cfg.Settings,
		now:          now,
		onTransition: cfg.OnTransition,
	}
	for id := range cfg.Settings {
		b.states.Store(id, &laneState{state: Closed})
	}
	return b
}

// Before decides whether a call to the lane may proceed. In Open it
// rejects until the cooldown has elapsed, then transitions to HalfOpen
// and admits exactly one probe; concurrent callers in HalfOpen are
// rejected until the probe reports.
func (b *Breaker) Before(id lane.ID) Decision {
	st := b.stateFor(id)
	cfg := b.settings[id]

	st.mu.Lock()
	var tr *Transition
	var decision Decision

	switch st.state {
	case Closed:
		decision = Admit
	case Open:
		if b.now().Sub(st.openedAt) >= cfg.Cooldown {
			tr = &Transition{Lane: id, From: Open, To: HalfOpen}
			st.state = HalfOpen
			st.probing = true
			decision = Admit
		} else {
			decision = Reject
		}
	case HalfOpen:
		if st.probing {
			decision = Reject
		} else {
			st.probing = true
			decision = Admit
		}
	}
	st.mu.Unlock()

	b.notify(tr)
	return decision
}

// OnSuccess records a successful lane call. A half-open probe success
// closes the circuit; in Closed it resets the failure streak.
func (b *Breaker) OnSuccess(id lane.ID) {
	st := b.stateFor(id)

	st.mu.Lock()
	var tr *Transition
	if st.state == HalfOpen {
		tr = &Transition{Lane: id, From: HalfOpen, To: Closed}
		st.state = Closed
	}
	st.consecutiveFailures = 0
	st.probing = false
	st.mu.Unlock()

	b.notify(tr)
}

// OnFailure records a failed lane call (timeouts count the same as
// errors). A half-open probe failure reopens immediately; in Closed the
// circuit opens once the streak reaches MaxFailures.
func (b *Breaker) OnFailure(id lane.ID) {
	st := b.stateFor(id)
	cfg := b.settings[id]

	st.mu.Lock()
	var tr *Transition
	st.consecutiveFailures++
	st.probing = false

	switch st.state {
	case HalfOpen:
		tr = &Transition{Lane: id, From: HalfOpen, To: Open}
		st.state = Open
		st.openedAt = b.now()
	case Closed:
		if cfg.MaxFailures > 0 && st.consecutiveFailures >= cfg.MaxFailures {
			tr = &Transition{Lane: id, From: Closed, To: Open}
			st.state = Open
			st.openedAt = b.now()
		}
	}
	st.mu.Unlock()

	b.notify(tr)
}

// StateOf returns the current circuit state of a lane.
func (b *Breaker) StateOf(id lane.ID) State {
	st := b.stateFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// ConsecutiveFailures returns the current failure streak of a lane.
func (b *Breaker) ConsecutiveFailures(id lane.ID) int {
	st := b.stateFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.consecutiveFailures
}

func (b *Breaker) stateFor(id lane.ID) *laneState {
	st, _ := b.states.LoadOrCompute(id, func() (*laneState, bool) {
		return &laneState{state: Closed}, false
	})
	return st
}

func (b *Breaker) notify(tr *Transition) {
	if tr != nil && b.onTransition != nil {
		b.onTransition(*tr)
	}
}
