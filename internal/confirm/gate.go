package confirm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCodeMismatch means the confirming identity is not the one the action
// belongs to.
var ErrCodeMismatch = errors.New("confirmation code does not match")

// Window is how long an armed action stays live before it has to be armed
// again.
const Window = 5 * time.Second

// Outcome of a trigger press.
type Outcome int

const (
	// Armed means the press recorded intent and the next press within the
	// window will execute.
	Armed Outcome = iota
	// Executed means the press confirmed a pending action and it was
	// dispatched.
	Executed
)

type Result struct {
	Outcome Outcome
	// Deadline is when the armed action expires. Zero when Outcome is
	// Executed.
	Deadline time.Time
}

// Action dispatches the confirmed state change.
type Action func(ctx context.Context) error

type pendingKey struct {
	publicCode string
	action     string
}

// Gate makes destructive actions two-press: the first press arms, a second
// press on the same (order, action) pair within the window executes. A late
// second press arms again instead of executing. Each pair keeps its own
// window, so arming a cancel never confirms a hand-off.
type Gate struct {
	now func() time.Time

	mu      sync.Mutex
	pending map[pendingKey]time.Time
}

func NewGate() *Gate {
	return &Gate{
		now:     time.Now,
		pending: make(map[pendingKey]time.Time),
	}
}

// Trigger presses the gate for one (order, action) pair. When the pair is
// armed and inside the window, run is called exactly once and the pair is
// disarmed before dispatch, so a third press starts over even if run fails.
func (g *Gate) Trigger(ctx context.Context, publicCode, action string, run Action) (Result, error) {
	key := pendingKey{publicCode: publicCode, action: action}

	g.mu.Lock()
	now := g.now()
	armedAt, armed := g.pending[key]
	if !armed || now.Sub(armedAt) > Window {
		g.pending[key] = now
		g.mu.Unlock()
		return Result{Outcome: Armed, Deadline: now.Add(Window)}, nil
	}
	delete(g.pending, key)
	g.mu.Unlock()

	if err := run(ctx); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Executed}, nil
}

// TriggerWithCode is Trigger with an identity check at confirmation time. On
// a mismatch nothing runs and the armed state is left untouched, so the
// holder of the right code can still confirm inside the window.
func (g *Gate) TriggerWithCode(ctx context.Context, publicCode, action, presented, expected string, run Action) (Result, error) {
	if presented != expected {
		return Result{}, ErrCodeMismatch
	}
	return g.Trigger(ctx, publicCode, action, run)
}

// Disarm drops any pending press for the pair.
func (g *Gate) Disarm(publicCode, action string) {
	g.mu.Lock()
	delete(g.pending, pendingKey{publicCode: publicCode, action: action})
	g.mu.Unlock()
}
