package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"aura-storefront/internal/cart"
)

// State is a step of the client checkout flow.
type State int

const (
	Idle State = iota
	Submitting
	Redirecting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Redirecting:
		return "redirecting"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidTransition  = errors.New("invalid checkout transition")
)

// Flow is the Idle → Submitting → Redirecting | Failed state machine around
// a Bridge. Redirecting is terminal. Failed returns to Idle on Acknowledge.
// The cart is never modified.
type Flow struct {
	bridge *Bridge

	mu      sync.Mutex
	state   State
	err     error
	session *Session
}

func NewFlow(b *Bridge) *Flow {
	return &Flow{bridge: b}
}

// Submit starts a checkout for the given lines. It fails with
// ErrCheckoutInProgress while another Submit is running.
func (f *Flow) Submit(ctx context.Context, lines []cart.Line) (*Session, error) {
	f.mu.Lock()
	switch f.state {
	case Submitting:
		f.mu.Unlock()
		return nil, ErrCheckoutInProgress
	case Idle:
	default:
		st := f.state
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, st)
	}
	f.state = Submitting
	f.mu.Unlock()

	sess, err := f.bridge.Begin(ctx, lines)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = Failed
		f.err = err
		return nil, err
	}
	f.state = Redirecting
	f.session = sess
	return sess, nil
}

// Acknowledge clears a failure so the user can try again.
func (f *Flow) Acknowledge() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Failed {
		return fmt.Errorf("%w: acknowledge from %s", ErrInvalidTransition, f.state)
	}
	f.state = Idle
	f.err = nil
	return nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the failure that moved the flow to Failed.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Session returns the checkout session once the flow is Redirecting.
func (f *Flow) Session() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}
