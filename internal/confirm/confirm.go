// ABOUTME: Pending-confirmation tracker keyed by conversation
// ABOUTME: One suspension point per conversation, with timeout expiry

package confirm

import (
	"strings"
	"sync"
	"time"
)

// State is the terminal outcome of resolving a reply against a pending
// confirmation.
type State int

const (
	// StateNone means no confirmation was pending for the conversation.
	StateNone State = iota
	// StateCommitted means the reply was affirmative; the caller must
	// now perform the frozen destructive operation.
	StateCommitted
	// StateCancelled means the reply was anything else; nothing was
	// mutated and the pending confirmation is gone.
	StateCancelled
)

// Target is the tenant set frozen when a confirmation was requested.
type Target struct {
	// All selects every tenant; SelfIDs is ignored when set.
	All bool
	// SelfIDs are the tenant identities to reset.
	SelfIDs []string
}

type pending struct {
	target   Target
	deadline time.Time
}

// Tracker holds at most one pending confirmation per conversation. It
// keeps no state across restarts; a crash while awaiting a reply loses
// the prompt, which is safe because nothing has been mutated yet.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pending
	timeout time.Duration
	done    chan struct{}
	closed  bool

	now func() time.Time
}

// New creates a tracker whose pending confirmations expire after
// timeout. A background goroutine sweeps expired entries.
func New(timeout time.Duration) *Tracker {
	t := &Tracker{
		pending: make(map[string]*pending),
		timeout: timeout,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go t.sweep()
	return t
}

// Begin freezes the target for the conversation and starts awaiting
// the next reply. A previous pending confirmation in the same
// conversation is replaced.
func (t *Tracker) Begin(conversationKey string, target Target) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[conversationKey] = &pending{
		target:   target,
		deadline: t.now().Add(t.timeout),
	}
}

// Pending reports whether the conversation has a live confirmation
// awaiting a reply.
func (t *Tracker) Pending(conversationKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[conversationKey]
	return ok && t.now().Before(p.deadline)
}

// Resolve consumes the pending confirmation for the conversation, if
// any, against the reply text. Affirmative replies (y, yes, true;
// trimmed, case-insensitive) commit; anything else cancels. An expired
// or absent confirmation resolves to StateNone.
func (t *Tracker) Resolve(conversationKey, reply string) (Target, State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[conversationKey]
	if !ok {
		return Target{}, StateNone
	}
	delete(t.pending, conversationKey)

	if t.now().After(p.deadline) {
		return Target{}, StateNone
	}
	if affirmative(reply) {
		return p.target, StateCommitted
	}
	return p.target, StateCancelled
}

func affirmative(reply string) bool {
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "y", "yes", "true":
		return true
	}
	return false
}

// sweep drops expired confirmations so abandoned prompts do not pin
// their frozen targets forever.
func (t *Tracker) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			now := t.now()
			for key, p := range t.pending {
				if now.After(p.deadline) {
					delete(t.pending, key)
				}
			}
			t.mu.Unlock()
		case <-t.done:
			return
		}
	}
}

// Close stops the background sweep goroutine. Safe to call twice.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		close(t.done)
		t.closed = true
	}
}
