// ABOUTME: Decision engine that allows or denies pipeline continuation
// ABOUTME: Fixed precedence: superuser bypass, group block, user block, private rule

package blocklist

import (
	"log/slog"

	"github.com/2389/blockgate/internal/event"
)

// Deny reasons reported by the gate.
const (
	ReasonBlockedGroup   = "blocked group"
	ReasonBlockedUser    = "blocked user"
	ReasonBlockedPrivate = "blocked private conversation"
	ReasonNoTenantState  = "tenant state unavailable"
)

// Verdict is the gate's answer for one event. A denied event is simply
// dropped by the dispatcher; no reply is sent, so a blocked actor never
// learns the gate's state.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func deny(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Gate evaluates event projections against tenant records and the
// superuser set. It never returns an error: a decision is always made,
// on best-effort state if the store cannot persist a lazy migration.
type Gate struct {
	store      *Store
	superusers map[string]struct{}
	logger     *slog.Logger
}

// NewGate builds a gate over the store for the configured superusers.
func NewGate(store *Store, superusers []string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(superusers))
	for _, id := range superusers {
		set[id] = struct{}{}
	}
	return &Gate{
		store:      store,
		superusers: set,
		logger:     logger.With("component", "gate"),
	}
}

// IsSuperuser reports whether the user is exempt from every block check.
func (g *Gate) IsSuperuser(userID string) bool {
	_, ok := g.superusers[userID]
	return ok
}

// Decide evaluates the projection in fixed precedence order. Superusers
// always pass; group events are checked against the group block-set,
// then the actor against the user block-set; private events fall to the
// user block-set and finally the private rule, which denies whenever
// private responses are disabled for the tenant or the actor is in the
// private block-set.
func (g *Gate) Decide(p event.Projection) Verdict {
	if g.IsSuperuser(p.UserID) {
		return allow()
	}

	rec, err := g.store.GetOrCreate(p.SelfID)
	if err != nil {
		if rec == nil {
			// No record to evaluate; deny rather than bypass the rules.
			g.logger.Error("no tenant record for decision", "self_id", p.SelfID, "error", err)
			return deny(ReasonNoTenantState)
		}
		g.logger.Warn("deciding on unpersisted tenant record", "self_id", p.SelfID, "error", err)
	}

	if p.IsGroup {
		if _, blocked := rec.Groups[p.GroupID]; blocked {
			g.logger.Debug("event denied", "self_id", p.SelfID, "group_id", p.GroupID, "reason", ReasonBlockedGroup)
			return deny(ReasonBlockedGroup)
		}
	}

	if _, blocked := rec.Users[p.UserID]; blocked {
		g.logger.Debug("event denied", "self_id", p.SelfID, "user_id", p.UserID, "reason", ReasonBlockedUser)
		return deny(ReasonBlockedUser)
	}

	if !p.IsGroup {
		if _, blocked := rec.Private[p.UserID]; !rec.PrivateEnabled || blocked {
			g.logger.Debug("event denied", "self_id", p.SelfID, "user_id", p.UserID, "reason", ReasonBlockedPrivate)
			return deny(ReasonBlockedPrivate)
		}
	}

	return allow()
}
