// ABOUTME: Auto-sleep reactor consuming mute notices for the bot itself
// ABOUTME: Blocks the muting group and notifies superusers with paced sends

package autosleep

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/2389/blockgate/internal/audit"
	"github.com/2389/blockgate/internal/blocklist"
	"github.com/2389/blockgate/internal/event"
)

// maxNotifyJitter caps the random delay before each superuser
// notification. Sends are sequential; the jitter keeps them under the
// transport's outbound flood threshold.
const maxNotifyJitter = 2 * time.Second

// Notifier delivers direct messages to users. Implemented by the
// transport client.
type Notifier interface {
	SendPrivate(ctx context.Context, userID, text string) error
}

// Auditor appends entries to the audit ledger. May be nil.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Reactor consumes mute notices and mutates the block-list through the
// same store API the manual commands use.
type Reactor struct {
	store      *blocklist.Store
	notifier   Notifier
	auditor    Auditor
	superusers []string
	logger     *slog.Logger

	// jitter and sleep are split out for tests.
	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

// New builds a reactor. auditor may be nil to skip ledger entries.
func New(store *blocklist.Store, notifier Notifier, auditor Auditor, superusers []string, logger *slog.Logger) *Reactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactor{
		store:      store,
		notifier:   notifier,
		auditor:    auditor,
		superusers: superusers,
		logger:     logger.With("component", "autosleep"),
		jitter:     func() time.Duration { return rand.N(maxNotifyJitter) },
		sleep:      sleepCtx,
	}
}

// HandleMuteNotice processes one mute notice. Notices not addressed to
// the bot itself, or with a zero duration (a lifted mute), are ignored.
// When the tenant has auto-sleep disabled the notice is logged and
// nothing is mutated.
func (r *Reactor) HandleMuteNotice(ctx context.Context, ev *event.Event) error {
	if ev.Kind != event.KindMuteNotice {
		return nil
	}
	if ev.TargetID != ev.SelfID || ev.Duration <= 0 {
		r.logger.Debug("mute notice ignored",
			"self_id", ev.SelfID, "target_id", ev.TargetID, "duration", ev.Duration)
		return nil
	}

	rec, err := r.store.GetOrCreate(ev.SelfID)
	if err != nil && rec == nil {
		return fmt.Errorf("loading tenant %s: %w", ev.SelfID, err)
	}
	if !rec.AutoSleepEnabled {
		r.logger.Info("auto-sleep disabled, mute notice observed only",
			"self_id", ev.SelfID, "group_id", ev.GroupID)
		return nil
	}

	if _, err := r.store.Mutate(ev.SelfID, blocklist.OpAdd, blocklist.ListGroup, []string{ev.GroupID}); err != nil {
		return fmt.Errorf("blocking muted group %s: %w", ev.GroupID, err)
	}

	r.logger.Info("auto-sleep engaged",
		"self_id", ev.SelfID, "group_id", ev.GroupID, "duration", ev.Duration)

	if r.auditor != nil {
		entry := audit.Entry{
			SelfID: ev.SelfID,
			Actor:  "system",
			Action: audit.ActionAutoSleep,
			List:   blocklist.ListGroup.String(),
			IDs:    []string{ev.GroupID},
			Detail: fmt.Sprintf("muted for %s", ev.Duration),
		}
		if err := r.auditor.Record(ctx, entry); err != nil {
			r.logger.Warn("audit write failed", "error", err)
		}
	}

	text := fmt.Sprintf("Bot %s was muted in group %s for %s; the group has been blocked.",
		ev.SelfID, ev.GroupID, ev.Duration)
	for _, superuser := range r.superusers {
		r.sleep(ctx, r.jitter())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.notifier.SendPrivate(ctx, superuser, text); err != nil {
			// Keep notifying the rest; one failed send is not fatal.
			r.logger.Warn("superuser notification failed", "user_id", superuser, "error", err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
