// ABOUTME: Superuser command pack mutating and querying the block-list store
// ABOUTME: Dispatches the first word of a message to a registered handler

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/2389/blockgate/internal/audit"
	"github.com/2389/blockgate/internal/blocklist"
	"github.com/2389/blockgate/internal/confirm"
	"github.com/2389/blockgate/internal/event"
	"github.com/2389/blockgate/internal/ident"
)

// usageNumeric is the validation reply for malformed identifier
// arguments. Validation happens before any mutation; a bad identifier
// anywhere in a batch rejects the whole batch.
const usageNumeric = "arguments must be numeric ids"

// Roster lists the identities known to the transport, for the bulk
// block/unblock commands.
type Roster interface {
	GroupIDs(ctx context.Context) ([]string, error)
	FriendIDs(ctx context.Context) ([]string, error)
}

// Auditor appends entries to the audit ledger. May be nil.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Invocation is one command attempt, already tokenized and with
// mentioned users resolved by the transport layer.
type Invocation struct {
	SelfID          string
	UserID          string
	GroupID         string
	IsGroup         bool
	ConversationKey string
	Args            []string
	Mentions        []string
}

// Handler runs one command and returns the reply text.
type Handler func(ctx context.Context, inv *Invocation) (string, error)

// Command is a registered command with its aliases.
type Command struct {
	Name    string
	Aliases []string
	Help    string
	// NeedsGroup marks shortcut commands that only make sense inside
	// the group they act on.
	NeedsGroup bool
	Handler    Handler
}

// Pack owns the command table and the pending reset confirmations.
type Pack struct {
	store      *blocklist.Store
	confirms   *confirm.Tracker
	roster     Roster
	auditor    Auditor
	superusers map[string]struct{}
	logger     *slog.Logger
	byName     map[string]*Command
}

// New builds the command pack. roster and auditor may be nil; bulk
// commands report the missing capability instead of acting.
func New(store *blocklist.Store, confirms *confirm.Tracker, roster Roster, auditor Auditor, superusers []string, logger *slog.Logger) *Pack {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pack{
		store:      store,
		confirms:   confirms,
		roster:     roster,
		auditor:    auditor,
		superusers: make(map[string]struct{}, len(superusers)),
		logger:     logger.With("component", "commands"),
		byName:     make(map[string]*Command),
	}
	for _, id := range superusers {
		p.superusers[id] = struct{}{}
	}
	for _, cmd := range p.table() {
		p.byName[cmd.Name] = cmd
		for _, alias := range cmd.Aliases {
			p.byName[alias] = cmd
		}
	}
	return p
}

// table returns every registered command.
func (p *Pack) table() []*Command {
	return []*Command{
		{Name: "block-user", Aliases: []string{"ban-user"}, Help: "block-user <id>...", Handler: p.mutateList(blocklist.OpAdd, blocklist.ListUser)},
		{Name: "unblock-user", Aliases: []string{"unban-user"}, Help: "unblock-user <id>...", Handler: p.mutateList(blocklist.OpRemove, blocklist.ListUser)},
		{Name: "block-group", Aliases: []string{"ban-group"}, Help: "block-group <id>...", Handler: p.mutateList(blocklist.OpAdd, blocklist.ListGroup)},
		{Name: "unblock-group", Aliases: []string{"unban-group"}, Help: "unblock-group <id>...", Handler: p.mutateList(blocklist.OpRemove, blocklist.ListGroup)},
		{Name: "block-private", Help: "block-private <id>...", Handler: p.mutateList(blocklist.OpAdd, blocklist.ListPrivate)},
		{Name: "unblock-private", Help: "unblock-private <id>...", Handler: p.mutateList(blocklist.OpRemove, blocklist.ListPrivate)},
		{Name: "block-all-groups", Handler: p.bulk(blocklist.OpAdd, blocklist.ListGroup)},
		{Name: "unblock-all-groups", Handler: p.bulk(blocklist.OpRemove, blocklist.ListGroup)},
		{Name: "block-all-friends", Handler: p.bulk(blocklist.OpAdd, blocklist.ListUser)},
		{Name: "unblock-all-friends", Handler: p.bulk(blocklist.OpRemove, blocklist.ListUser)},
		{Name: "blacklist", Aliases: []string{"blacklist-status"}, Help: "blacklist [self-id]", Handler: p.status},
		{Name: "private-on", Handler: p.togglePrivate(true)},
		{Name: "private-off", Handler: p.togglePrivate(false)},
		{Name: "autosleep-on", Handler: p.toggleAutoSleep(true)},
		{Name: "autosleep-off", Handler: p.toggleAutoSleep(false)},
		{Name: "reset-blacklist", Help: "reset-blacklist [self-id]...", Handler: p.resetTenants},
		{Name: "reset-all-blacklists", Handler: p.resetAll},
		{Name: "sleep", NeedsGroup: true, Handler: p.sleepHere},
		{Name: "wake", NeedsGroup: true, Handler: p.wakeHere},
	}
}

// superuser reports whether the user may invoke commands.
func (p *Pack) superuser(userID string) bool {
	_, ok := p.superusers[userID]
	return ok
}

// HandleMessage consumes a message event that has already passed the
// gate. It returns the reply text and whether the message was handled.
// A pending reset confirmation in the same conversation consumes the
// reply first; otherwise the first word selects a command. Messages
// from non-superusers are never handled.
func (p *Pack) HandleMessage(ctx context.Context, ev *event.Event) (string, bool) {
	if !p.superuser(ev.UserID) {
		return "", false
	}

	if p.confirms.Pending(ev.ConversationKey()) {
		return p.resolveConfirmation(ctx, ev), true
	}

	fields := strings.Fields(ev.Text)
	if len(fields) == 0 {
		return "", false
	}
	cmd, ok := p.byName[fields[0]]
	if !ok {
		return "", false
	}
	if cmd.NeedsGroup && !ev.IsGroup() {
		return fmt.Sprintf("%s only works inside a group", cmd.Name), true
	}

	inv := &Invocation{
		SelfID:          ev.SelfID,
		UserID:          ev.UserID,
		GroupID:         ev.GroupID,
		IsGroup:         ev.IsGroup(),
		ConversationKey: ev.ConversationKey(),
		Args:            fields[1:],
		Mentions:        ev.Mentions,
	}

	reply, err := cmd.Handler(ctx, inv)
	if err != nil {
		p.logger.Error("command failed", "command", cmd.Name, "self_id", ev.SelfID, "error", err)
		return fmt.Sprintf("%s failed: %v", cmd.Name, err), true
	}
	return reply, true
}

// collectIDs validates and canonicalizes the identifiers supplied via
// arguments and mentions. The second return value is a usage reply
// when the input is unusable; nothing is mutated in that case.
func collectIDs(inv *Invocation) ([]string, string) {
	tokens := append([]string{}, inv.Args...)
	tokens = append(tokens, inv.Mentions...)
	if len(tokens) == 0 {
		return nil, "usage: supply one or more numeric ids (or mention users)"
	}

	seen := make(map[string]struct{}, len(tokens))
	ids := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !ident.Valid(tok) {
			return nil, usageNumeric
		}
		id := ident.Canonical(tok)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, ""
}

// mutateList builds the handler for one op/list pair.
func (p *Pack) mutateList(op blocklist.Op, list blocklist.List) Handler {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		ids, usage := collectIDs(inv)
		if usage != "" {
			return usage, nil
		}
		return p.applyMutation(ctx, inv, op, list, ids)
	}
}

// bulk builds the handler for roster-wide block/unblock commands.
func (p *Pack) bulk(op blocklist.Op, list blocklist.List) Handler {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		if p.roster == nil {
			return "roster queries are not available on this transport", nil
		}

		var ids []string
		var err error
		if list == blocklist.ListGroup {
			ids, err = p.roster.GroupIDs(ctx)
		} else {
			ids, err = p.roster.FriendIDs(ctx)
		}
		if err != nil {
			return "", fmt.Errorf("listing roster: %w", err)
		}
		if len(ids) == 0 {
			return "roster is empty, nothing to do", nil
		}
		return p.applyMutation(ctx, inv, op, list, ids)
	}
}

// applyMutation runs one persisted mutation and records it.
func (p *Pack) applyMutation(ctx context.Context, inv *Invocation, op blocklist.Op, list blocklist.List, ids []string) (string, error) {
	summary, err := p.store.Mutate(inv.SelfID, op, list, ids)
	if err != nil {
		return "", err
	}
	p.audit(ctx, audit.Entry{
		SelfID: inv.SelfID,
		Actor:  inv.UserID,
		Action: auditAction(op),
		List:   list.String(),
		IDs:    ids,
	})
	return fmt.Sprintf("%s: %s", summary.String(), strings.Join(ids, ", ")), nil
}

func auditAction(op blocklist.Op) string {
	if op == blocklist.OpRemove {
		return audit.ActionUnblock
	}
	return audit.ActionBlock
}

// status reports the block-lists and settings for a tenant, defaulting
// to the invoking bot identity.
func (p *Pack) status(_ context.Context, inv *Invocation) (string, error) {
	selfID := inv.SelfID
	if len(inv.Args) > 0 {
		if !ident.Valid(inv.Args[0]) {
			return usageNumeric, nil
		}
		selfID = ident.Canonical(inv.Args[0])
	}

	rec, err := p.store.GetOrCreate(selfID)
	if err != nil {
		return "", err
	}

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "blacklist for %s\n", selfID)
	fmt.Fprintf(&b, "groups (%d): %s\n", len(rec.Groups), joinSet(rec.Groups))
	fmt.Fprintf(&b, "users (%d): %s\n", len(rec.Users), joinSet(rec.Users))
	fmt.Fprintf(&b, "private (%d): %s\n", len(rec.Private), joinSet(rec.Private))
	fmt.Fprintf(&b, "private responses: %s\n", onOff(rec.PrivateEnabled))
	fmt.Fprintf(&b, "auto-sleep: %s", onOff(rec.AutoSleepEnabled))
	return b.String(), nil
}

func joinSet(set map[string]struct{}) string {
	if len(set) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

func (p *Pack) togglePrivate(enabled bool) Handler {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		if err := p.store.SetPrivateEnabled(inv.SelfID, enabled); err != nil {
			return "", err
		}
		p.audit(ctx, audit.Entry{
			SelfID: inv.SelfID, Actor: inv.UserID,
			Action: audit.ActionToggle, Detail: fmt.Sprintf("private_enabled=%t", enabled),
		})
		if enabled {
			return "private conversations will be answered", nil
		}
		return "private conversations are now ignored", nil
	}
}

func (p *Pack) toggleAutoSleep(enabled bool) Handler {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		if err := p.store.SetAutoSleep(inv.SelfID, enabled); err != nil {
			return "", err
		}
		p.audit(ctx, audit.Entry{
			SelfID: inv.SelfID, Actor: inv.UserID,
			Action: audit.ActionToggle, Detail: fmt.Sprintf("auto_sleep=%t", enabled),
		})
		if enabled {
			return "auto-sleep enabled", nil
		}
		return "auto-sleep disabled", nil
	}
}

// resetTenants freezes the target tenant set and asks for confirmation.
// Targets come from the arguments, falling back to the invoking bot
// identity.
func (p *Pack) resetTenants(_ context.Context, inv *Invocation) (string, error) {
	targets := []string{inv.SelfID}
	if len(inv.Args) > 0 {
		ids, usage := collectIDs(inv)
		if usage != "" {
			return usage, nil
		}
		targets = ids
	}

	p.confirms.Begin(inv.ConversationKey, confirm.Target{SelfIDs: targets})
	return fmt.Sprintf("reset the blacklist for %s? reply y/yes/true to confirm", strings.Join(targets, ", ")), nil
}

// resetAll freezes an all-tenant reset and asks for confirmation.
func (p *Pack) resetAll(_ context.Context, inv *Invocation) (string, error) {
	p.confirms.Begin(inv.ConversationKey, confirm.Target{All: true})
	return fmt.Sprintf("reset ALL %d tenant blacklist(s)? reply y/yes/true to confirm", p.store.Count()), nil
}

// resolveConfirmation consumes the next reply after a reset prompt and
// performs the frozen reset on an affirmative answer.
func (p *Pack) resolveConfirmation(ctx context.Context, ev *event.Event) string {
	target, state := p.confirms.Resolve(ev.ConversationKey(), ev.Text)
	switch state {
	case confirm.StateCancelled:
		return "reset cancelled, nothing changed"
	case confirm.StateCommitted:
	default:
		return ""
	}

	var removed int
	if target.All {
		count, err := p.store.ClearAll()
		if err != nil {
			p.logger.Error("all-tenant reset failed", "error", err)
			return fmt.Sprintf("reset failed: %v", err)
		}
		removed = count
	} else {
		for _, selfID := range target.SelfIDs {
			existed, err := p.store.Remove(selfID)
			if err != nil {
				p.logger.Error("tenant reset failed", "self_id", selfID, "error", err)
				return fmt.Sprintf("reset failed: %v", err)
			}
			if existed {
				removed++
			}
		}
	}

	p.audit(ctx, audit.Entry{
		SelfID: ev.SelfID, Actor: ev.UserID,
		Action: audit.ActionReset, Detail: fmt.Sprintf("removed=%d all=%t", removed, target.All),
	})
	return fmt.Sprintf("removed %d tenant record(s)", removed)
}

// sleepHere blocks the group the command was issued in.
func (p *Pack) sleepHere(ctx context.Context, inv *Invocation) (string, error) {
	if _, err := p.applyMutation(ctx, inv, blocklist.OpAdd, blocklist.ListGroup, []string{inv.GroupID}); err != nil {
		return "", err
	}
	return "going to sleep here, wake me with \"wake\"", nil
}

// wakeHere unblocks the group the command was issued in. The wake
// command itself is only seen because its sender is a superuser, who
// bypasses the gate.
func (p *Pack) wakeHere(ctx context.Context, inv *Invocation) (string, error) {
	if _, err := p.applyMutation(ctx, inv, blocklist.OpRemove, blocklist.ListGroup, []string{inv.GroupID}); err != nil {
		return "", err
	}
	return "awake again", nil
}

// audit appends a ledger entry, logging instead of failing the command
// when the ledger is unavailable.
func (p *Pack) audit(ctx context.Context, entry audit.Entry) {
	if p.auditor == nil {
		return
	}
	if err := p.auditor.Record(ctx, entry); err != nil {
		p.logger.Warn("audit write failed", "error", err)
	}
}
