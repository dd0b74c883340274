// ABOUTME: Tenant record type, its defaults, and schema reconciliation
// ABOUTME: Records map to the on-disk per-tenant JSON object

package blocklist

import (
	"encoding/json"
	"sort"
)

// List selects which block-set a mutation targets.
type List int

const (
	// ListGroup is the set of blocked group identifiers.
	ListGroup List = iota
	// ListUser is the set of blocked user identifiers.
	ListUser
	// ListPrivate is the set of users blocked in private conversations.
	ListPrivate
)

// String returns the list name for logging and summaries.
func (l List) String() string {
	switch l {
	case ListGroup:
		return "group"
	case ListUser:
		return "user"
	case ListPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Op selects whether identifiers are added to or removed from a list.
type Op int

const (
	// OpAdd unions identifiers into the target set.
	OpAdd Op = iota
	// OpRemove subtracts identifiers from the target set.
	OpRemove
)

// String returns the operation name for logging and summaries.
func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "add"
}

// Record is one tenant's block-lists and settings. Records published
// through the store snapshot are immutable; mutations go through the
// store, which clones before changing anything.
type Record struct {
	Groups  map[string]struct{}
	Users   map[string]struct{}
	Private map[string]struct{}

	// PrivateEnabled false means every private conversation is denied,
	// regardless of the private block-set.
	PrivateEnabled bool

	// AutoSleepEnabled governs the auto-sleep reaction to mute notices.
	AutoSleepEnabled bool
}

// NewRecord returns a record with default settings and empty sets.
func NewRecord() *Record {
	return &Record{
		Groups:           make(map[string]struct{}),
		Users:            make(map[string]struct{}),
		Private:          make(map[string]struct{}),
		PrivateEnabled:   false,
		AutoSleepEnabled: true,
	}
}

// set returns the block-set for the given list.
func (r *Record) set(list List) map[string]struct{} {
	switch list {
	case ListGroup:
		return r.Groups
	case ListUser:
		return r.Users
	default:
		return r.Private
	}
}

// clone returns a deep copy of the record.
func (r *Record) clone() *Record {
	c := &Record{
		Groups:           make(map[string]struct{}, len(r.Groups)),
		Users:            make(map[string]struct{}, len(r.Users)),
		Private:          make(map[string]struct{}, len(r.Private)),
		PrivateEnabled:   r.PrivateEnabled,
		AutoSleepEnabled: r.AutoSleepEnabled,
	}
	for id := range r.Groups {
		c.Groups[id] = struct{}{}
	}
	for id := range r.Users {
		c.Users[id] = struct{}{}
	}
	for id := range r.Private {
		c.Private[id] = struct{}{}
	}
	return c
}

// recordDoc is the canonical on-disk shape of a tenant record. Bool
// fields are pointers so absent keys in older documents are
// distinguishable from explicit false.
type recordDoc struct {
	Private      *bool    `json:"private"`
	PrivList     []string `json:"privlist"`
	GroupList    []string `json:"grouplist"`
	UserList     []string `json:"userlist"`
	BanAutoSleep *bool    `json:"ban_auto_sleep"`
}

// reconcile builds a Record from an on-disk tenant object, back-filling
// defaults for any missing fields. It reports whether anything was
// missing, so the caller knows the migrated form must be persisted.
func reconcile(raw json.RawMessage) (*Record, bool, error) {
	var doc recordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}

	rec := NewRecord()
	backfilled := false

	if doc.GroupList == nil {
		backfilled = true
	}
	for _, id := range doc.GroupList {
		rec.Groups[id] = struct{}{}
	}
	if doc.UserList == nil {
		backfilled = true
	}
	for _, id := range doc.UserList {
		rec.Users[id] = struct{}{}
	}
	if doc.PrivList == nil {
		backfilled = true
	}
	for _, id := range doc.PrivList {
		rec.Private[id] = struct{}{}
	}
	if doc.Private == nil {
		backfilled = true
	} else {
		rec.PrivateEnabled = *doc.Private
	}
	if doc.BanAutoSleep == nil {
		backfilled = true
	} else {
		rec.AutoSleepEnabled = *doc.BanAutoSleep
	}

	return rec, backfilled, nil
}

// encode returns the canonical on-disk form of the record, with every
// field present and the block-sets sorted for stable output.
func (r *Record) encode() recordDoc {
	private := r.PrivateEnabled
	autoSleep := r.AutoSleepEnabled
	return recordDoc{
		Private:      &private,
		PrivList:     sortedIDs(r.Private),
		GroupList:    sortedIDs(r.Groups),
		UserList:     sortedIDs(r.Users),
		BanAutoSleep: &autoSleep,
	}
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
