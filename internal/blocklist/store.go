// ABOUTME: Tenant store backed by a single JSON document on disk
// ABOUTME: Lazy per-tenant schema migration, atomic persistence, snapshot reads

package blocklist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// Store maps bot identities to their block-list records. All mutations
// are serialized by a store-wide lock and persisted synchronously before
// the in-memory state is committed, so memory and disk never diverge on
// a failed write. Reads go through an atomically swapped snapshot and
// never block on the write lock.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	// tenants holds migrated records in canonical form. Records are
	// immutable once published; mutations clone and replace.
	tenants map[string]*Record

	// raw holds tenants loaded from disk that no event or command has
	// referenced yet. They keep their original on-disk bytes until
	// first use, when they are reconciled and rewritten canonically.
	raw map[string]json.RawMessage

	// legacy seeds new tenants when the document on disk predates
	// per-tenant records (a flat {grouplist, userlist} object).
	legacy *Record

	snap atomic.Pointer[map[string]*Record]
}

// legacyDoc is the oldest on-disk shape: one flat pair of lists shared
// by every bot identity.
type legacyDoc struct {
	GroupList []string `json:"grouplist"`
	UserList  []string `json:"userlist"`
}

// legacySeedKey is the reserved document key the flat legacy lists are
// carried under once the document is rewritten in tenant form. It can
// never collide with a tenant: identities are numeric.
const legacySeedKey = "__legacy_seed__"

// Load reads the block-list document at path and returns a ready store.
// A missing or empty file yields an empty store. A document that cannot
// be parsed is an error; the caller must not serve the gate without
// known state.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tenants := make(map[string]*Record)
	s := &Store{
		path:    path,
		logger:  logger.With("component", "blocklist"),
		tenants: tenants,
		raw:     make(map[string]json.RawMessage),
	}
	s.snap.Store(&tenants)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading block-list document: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing block-list document %s: %w", path, err)
	}

	if isLegacyDoc(doc) {
		var legacy legacyDoc
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("parsing legacy block-list document %s: %w", path, err)
		}
		seed := NewRecord()
		for _, id := range legacy.GroupList {
			seed.Groups[id] = struct{}{}
		}
		for _, id := range legacy.UserList {
			seed.Users[id] = struct{}{}
		}
		s.legacy = seed
		s.logger.Info("loaded legacy flat block-list document",
			"groups", len(seed.Groups), "users", len(seed.Users))
		return s, nil
	}

	if rawSeed, ok := doc[legacySeedKey]; ok {
		seed, _, err := reconcile(rawSeed)
		if err != nil {
			return nil, fmt.Errorf("parsing legacy seed in %s: %w", path, err)
		}
		s.legacy = seed
		delete(doc, legacySeedKey)
	}

	// Validate every tenant object up front so a corrupt document is
	// rejected at startup rather than on first reference.
	for selfID, rawRec := range doc {
		var probe recordDoc
		if err := json.Unmarshal(rawRec, &probe); err != nil {
			return nil, fmt.Errorf("parsing tenant %s in %s: %w", selfID, path, err)
		}
		s.raw[selfID] = rawRec
	}

	s.logger.Info("block-list document loaded", "path", path, "tenants", len(s.raw))
	return s, nil
}

// isLegacyDoc reports whether the top-level object is the flat
// pre-tenant shape: grouplist/userlist keys holding arrays instead of
// selfId keys holding objects.
func isLegacyDoc(doc map[string]json.RawMessage) bool {
	for _, key := range []string{"grouplist", "userlist"} {
		if raw, ok := doc[key]; ok && len(raw) > 0 && raw[0] == '[' {
			return true
		}
	}
	return false
}

// GetOrCreate returns the record for selfID, creating it with defaults
// on first reference and back-filling any fields missing from an older
// on-disk shape. The returned record is immutable.
//
// When back-fill or creation requires a persist and the write fails,
// the reconciled record is still returned alongside the error so the
// gate can decide on best-effort state; the store commits nothing.
func (s *Store) GetOrCreate(selfID string) (*Record, error) {
	if rec, ok := (*s.snap.Load())[selfID]; ok {
		return rec, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.tenants[selfID]; ok {
		return rec, nil
	}

	if rawRec, ok := s.raw[selfID]; ok {
		rec, backfilled, err := reconcile(rawRec)
		if err != nil {
			return nil, fmt.Errorf("reconciling tenant %s: %w", selfID, err)
		}
		if !backfilled {
			// Already complete: adopt into the canonical map without
			// touching disk.
			s.publishLocked(selfID, rec)
			return rec, nil
		}
		if err := s.commitLocked(selfID, rec); err != nil {
			return rec, err
		}
		s.logger.Info("tenant record migrated", "self_id", selfID)
		return rec, nil
	}

	rec := s.seedLocked()
	if err := s.commitLocked(selfID, rec); err != nil {
		return rec, err
	}
	s.logger.Info("tenant record created", "self_id", selfID)
	return rec, nil
}

// Remove deletes the record for selfID and reports whether it existed.
// Removing an unknown tenant is a no-op, not an error.
func (s *Store) Remove(selfID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, inTenants := s.tenants[selfID]
	_, inRaw := s.raw[selfID]
	if !inTenants && !inRaw {
		return false, nil
	}

	tenants := cloneMapWithout(s.tenants, selfID)
	raw := cloneRawWithout(s.raw, selfID)
	if err := s.persistLocked(tenants, raw, s.legacy); err != nil {
		return true, err
	}
	s.tenants = tenants
	s.raw = raw
	s.snap.Store(&tenants)
	return true, nil
}

// ClearAll removes every tenant record and returns the count removed.
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.tenants) + len(s.raw)
	tenants := make(map[string]*Record)
	raw := make(map[string]json.RawMessage)
	if err := s.persistLocked(tenants, raw, nil); err != nil {
		return 0, err
	}
	s.tenants = tenants
	s.raw = raw
	s.legacy = nil
	s.snap.Store(&tenants)
	return count, nil
}

// Update applies fn to a clone of the tenant's record, persists, and
// commits. The tenant is created first if absent. On a failed persist
// the in-memory state is left untouched and the error returned.
func (s *Store) Update(selfID string, fn func(*Record)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.resolveLocked(selfID)
	if err != nil {
		return nil, err
	}
	fn(rec)
	if err := s.commitLocked(selfID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetPrivateEnabled toggles whether the tenant responds to private
// conversations at all.
func (s *Store) SetPrivateEnabled(selfID string, enabled bool) error {
	_, err := s.Update(selfID, func(r *Record) { r.PrivateEnabled = enabled })
	return err
}

// SetAutoSleep toggles the auto-sleep reaction for the tenant.
func (s *Store) SetAutoSleep(selfID string, enabled bool) error {
	_, err := s.Update(selfID, func(r *Record) { r.AutoSleepEnabled = enabled })
	return err
}

// TenantIDs returns every known tenant identity, sorted.
func (s *Store) TenantIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tenants)+len(s.raw))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	for id := range s.raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of known tenants.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tenants) + len(s.raw)
}

// Snapshot returns the current read-only view of migrated tenant
// records. Callers must not modify the returned map or records.
func (s *Store) Snapshot() map[string]*Record {
	return *s.snap.Load()
}

// resolveLocked returns a mutable clone of the tenant's record, paging
// it in from the raw document or creating it as needed.
func (s *Store) resolveLocked(selfID string) (*Record, error) {
	if rec, ok := s.tenants[selfID]; ok {
		return rec.clone(), nil
	}
	if rawRec, ok := s.raw[selfID]; ok {
		rec, _, err := reconcile(rawRec)
		if err != nil {
			return nil, fmt.Errorf("reconciling tenant %s: %w", selfID, err)
		}
		return rec, nil
	}
	return s.seedLocked(), nil
}

// seedLocked builds the record for a newly observed tenant: defaults,
// or a copy of the legacy flat lists when the document predates
// per-tenant records.
func (s *Store) seedLocked() *Record {
	if s.legacy != nil {
		return s.legacy.clone()
	}
	return NewRecord()
}

// commitLocked persists the store with rec in place for selfID, then
// publishes the new state. Persist failures leave memory unchanged.
func (s *Store) commitLocked(selfID string, rec *Record) error {
	tenants := cloneMapWithout(s.tenants, selfID)
	tenants[selfID] = rec
	raw := cloneRawWithout(s.raw, selfID)
	if err := s.persistLocked(tenants, raw, s.legacy); err != nil {
		return err
	}
	s.tenants = tenants
	s.raw = raw
	s.snap.Store(&tenants)
	return nil
}

// publishLocked swaps rec into the canonical map without persisting.
// Used when adopting an already-complete raw record: the on-disk form
// is semantically identical, so no write is owed.
func (s *Store) publishLocked(selfID string, rec *Record) {
	tenants := cloneMapWithout(s.tenants, selfID)
	tenants[selfID] = rec
	s.tenants = tenants
	delete(s.raw, selfID)
	s.snap.Store(&tenants)
}

// persistLocked writes the full document atomically: marshal to a
// temporary file in the same directory, then rename over the target.
// A failed write never leaves a partially written document behind.
func (s *Store) persistLocked(tenants map[string]*Record, raw map[string]json.RawMessage, legacy *Record) error {
	doc := make(map[string]any, len(tenants)+len(raw)+1)
	for selfID, rawRec := range raw {
		doc[selfID] = rawRec
	}
	for selfID, rec := range tenants {
		doc[selfID] = rec.encode()
	}
	if legacy != nil {
		doc[legacySeedKey] = legacy.encode()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding block-list document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating block-list directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing block-list document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing block-list document: %w", err)
	}
	return nil
}

func cloneMapWithout(m map[string]*Record, selfID string) map[string]*Record {
	out := make(map[string]*Record, len(m))
	for id, rec := range m {
		if id == selfID {
			continue
		}
		out[id] = rec
	}
	return out
}

func cloneRawWithout(m map[string]json.RawMessage, selfID string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for id, rec := range m {
		if id == selfID {
			continue
		}
		out[id] = rec
	}
	return out
}
