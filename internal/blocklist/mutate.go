// ABOUTME: Mutation API for adding and removing block-list identifiers
// ABOUTME: Set semantics: add absorbs duplicates, remove is idempotent

package blocklist

import "fmt"

// Summary describes one applied mutation. Count is the number of
// identifiers supplied by the caller, not the net change to the set.
type Summary struct {
	SelfID string
	Op     Op
	List   List
	IDs    []string
	Count  int
}

// String renders the summary for operator replies and audit entries.
func (m Summary) String() string {
	verb := "Blocked"
	if m.Op == OpRemove {
		verb = "Unblocked"
	}
	return fmt.Sprintf("%s %d %s id(s)", verb, m.Count, m.List)
}

// Mutate applies op to the tenant's target list for every supplied
// identifier, creating the tenant first if needed, and persists before
// committing. Duplicates in an add are absorbed; removals of absent
// identifiers are ignored.
func (s *Store) Mutate(selfID string, op Op, list List, ids []string) (Summary, error) {
	summary := Summary{SelfID: selfID, Op: op, List: list, IDs: ids, Count: len(ids)}

	_, err := s.Update(selfID, func(r *Record) {
		set := r.set(list)
		for _, id := range ids {
			if op == OpAdd {
				set[id] = struct{}{}
			} else {
				delete(set, id)
			}
		}
	})
	if err != nil {
		return Summary{}, err
	}

	s.logger.Info("block-list mutated",
		"self_id", selfID, "op", op.String(), "list", list.String(), "count", len(ids))
	return summary, nil
}
