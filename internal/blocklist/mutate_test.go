package blocklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutate_AddIsIdempotentUnion(t *testing.T) {
	s, _ := setupTestStore(t)

	first, err := s.Mutate("100", OpAdd, ListUser, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)

	again, err := s.Mutate("100", OpAdd, ListUser, []string{"1", "2"})
	require.NoError(t, err)
	// Count reports supplied identifiers, not net-new entries.
	assert.Equal(t, 2, again.Count)

	rec, err := s.GetOrCreate("100")
	require.NoError(t, err)
	assert.Len(t, rec.Users, 2)
}

func TestMutate_RemoveAbsentIsNoop(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Mutate("100", OpAdd, ListGroup, []string{"10"})
	require.NoError(t, err)

	sum, err := s.Mutate("100", OpRemove, ListGroup, []string{"10", "999"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)

	rec, err := s.GetOrCreate("100")
	require.NoError(t, err)
	assert.Empty(t, rec.Groups)
}

func TestMutate_CreatesTenantImplicitly(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Mutate("100", OpRemove, ListUser, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count())
}

func TestMutate_ListsAreSeparate(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Mutate("100", OpAdd, ListUser, []string{"1"})
	require.NoError(t, err)
	_, err = s.Mutate("100", OpAdd, ListPrivate, []string{"2"})
	require.NoError(t, err)

	rec, err := s.GetOrCreate("100")
	require.NoError(t, err)
	assert.Contains(t, rec.Users, "1")
	assert.NotContains(t, rec.Users, "2")
	assert.Contains(t, rec.Private, "2")
	assert.NotContains(t, rec.Private, "1")
}

func TestSummaryString(t *testing.T) {
	add := Summary{Op: OpAdd, List: ListUser, Count: 3}
	assert.Equal(t, "Blocked 3 user id(s)", add.String())

	rm := Summary{Op: OpRemove, List: ListGroup, Count: 1}
	assert.Equal(t, "Unblocked 1 group id(s)", rm.String())
}
