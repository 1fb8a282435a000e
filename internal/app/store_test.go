package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsertRefusesOccupiedKey(t *testing.T) {
	s := NewStore[string, int]("test")
	require.True(t, s.Insert("a", 1))
	require.False(t, s.Insert("a", 2))

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestStoreReplaceReturnsPrevious(t *testing.T) {
	s := NewStore[string, int]("test")
	_, had := s.Replace("a", 1)
	assert.False(t, had)

	old, had := s.Replace("a", 2)
	assert.True(t, had)
	assert.Equal(t, 1, old)
	assert.Len(t, s.Snapshot(), 1)
}

func TestStoreRemoveIfAndWhere(t *testing.T) {
	s := NewStore[string, int]("test")
	s.Insert("a", 1)
	s.Insert("b", 2)
	s.Insert("c", 3)

	_, ok := s.RemoveIf("a", func(v int) bool { return v == 9 })
	assert.False(t, ok)
	_, ok = s.RemoveIf("a", func(v int) bool { return v == 1 })
	assert.True(t, ok)

	removed := s.RemoveWhere(func(_ string, v int) bool { return v > 2 })
	assert.Equal(t, map[string]int{"c": 3}, removed)
	assert.Equal(t, map[string]int{"b": 2}, s.Snapshot())

	drained := s.Drain()
	assert.Len(t, drained, 1)
	assert.Empty(t, s.Snapshot())
}
