package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHSetCountsNewFields(t *testing.T) {
	s := NewStore()

	n, err := s.HSet("h", "f1", "v1", "f2", "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.HSet("h", "f1", "V1", "f3", "v3")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	val, ok, err := s.HGet("h", "f1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "V1", val)

	_, err = s.HSet("h", "odd")
	assert.ErrorIs(t, err, ErrWrongNumArgs)
}

func TestHMGetMissingFieldsAreNil(t *testing.T) {
	s := NewStore()
	_, err := s.HSet("h", "f1", "v1")
	require.NoError(t, err)

	values, err := s.HMGet("h", "f1", "nope")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"v1", nil}, values)

	values, err = s.HMGet("missing", "f1", "f2")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, nil}, values)
}

func TestHDelEmptiesHash(t *testing.T) {
	s := NewStore()
	_, err := s.HSet("h", "f1", "v1", "f2", "v2")
	require.NoError(t, err)

	n, err := s.HDel("h", "f1", "f2", "ghost")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "none", s.Type("h"))

	length, err := s.HLen("h")
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestHGetAllPairs(t *testing.T) {
	s := NewStore()
	_, err := s.HSet("h", "a", "1", "b", "2")
	require.NoError(t, err)

	pairs, err := s.HGetAll("h")
	require.NoError(t, err)
	require.Len(t, pairs, 4)

	m := map[string]string{}
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
}

func TestHashWrongType(t *testing.T) {
	s := NewStore()
	s.Set("k", "v", nil)

	_, err := s.HSet("k", "f", "v")
	assert.ErrorIs(t, err, ErrWrongType)
	_, _, err = s.HGet("k", "f")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestSAddSRem(t *testing.T) {
	s := NewStore()

	n, err := s.SAdd("s", "a", "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.SIsMember("s", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	card, err := s.SCard("s")
	require.NoError(t, err)
	assert.Equal(t, 2, card)

	n, err = s.SRem("s", "a", "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.SRem("s", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "none", s.Type("s"))
}

func TestSetAlgebra(t *testing.T) {
	s := NewStore()
	_, err := s.SAdd("a", "1", "2", "3")
	require.NoError(t, err)
	_, err = s.SAdd("b", "2", "3", "4")
	require.NoError(t, err)

	inter, err := s.SInter("a", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "3"}, inter)

	union, err := s.SUnion("a", "b", "missing")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3", "4"}, union)

	diff, err := s.SDiff("a", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1"}, diff)

	// Intersection with a missing key is empty.
	inter, err = s.SInter("a", "missing")
	require.NoError(t, err)
	assert.Empty(t, inter)

	diff, err = s.SDiff("missing", "a")
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestSInterStore(t *testing.T) {
	s := NewStore()
	_, err := s.SAdd("a", "1", "2", "3")
	require.NoError(t, err)
	_, err = s.SAdd("b", "2", "3", "4")
	require.NoError(t, err)

	card, err := s.SInterStore("dst", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, card)

	members, err := s.SMembers("dst")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "3"}, members)

	// An empty result deletes the destination.
	card, err = s.SInterStore("dst", "a", "missing")
	require.NoError(t, err)
	assert.Zero(t, card)
	assert.Equal(t, "none", s.Type("dst"))
}

func TestSInterStoreOverwritesDest(t *testing.T) {
	s := NewStore()
	s.Set("dst", "old-string", nil)
	_, err := s.SAdd("a", "x")
	require.NoError(t, err)
	_, err = s.SAdd("b", "x")
	require.NoError(t, err)

	card, err := s.SInterStore("dst", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, card)
	assert.Equal(t, "set", s.Type("dst"))
}
