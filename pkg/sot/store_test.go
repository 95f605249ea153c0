package sot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	s := New()

	v, err := s.Put("x", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	b, gotV, err := s.Get("x")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
	assert.Equal(t, uint64(1), gotV)
}

func TestGetAbsentReturnsErrAbsent(t *testing.T) {
	s := New()
	_, _, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestVersionNeverDecreases(t *testing.T) {
	s := New()
	var last uint64
	for i := 0; i < 20; i++ {
		v, err := s.Put("x", []byte{byte(i)})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, last)
		assert.Greater(t, v, last)
		last = v
	}
}

func TestDeleteResetsVersionToZero(t *testing.T) {
	s := New()
	_, err := s.Put("x", []byte("v"))
	require.NoError(t, err)

	require.NoError(t, s.Delete("x"))
	assert.Equal(t, uint64(0), s.VersionOf("x"))

	_, _, err = s.Get("x")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestClearIsIdempotent(t *testing.T) {
	s := New()
	_, _ = s.Put("a", []byte("1"))
	_, _ = s.Put("b", []byte("2"))

	s.Clear()
	namesAfterFirst := s.SnapshotNames()
	globalAfterFirst := s.GlobalVersion()

	s.Clear()
	assert.Equal(t, namesAfterFirst, s.SnapshotNames())
	assert.Empty(t, s.SnapshotNames())
	assert.Greater(t, s.GlobalVersion(), globalAfterFirst)
}

func TestSnapshotNamesIsSortedAndStable(t *testing.T) {
	s := New()
	for _, n := range []string{"zeta", "alpha", "mike"} {
		_, _ = s.Put(n, []byte("v"))
	}
	assert.Equal(t, []string{"alpha", "mike", "zeta"}, s.SnapshotNames())
}

// TestConcurrentPutsToDifferentNamesDoNotBlock has many goroutines
// Put to distinct names at once and asserts nothing races or
// deadlocks and every entry lands.
func TestConcurrentPutsToDifferentNamesDoNotBlock(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e"}

	for _, n := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := s.Put(name, []byte{byte(i)})
				assert.NoError(t, err)
			}
		}(n)
	}
	wg.Wait()

	for _, n := range names {
		_, v, err := s.Get(n)
		require.NoError(t, err)
		assert.Greater(t, v, uint64(0))
	}
}
