package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoComputesOnce(t *testing.T) {
	t.Parallel()

	m := NewMemo[uint64, uint64]()
	calls := 0
	compute := func() (uint64, error) {
		calls++
		return 42, nil
	}

	for range 3 {
		v, err := m.Get(7, compute)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Size())
}

func TestMemoKeysAreIndependent(t *testing.T) {
	t.Parallel()

	m := NewMemo[string, int]()
	_, _ = m.Get("a", func() (int, error) { return 1, nil })
	v, err := m.Get("b", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, ok := m.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMemoErrorNotCached(t *testing.T) {
	t.Parallel()

	m := NewMemo[string, int]()
	boom := errors.New("boom")
	_, err := m.Get("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, m.Size())

	v, err := m.Get("k", func() (int, error) { return 5, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestMemoInvalidation(t *testing.T) {
	t.Parallel()

	m := NewMemo[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	m.Delete("a")
	_, ok := m.Peek("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Size())

	m.Clear()
	assert.Zero(t, m.Size())

	calls := 0
	_, _ = m.Get("b", func() (int, error) { calls++; return 3, nil })
	assert.Equal(t, 1, calls)
}

func TestMemoConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewMemo[int, int]()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Get(i%4, func() (int, error) { return i % 4, nil })
			if i%5 == 0 {
				m.Clear()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Size(), 4)
}
