package bond

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBond_Transitions(t *testing.T) {
	s := New()
	_, ok := s.ChatID()
	assert.False(t, ok)

	require.NoError(t, s.Bond(42))
	assert.ErrorIs(t, s.Bond(42), ErrAlreadyBonded)
	assert.ErrorIs(t, s.Bond(7), ErrBondedElsewhere)

	id, ok := s.ChatID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.True(t, s.IsBondedTo(42))
	assert.False(t, s.IsBondedTo(7))
}

func TestBond_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if s.Bond(id) == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
