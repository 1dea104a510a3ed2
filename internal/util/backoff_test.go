package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second, 2, 0)

	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := NewBackoff(10*time.Second, time.Minute, 1, 0.2)
	for i := 0; i < 100; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}
