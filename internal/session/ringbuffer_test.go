package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_DropsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Append("a")
	rb.Append("b")
	rb.Append("c")
	rb.Append("d")

	assert.True(t, rb.Overflow())
	items := rb.Drain()
	require.Equal(t, []any{"b", "c", "d"}, items)
}

func TestRingBuffer_DrainClearsBuffer(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Append(1)
	rb.Append(2)

	items := rb.Drain()
	assert.Len(t, items, 2)
	assert.Equal(t, 0, rb.Len())
}

func TestRingBuffer_ClearDiscardsWithoutReturning(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Append(1)
	rb.Append(2)
	rb.overflow = true

	rb.Clear()
	assert.Equal(t, 0, rb.Len())
	assert.False(t, rb.Overflow())
}
