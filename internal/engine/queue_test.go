package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredQueue_Empty(t *testing.T) {
	q := newDeferredQueue()
	_, ok := q.PopDue(1 << 40)
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestDeferredQueue_OrdersByDueThenSeq(t *testing.T) {
	q := newDeferredQueue()
	q.Push(task{due: 300, seq: 1, ruleID: "c"})
	q.Push(task{due: 100, seq: 3, ruleID: "b"})
	q.Push(task{due: 100, seq: 2, ruleID: "a"})
	q.Push(task{due: 200, seq: 4, ruleID: "x"})

	var got []string
	for {
		tk, ok := q.PopDue(1000)
		if !ok {
			break
		}
		got = append(got, tk.ruleID)
	}
	assert.Equal(t, []string{"a", "b", "x", "c"}, got)
}

func TestDeferredQueue_OnlyDue(t *testing.T) {
	q := newDeferredQueue()
	q.Push(task{due: 100, seq: 1, ruleID: "early"})
	q.Push(task{due: 200, seq: 2, ruleID: "late"})

	tk, ok := q.PopDue(150)
	require.True(t, ok)
	assert.Equal(t, "early", tk.ruleID)

	_, ok = q.PopDue(150)
	assert.False(t, ok, "late task must wait")
	assert.Equal(t, 1, q.Len())

	tk, ok = q.PopDue(200)
	require.True(t, ok, "due time is inclusive")
	assert.Equal(t, "late", tk.ruleID)
}
