package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetBeforeSet(t *testing.T) {
	var v Value[int]

	got, ok := v.Get()
	assert.False(t, ok)
	assert.Equal(t, 0, got)
}

func TestValue_SetNotifiesInOrder(t *testing.T) {
	var v Value[string]
	var calls []string

	v.Subscribe(func(s string) { calls = append(calls, "a:"+s) })
	v.Subscribe(func(s string) { calls = append(calls, "b:"+s) })

	v.Set("x")
	v.Set("y")

	assert.Equal(t, []string{"a:x", "b:x", "a:y", "b:y"}, calls)

	got, ok := v.Get()
	require.True(t, ok)
	assert.Equal(t, "y", got)
}

func TestValue_SubscribeReplaysLastValue(t *testing.T) {
	var v Value[int]
	v.Set(1)
	v.Set(2)

	var got []int
	v.Subscribe(func(i int) { got = append(got, i) })

	assert.Equal(t, []int{2}, got)
}

func TestValue_Unsubscribe(t *testing.T) {
	var v Value[int]
	count := 0

	unsubscribe := v.Subscribe(func(int) { count++ })
	v.Set(1)
	unsubscribe()
	v.Set(2)

	assert.Equal(t, 1, count)
}

func TestValue_SubscriberMaySetOtherValue(t *testing.T) {
	var a, b Value[int]
	a.Subscribe(func(i int) { b.Set(i * 10) })

	a.Set(4)

	got, ok := b.Get()
	require.True(t, ok)
	assert.Equal(t, 40, got)
}
