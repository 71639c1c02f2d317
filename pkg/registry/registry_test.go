package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartCancelsPrevious(t *testing.T) {
	r := New()

	first := r.Start(context.Background(), SlotCatalog)
	second := r.Start(context.Background(), SlotCatalog)

	assert.True(t, first.Cancelled())
	assert.False(t, second.Cancelled())
}

func TestRegistry_SlotsAreIndependent(t *testing.T) {
	r := New()

	catalog := r.Start(context.Background(), SlotCatalog)
	gas := r.Start(context.Background(), SlotGasPrice)
	r.Start(context.Background(), SlotGasPrice)

	assert.False(t, catalog.Cancelled())
	assert.True(t, gas.Cancelled())
}

func TestRegistry_RegisterSameHandleTwice(t *testing.T) {
	r := New()
	h := NewHandle(context.Background())

	r.Register(SlotRequest, h)
	r.Register(SlotRequest, h)

	assert.False(t, h.Cancelled())
}

func TestRegistry_Cancel(t *testing.T) {
	r := New()
	h := r.Start(context.Background(), SlotRateTimer)

	r.Cancel(SlotRateTimer)
	r.Cancel(SlotRateTimer)

	assert.True(t, h.Cancelled())
}

func TestRegistry_CancelAllIsIdempotent(t *testing.T) {
	r := New()
	handles := make([]*Handle, 0, len(Slots))
	for _, slot := range Slots {
		handles = append(handles, r.Start(context.Background(), slot))
	}

	r.CancelAll()
	r.CancelAll()

	for _, h := range handles {
		assert.True(t, h.Cancelled())
	}
	assert.True(t, r.Closed())
}

func TestRegistry_StartAfterCancelAll(t *testing.T) {
	r := New()
	r.CancelAll()

	h := r.Start(context.Background(), SlotRequest)

	assert.True(t, h.Cancelled())
	assert.True(t, r.Closed())
}

func TestRegistry_CancelPropagatesToChildren(t *testing.T) {
	r := New()
	timer := r.Start(context.Background(), SlotRateTimer)
	requests := r.Start(timer.Context(), SlotRateRequest)

	r.Cancel(SlotRateTimer)

	assert.True(t, requests.Cancelled())
}

func TestRegistry_Deliver(t *testing.T) {
	r := New()
	h := r.Start(context.Background(), SlotRequest)

	ran := r.Deliver(h, func() {})
	require.True(t, ran)

	r.Start(context.Background(), SlotRequest)
	called := false
	ran = r.Deliver(h, func() { called = true })

	assert.False(t, ran)
	assert.False(t, called)
}

func TestRegistry_DeliverAfterCancelAll(t *testing.T) {
	r := New()
	h := r.Start(context.Background(), SlotCatalog)
	r.CancelAll()

	called := false
	r.Deliver(h, func() { called = true })

	assert.False(t, called)
}

func TestRegistry_DeliverMayStartSameSlot(t *testing.T) {
	r := New()
	h := r.Start(context.Background(), SlotRequest)

	var next *Handle
	r.Deliver(h, func() {
		next = r.Start(context.Background(), SlotRequest)
	})

	require.NotNil(t, next)
	assert.False(t, next.Cancelled())
	assert.True(t, h.Cancelled())
}
