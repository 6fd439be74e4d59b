package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetState_EqualToEqualSuppressesEmit(t *testing.T) {
	m := NewManager(nil)
	m.SetState(Valid)

	var calls int
	m.AddListener(func(Status) { calls++ })

	m.SetState(Valid)
	assert.Equal(t, 0, calls)

	m.SetState(Interrupted)
	assert.Equal(t, 1, calls)
}

func TestSetState_InterruptedDuringInitializingStaysInitializing(t *testing.T) {
	m := NewManager(nil)

	var received []Status
	m.AddListener(func(s Status) { received = append(received, s) })

	m.SetState(Interrupted)
	assert.Empty(t, received)
	assert.Equal(t, Initializing, m.CurrentStatus().State)

	m.SetState(Valid)
	assert.Len(t, received, 1)
	assert.Equal(t, Valid, received[0].State)
}

func TestSetStateWithError_RecordsErrorEvenWithoutTransition(t *testing.T) {
	m := NewManager(nil)
	m.SetState(Valid)

	m.SetStateWithError(Valid, &LastError{Kind: ErrNetworkError, Message: "timeout"})

	status := m.CurrentStatus()
	assert.Equal(t, Valid, status.State)
	assert.NotNil(t, status.LastError)
	assert.Equal(t, ErrNetworkError, status.LastError.Kind)
}

func TestAddListener_RemoveStopsNotifications(t *testing.T) {
	m := NewManager(nil)
	var count int
	remove := m.AddListener(func(Status) { count++ })

	m.SetState(Valid)
	assert.Equal(t, 1, count)

	remove()
	m.SetState(Off)
	assert.Equal(t, 1, count)
}

func TestStateSince_UpdatesOnlyOnChange(t *testing.T) {
	m := NewManager(nil)
	fixed := time.Unix(1000, 0)
	m.now = func() time.Time { return fixed }
	m.SetState(Valid)
	first := m.CurrentStatus().StateSince
	assert.Equal(t, fixed, first)

	m.now = func() time.Time { return fixed.Add(time.Hour) }
	m.SetState(Valid)
	assert.Equal(t, first, m.CurrentStatus().StateSince)

	m.SetState(Off)
	assert.Equal(t, fixed.Add(time.Hour), m.CurrentStatus().StateSince)
}
