package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskctl/protocol"
)

// recordingSender records every line and can fail chosen sends
type recordingSender struct {
	mu    sync.Mutex
	lines []string
	// failOn returns an error for the given 1-based send number
	failOn func(n int, cmd protocol.Command) error
}

func (s *recordingSender) Send(cmd protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		if err := s.failOn(len(s.lines)+1, cmd); err != nil {
			return err
		}
	}
	s.lines = append(s.lines, cmd.String())
	return nil
}

func (s *recordingSender) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func testItems(n int) []CatalogItem {
	items := make([]CatalogItem, n)
	for i := range items {
		items[i] = CatalogItem{
			ID:    fmt.Sprintf("69%05d", i),
			Name:  fmt.Sprintf("Item %d", i),
			Price: Price(100 + i),
		}
	}
	return items
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSyncStateString(t *testing.T) {
	assert.Equal(t, "idle", SyncIdle.String())
	assert.Equal(t, "awaiting_erase", SyncAwaitingErase.String())
	assert.Equal(t, "transmitting", SyncTransmitting.String())
	assert.Equal(t, "complete", SyncComplete.String())
}

func TestSyncFullSession(t *testing.T) {
	sender := &recordingSender{}
	sink := &MemorySink{}

	var mu sync.Mutex
	var progress []SyncProgress
	c := NewSyncController(sender,
		WithRowDelay(0),
		WithSyncSink(sink),
		WithProgress(func(p SyncProgress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}))

	items := testItems(7)
	require.NoError(t, c.Begin(items))
	assert.Equal(t, SyncAwaitingErase, c.State())
	assert.Equal(t, []string{"CMD:SYNC_START,TOTAL:7"}, sender.Lines())

	st := c.Status()
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, 7, st.Total)
	assert.Zero(t, st.Cursor)

	require.NoError(t, c.Acknowledge())
	require.NoError(t, c.Wait(waitCtx(t)))
	assert.Equal(t, SyncComplete, c.State())

	want := []string{"CMD:SYNC_START,TOTAL:7"}
	for _, item := range items {
		want = append(want, fmt.Sprintf("CMD:SYNC_DATA,ID:%s,PR:%s,NM:%s", item.ID, item.Price, item.Name))
	}
	want = append(want, "CMD:SYNC_END,SUM:7")
	assert.Equal(t, want, sender.Lines())

	st = c.Status()
	assert.Equal(t, 7, st.Cursor)
	assert.NoError(t, st.LastErr)

	mu.Lock()
	assert.Equal(t, []SyncProgress{
		{SessionID: st.SessionID, Sent: 5, Total: 7},
		{SessionID: st.SessionID, Sent: 7, Total: 7},
	}, progress)
	mu.Unlock()

	assert.Contains(t, sink.Kinds(), LogSyncStarted)
	assert.Contains(t, sink.Kinds(), LogSyncComplete)

	require.NoError(t, c.AckComplete())
	assert.Equal(t, SyncIdle, c.State())
	assert.Empty(t, c.Status().SessionID)
}

func TestSyncPricesOnTheWire(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender, WithRowDelay(0))

	require.NoError(t, c.Begin([]CatalogItem{{ID: "A1", Name: "Water", Price: 250}}))
	require.NoError(t, c.Acknowledge())
	require.NoError(t, c.Wait(waitCtx(t)))

	assert.Equal(t, []string{
		"CMD:SYNC_START,TOTAL:1",
		"CMD:SYNC_DATA,ID:A1,PR:2.50,NM:Water",
		"CMD:SYNC_END,SUM:1",
	}, sender.Lines())
}

func TestSyncEmptyCatalog(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender, WithRowDelay(0))

	require.NoError(t, c.Begin(nil))
	require.NoError(t, c.Acknowledge())
	require.NoError(t, c.Wait(waitCtx(t)))
	assert.Equal(t, []string{"CMD:SYNC_START,TOTAL:0", "CMD:SYNC_END,SUM:0"}, sender.Lines())
}

func TestSyncBeginWhileActive(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender, WithRowDelay(time.Hour))

	require.NoError(t, c.Begin(testItems(3)))
	before := c.Status()

	err := c.Begin(testItems(9))
	require.ErrorIs(t, err, ErrSyncAlreadyInProgress)
	assert.Equal(t, KindSyncState, KindOf(err))
	assert.Equal(t, before, c.Status())
	assert.Len(t, sender.Lines(), 1)

	// Transmitting, parked in the row delay
	require.NoError(t, c.Acknowledge())
	require.Eventually(t, func() bool { return len(sender.Lines()) == 2 }, time.Second, time.Millisecond)
	before = c.Status()
	require.ErrorIs(t, c.Begin(testItems(1)), ErrSyncAlreadyInProgress)
	assert.Equal(t, before, c.Status())
	assert.Len(t, sender.Lines(), 2)

	require.NoError(t, c.Cancel())
}

func TestSyncBeginWhileActiveRejectsBeforeValidation(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender, WithRowDelay(time.Hour))

	require.NoError(t, c.Begin(testItems(2)))
	before := c.Status()

	err := c.Begin([]CatalogItem{{ID: "A"}, {ID: "A"}})
	require.ErrorIs(t, err, ErrSyncAlreadyInProgress)
	assert.NotErrorIs(t, err, ErrInvalidCatalog)
	assert.Equal(t, SyncAwaitingErase, c.State())
	assert.Equal(t, before, c.Status())
	assert.Len(t, sender.Lines(), 1)
}

func TestSyncBeginWhileComplete(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender, WithRowDelay(0))

	require.NoError(t, c.Begin(testItems(2)))
	require.NoError(t, c.Acknowledge())
	require.NoError(t, c.Wait(waitCtx(t)))

	require.ErrorIs(t, c.Begin(testItems(2)), ErrSyncAlreadyInProgress)
	require.NoError(t, c.AckComplete())
	require.NoError(t, c.Begin(testItems(2)))
}

func TestSyncBeginRejectsInvalidCatalog(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender)

	err := c.Begin([]CatalogItem{{ID: "A1"}, {ID: "A1"}})
	require.ErrorIs(t, err, ErrInvalidCatalog)
	assert.Empty(t, sender.Lines())
	assert.Equal(t, SyncIdle, c.State())
}

func TestSyncBeginSendFailure(t *testing.T) {
	sender := &recordingSender{failOn: func(int, protocol.Command) error { return protocol.ErrNotConnected }}
	c := NewSyncController(sender)

	err := c.Begin(testItems(2))
	require.ErrorIs(t, err, protocol.ErrNotConnected)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, SyncIdle, c.State())
}

func TestSyncAcknowledgeWithoutSession(t *testing.T) {
	c := NewSyncController(&recordingSender{})

	err := c.Acknowledge()
	require.ErrorIs(t, err, ErrNoSyncAwaiting)
	assert.Equal(t, SyncIdle, c.State())
}

func TestSyncConnectionLostMidTransmission(t *testing.T) {
	const total, k = 10, 3

	sender := &recordingSender{}
	sink := &MemorySink{}
	var c *SyncController
	c = NewSyncController(sender,
		WithRowDelay(0),
		WithProgressEvery(k),
		WithSyncSink(sink),
		WithProgress(func(p SyncProgress) {
			if p.Sent == k {
				c.ConnectionLost(errors.New("device unplugged"))
			}
		}))

	require.NoError(t, c.Begin(testItems(total)))
	require.NoError(t, c.Acknowledge())

	err := c.Wait(waitCtx(t))
	require.ErrorIs(t, err, ErrSyncAborted)
	assert.Equal(t, KindDeviceAbortedSync, KindOf(err))
	assert.Equal(t, SyncIdle, c.State())

	// Give a stray goroutine the chance to misbehave
	time.Sleep(20 * time.Millisecond)
	lines := sender.Lines()
	require.Len(t, lines, 1+k)
	for _, line := range lines[1:] {
		assert.Contains(t, line, "CMD:SYNC_DATA")
	}
	assert.Contains(t, sink.Kinds(), LogSyncAborted)
	assert.Equal(t, KindDeviceAbortedSync, KindOf(c.Status().LastErr))
}

func TestSyncConnectionLostWhileAwaitingErase(t *testing.T) {
	sender := &recordingSender{}
	c := NewSyncController(sender)

	require.NoError(t, c.Begin(testItems(4)))
	c.ConnectionLost(nil)

	assert.Equal(t, SyncIdle, c.State())
	require.ErrorIs(t, c.Acknowledge(), ErrNoSyncAwaiting)
	assert.Equal(t, []string{"CMD:SYNC_START,TOTAL:4"}, sender.Lines())
	assert.ErrorIs(t, c.Status().LastErr, protocol.ErrNotConnected)
}

func TestSyncConnectionLostWhenIdleOrComplete(t *testing.T) {
	c := NewSyncController(&recordingSender{}, WithRowDelay(0))
	c.ConnectionLost(nil)
	assert.Equal(t, SyncIdle, c.State())
	assert.NoError(t, c.Status().LastErr)

	require.NoError(t, c.Begin(testItems(1)))
	require.NoError(t, c.Acknowledge())
	require.NoError(t, c.Wait(waitCtx(t)))

	c.ConnectionLost(nil)
	assert.Equal(t, SyncIdle, c.State())
	assert.NoError(t, c.Status().LastErr, "a finished sync is not an abort")
}

func TestSyncSendFailureAborts(t *testing.T) {
	boom := errors.New("buffer full")
	sender := &recordingSender{failOn: func(n int, _ protocol.Command) error {
		if n == 4 {
			return boom
		}
		return nil
	}}
	c := NewSyncController(sender, WithRowDelay(0))

	require.NoError(t, c.Begin(testItems(6)))
	require.NoError(t, c.Acknowledge())

	err := c.Wait(waitCtx(t))
	require.ErrorIs(t, err, ErrSyncAborted)
	require.ErrorIs(t, err, boom)
	assert.Len(t, sender.Lines(), 3)
	assert.Equal(t, SyncIdle, c.State())
}

func TestSyncCancel(t *testing.T) {
	sender := &recordingSender{}
	sink := &MemorySink{}
	c := NewSyncController(sender, WithRowDelay(time.Hour), WithSyncSink(sink))

	require.ErrorIs(t, c.Cancel(), ErrNoActiveSync)

	require.NoError(t, c.Begin(testItems(3)))
	require.NoError(t, c.Cancel())
	assert.Equal(t, SyncIdle, c.State())
	err := c.Wait(waitCtx(t))
	require.ErrorIs(t, err, ErrSyncAborted)
	assert.Contains(t, sink.Kinds(), LogSyncCancelled)

	// Cancel during the row delay stops the stream
	require.NoError(t, c.Begin(testItems(3)))
	require.NoError(t, c.Acknowledge())
	require.Eventually(t, func() bool { return len(sender.Lines()) == 3 }, time.Second, time.Millisecond)
	require.NoError(t, c.Cancel())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sender.Lines(), 3)
}

func TestSyncAckComplete(t *testing.T) {
	c := NewSyncController(&recordingSender{})
	require.ErrorIs(t, c.AckComplete(), ErrSyncNotComplete)

	require.NoError(t, c.Begin(testItems(1)))
	require.ErrorIs(t, c.AckComplete(), ErrSyncNotComplete)
	assert.Equal(t, SyncAwaitingErase, c.State())
}

func TestSyncWaitHonoursContext(t *testing.T) {
	c := NewSyncController(&recordingSender{})
	require.NoError(t, c.Begin(testItems(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, SyncAwaitingErase, c.State(), "no timeout inside the controller")
}
