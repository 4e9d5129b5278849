package protocol

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskctl/host/serial"
)

const eventWait = 2 * time.Second

func newOpenTransport(t *testing.T) (*HostTransport, *serial.MockPort) {
	t.Helper()
	port := serial.NewMockPort()
	tr := NewHostTransport(WithOpener(port.Opener()), WithPollInterval(time.Millisecond))
	require.NoError(t, tr.Open(serial.DefaultConfig("/dev/mock0")))
	t.Cleanup(func() { _ = tr.Close() })
	return tr, port
}

// nextEvent returns the next event of one of the given kinds, skipping others
func nextEvent(t *testing.T, tr *HostTransport, kinds ...EventKind) Event {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-tr.Events():
			for _, k := range kinds {
				if ev.Kind == k {
					return ev
				}
			}
		case <-deadline:
			t.Fatalf("no %v event within %v", kinds, eventWait)
		}
	}
}

func TestHostTransportOpen(t *testing.T) {
	tr, port := newOpenTransport(t)

	assert.Equal(t, StateOpen, tr.State())
	assert.Equal(t, "/dev/mock0", tr.Device())
	assert.Equal(t, 1, port.Resets(), "stale input must be cleared on open")

	ev := nextEvent(t, tr, EventState)
	assert.Equal(t, StateConnecting, ev.State)
	ev = nextEvent(t, tr, EventState)
	assert.Equal(t, StateOpen, ev.State)

	err := tr.Open(serial.DefaultConfig("/dev/mock0"))
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestHostTransportOpenFailure(t *testing.T) {
	tr := NewHostTransport(WithOpener(func(*serial.Config) (serial.Port, error) {
		return nil, fmt.Errorf("open: %w", serial.ErrPermissionDenied)
	}))

	err := tr.Open(serial.DefaultConfig("/dev/ttyS9"))
	require.ErrorIs(t, err, serial.ErrPermissionDenied)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "open", terr.Op)
	assert.Equal(t, "/dev/ttyS9", terr.Device)
	assert.Equal(t, StateFailed, tr.State())

	nextEvent(t, tr, EventState)
	ev := nextEvent(t, tr, EventState)
	assert.Equal(t, StateFailed, ev.State)
	assert.ErrorIs(t, ev.Err, serial.ErrPermissionDenied)
}

func TestHostTransportReceivesLinesInOrder(t *testing.T) {
	tr, port := newOpenTransport(t)

	port.Feed("CMD:REPORT,ID:A1,QT:3\nboot v1.2\nCMD:AL")
	port.Feed("ARM,MSG:door\n\nCMD:REQ_SYNC\n")

	ev := nextEvent(t, tr, EventCommand, EventRaw)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, NewCommand(CmdReport, F(KeyID, "A1"), F(KeyQuantity, "3")), ev.Command)

	ev = nextEvent(t, tr, EventCommand, EventRaw)
	assert.Equal(t, EventRaw, ev.Kind)
	assert.Equal(t, "boot v1.2", ev.Text)

	ev = nextEvent(t, tr, EventCommand, EventRaw)
	assert.Equal(t, CmdAlarm, ev.Command.Name)

	ev = nextEvent(t, tr, EventCommand, EventRaw)
	assert.Equal(t, CmdReqSync, ev.Command.Name)
}

func TestHostTransportSend(t *testing.T) {
	tr, port := newOpenTransport(t)

	require.NoError(t, tr.Send(Scan("A1")))
	assert.Equal(t, "CMD:SCAN,ID:A1\n", port.Written())

	ev := nextEvent(t, tr, EventSent)
	assert.Equal(t, "CMD:SCAN,ID:A1", ev.Text)
}

func TestHostTransportSendNotConnected(t *testing.T) {
	tr := NewHostTransport()

	err := tr.Send(Scan("A1"))
	require.ErrorIs(t, err, ErrNotConnected)

	ev := nextEvent(t, tr, EventError)
	assert.ErrorIs(t, ev.Err, ErrNotConnected)
}

func TestHostTransportWriteFailure(t *testing.T) {
	tr, port := newOpenTransport(t)
	boom := errors.New("buffer full")
	port.FailWrites(boom)

	err := tr.Send(SyncEnd(1))
	require.ErrorIs(t, err, boom)

	ev := nextEvent(t, tr, EventError)
	assert.ErrorIs(t, ev.Err, boom)
	assert.Equal(t, StateOpen, tr.State(), "a write failure does not end the session")
}

func TestHostTransportSendsDoNotInterleave(t *testing.T) {
	tr, port := newOpenTransport(t)

	const senders, perSender = 8, 25
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				name := strings.Repeat(string(rune('a'+s)), 40)
				assert.NoError(t, tr.Send(SyncData(fmt.Sprintf("%d-%d", s, i), "1.00", name)))
			}
		}(s)
	}
	wg.Wait()

	lines := port.Lines()
	require.Len(t, lines, senders*perSender)
	for _, line := range lines {
		cmd, err := Decode(line)
		require.NoError(t, err, line)
		require.Equal(t, CmdSyncData, cmd.Name)
		id, _ := cmd.Get(KeyID)
		name, _ := cmd.Get(KeyName)
		var s, i int
		_, err = fmt.Sscanf(id, "%d-%d", &s, &i)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat(string(rune('a'+s)), 40), name)
	}
}

func TestHostTransportClose(t *testing.T) {
	tr, port := newOpenTransport(t)

	require.NoError(t, tr.Close())
	assert.Equal(t, StateDisconnected, tr.State())
	assert.True(t, port.IsClosed())

	require.NoError(t, tr.Close(), "close is idempotent")
	require.NoError(t, NewHostTransport().Close(), "close before open is safe")

	err := tr.Send(Scan("A1"))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestHostTransportReopen(t *testing.T) {
	tr, _ := newOpenTransport(t)
	require.NoError(t, tr.Close())

	port := serial.NewMockPort()
	tr.opener = port.Opener()
	require.NoError(t, tr.Open(serial.DefaultConfig("/dev/mock1")))
	require.NoError(t, tr.Send(SyncStart(0)))
	assert.Equal(t, []string{"CMD:SYNC_START,TOTAL:0"}, port.Lines())
}

func TestHostTransportReadErrorRetriesOnce(t *testing.T) {
	tr, port := newOpenTransport(t)

	port.FailNextRead(errors.New("glitch"))
	ev := nextEvent(t, tr, EventError)
	assert.Contains(t, ev.Text, "retrying")

	port.FeedLine("CMD:ALARM,MSG:still here")
	ev = nextEvent(t, tr, EventCommand)
	assert.Equal(t, CmdAlarm, ev.Command.Name)
	assert.Equal(t, StateOpen, tr.State())
}

func TestHostTransportReadErrorsFailConnection(t *testing.T) {
	tr, port := newOpenTransport(t)

	unplugged := errors.New("device unplugged")
	port.FailNextRead(unplugged)
	port.FailNextRead(unplugged)

	ev := nextEvent(t, tr, EventError)
	assert.ErrorIs(t, ev.Err, unplugged)

	for {
		ev = nextEvent(t, tr, EventState)
		if ev.State == StateFailed {
			break
		}
	}
	assert.ErrorIs(t, ev.Err, unplugged)
	assert.Equal(t, StateFailed, tr.State())
	assert.True(t, port.IsClosed())

	err := tr.Send(Scan("A1"))
	require.ErrorIs(t, err, ErrNotConnected)
}
