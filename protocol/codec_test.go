package protocol

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "no fields",
			cmd:  NewCommand(CmdReqSync),
			want: "CMD:REQ_SYNC\n",
		},
		{
			name: "sync start",
			cmd:  SyncStart(2),
			want: "CMD:SYNC_START,TOTAL:2\n",
		},
		{
			name: "sync data keeps field order",
			cmd:  SyncData("6901234", "2.50", "Water"),
			want: "CMD:SYNC_DATA,ID:6901234,PR:2.50,NM:Water\n",
		},
		{
			name: "empty value",
			cmd:  NewCommand(CmdScan, F(KeyID, "")),
			want: "CMD:SCAN,ID:\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.cmd)))
			assert.Equal(t, strings.TrimSuffix(tt.want, "\n"), tt.cmd.String())
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "report",
			line: "CMD:REPORT,ID:A1,QT:3",
			want: NewCommand(CmdReport, F(KeyID, "A1"), F(KeyQuantity, "3")),
		},
		{
			name: "terminator and carriage return",
			line: "CMD:ALARM,MSG:door open\r\n",
			want: NewCommand(CmdAlarm, F(KeyMessage, "door open")),
		},
		{
			name: "noise segments dropped",
			line: "CMD:REPORT,garbage,ID:A1,,QT:1",
			want: NewCommand(CmdReport, F(KeyID, "A1"), F(KeyQuantity, "1")),
		},
		{
			name: "value split at first colon",
			line: "CMD:ALARM,MSG:temp:high",
			want: NewCommand(CmdAlarm, F(KeyMessage, "temp:high")),
		},
		{
			name: "whitespace trimmed",
			line: "  CMD: REPORT , ID : 42 ",
			want: NewCommand(CmdReport, F(KeyID, "42")),
		},
		{
			name: "CMD not first",
			line: "ID:7,CMD:REPORT",
			want: NewCommand(CmdReport, F(KeyID, "7")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeNotACommand(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"boot ok",
		"ID:1,QT:2",
		"CMD:",
		"CMD",
		":REPORT",
		"cmd:REPORT",
	}

	for _, line := range lines {
		_, err := Decode(line)
		assert.ErrorIs(t, err, ErrNotACommand, "line %q", line)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	cmds := []Command{
		NewCommand(CmdReqSync),
		Scan("6901234567892"),
		SyncStart(0),
		SyncData("A1", "0.00", "Sparkling water 500ml"),
		SyncEnd(120),
		NewCommand("VENDOR_X", F("A", "1"), F("B", ""), F("A", "2")),
	}

	for _, cmd := range cmds {
		got, err := Decode(string(Encode(cmd)))
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestDecodeArbitraryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []byte("CMD:REPORT,ID\r\n \x00\xff\xfe:,,::QTabc")

	for i := 0; i < 2000; i++ {
		raw := make([]byte, rng.Intn(64))
		for j := range raw {
			raw[j] = alphabet[rng.Intn(len(alphabet))]
		}
		for _, line := range strings.Split(string(raw), "\n") {
			cmd, err := Decode(line)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotACommand)
				continue
			}
			assert.NotEmpty(t, cmd.Name)
		}
	}
}

func TestCommandGet(t *testing.T) {
	cmd := NewCommand(CmdReport, F(KeyID, "A1"))

	v, ok := cmd.Get(KeyID)
	assert.True(t, ok)
	assert.Equal(t, "A1", v)

	_, ok = cmd.Get(KeyQuantity)
	assert.False(t, ok)
	assert.Equal(t, "1", cmd.GetOr(KeyQuantity, "1"))
}

func TestUnsafeValue(t *testing.T) {
	assert.False(t, UnsafeValue("Water 500ml"))
	assert.True(t, UnsafeValue("Salt, coarse"))
	assert.True(t, UnsafeValue("12:00"))
	assert.True(t, UnsafeValue("two\nlines"))
}
