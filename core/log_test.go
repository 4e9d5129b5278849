package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Log(LogEvent{Time: time.Now(), Level: zerolog.WarnLevel, Source: "sync", Kind: LogSyncAborted, Text: "aborted"})

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"kind":"sync_aborted"`)
	assert.Contains(t, out, `"source":"sync"`)
	assert.Contains(t, out, `"message":"aborted"`)
}

func TestMultiSink(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	var calls int
	sink := MultiSink{a, nil, b, LogSinkFunc(func(LogEvent) { calls++ })}

	sink.Log(LogEvent{Kind: LogAlarm})
	sink.Log(LogEvent{Kind: LogSale})

	assert.Equal(t, []LogKind{LogAlarm, LogSale}, a.Kinds())
	assert.Equal(t, []LogKind{LogAlarm, LogSale}, b.Kinds())
	assert.Equal(t, 2, calls)
}

func TestEmitterStampsEvents(t *testing.T) {
	sink := &MemorySink{}
	out := emitter{sink: sink, source: "dispatcher"}

	out.log(zerolog.InfoLevel, LogSale, "sale")

	events := sink.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, "dispatcher", events[0].Source)
		assert.Equal(t, zerolog.InfoLevel, events[0].Level)
		assert.False(t, events[0].Time.IsZero())
	}
	emitter{}.log(zerolog.InfoLevel, LogSale, "no sink")
}

func TestMemorySinkLimit(t *testing.T) {
	sink := &MemorySink{Limit: 2}
	for _, k := range []LogKind{LogSent, LogReceived, LogAlarm} {
		sink.Log(LogEvent{Kind: k})
	}
	assert.Equal(t, []LogKind{LogReceived, LogAlarm}, sink.Kinds())
}
