package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestBusBroadcastsToAllSubscribers(t *testing.T) {
	var bus = NewBus()

	var ch1, _ = bus.Subscribe()
	var ch2, _ = bus.Subscribe()

	bus.Publish(Event{Type: TypeStatus, Status: "running", Progress: 5, CurrentStep: "ocr_recognition"})
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageOCRText, Payload: "hello"})
	bus.Publish(Event{Type: TypeComplete, Result: "done"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		var got = drain(ch)
		require.Len(t, got, 3)
		require.Equal(t, TypeStatus, got[0].Type)
		require.Equal(t, TypeIntermediate, got[1].Type)
		require.Equal(t, "hello", got[1].Payload)
		require.Equal(t, TypeComplete, got[2].Type)
	}
}

func TestBusLateSubscriberReplay(t *testing.T) {
	var bus = NewBus()

	bus.Publish(Event{Type: TypeStatus, Status: "running", Progress: 30, CurrentStep: "error_correction"})
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageOCRText, Payload: "raw"})
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageCorrectedText, Payload: "fixed"})

	var ch, unsub = bus.Subscribe()
	defer unsub()

	require.Equal(t, Event{Type: TypeStatus, Status: "running", Progress: 30, CurrentStep: "error_correction"}, <-ch)
	require.Equal(t, StageOCRText, (<-ch).Stage)
	require.Equal(t, StageCorrectedText, (<-ch).Stage)

	bus.Publish(Event{Type: TypeError, Error: "cancelled"})
	var got = drain(ch)
	require.Len(t, got, 1)
	require.Equal(t, TypeError, got[0].Type)
}

func TestBusSubscribeAfterTerminal(t *testing.T) {
	var bus = NewBus()
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageCacheHit, Payload: true})
	bus.Publish(Event{Type: TypeComplete, Result: 42})
	require.True(t, bus.Terminated())

	var ch, _ = bus.Subscribe()
	var got = drain(ch)
	require.Len(t, got, 2)
	require.Equal(t, StageCacheHit, got[0].Stage)
	require.Equal(t, TypeComplete, got[1].Type)
}

func TestBusExactlyOneTerminalAndItIsLast(t *testing.T) {
	var bus = NewBus()
	var ch, _ = bus.Subscribe()

	bus.Publish(Event{Type: TypeComplete, Result: "first"})
	bus.Publish(Event{Type: TypeError, Error: "late"})
	bus.Publish(Event{Type: TypeStatus, Status: "running"})

	var got = drain(ch)
	require.Len(t, got, 1)
	require.Equal(t, TypeComplete, got[0].Type)
	require.Equal(t, "first", got[0].Result)
}

func TestBusOverflowDropsOldestNonTerminal(t *testing.T) {
	var bus = NewBus()
	var ch, _ = bus.Subscribe()

	// Publish well past the buffer without consuming. The pipeline must
	// not block, and the terminal event must survive.
	for i := 0; i < SubscriberBuffer*3; i++ {
		bus.Publish(Event{Type: TypeStatus, Status: "running", Progress: i % 100})
	}
	bus.Publish(Event{Type: TypeComplete, Result: "ok"})

	var got = drain(ch)
	require.LessOrEqual(t, len(got), SubscriberBuffer+1)
	require.Equal(t, TypeComplete, got[len(got)-1].Type)
}

func TestBusPerNoteReplayKeepsEveryIndex(t *testing.T) {
	var bus = NewBus()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: TypeIntermediate, Stage: StagePerNoteSummary,
			Payload: fmt.Sprintf("note-%d", i)})
	}
	// Same-stage events other than per-note summaries replace each other.
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageSummary, Payload: "v1"})
	bus.Publish(Event{Type: TypeIntermediate, Stage: StageSummary, Payload: "v2"})

	var ch, unsub = bus.Subscribe()
	defer unsub()

	var perNote, summaries int
	var lastSummary Event
	for i := 0; i < 6; i++ {
		var ev = <-ch
		switch ev.Stage {
		case StagePerNoteSummary:
			perNote++
		case StageSummary:
			summaries++
			lastSummary = ev
		}
	}
	require.Equal(t, 5, perNote)
	require.Equal(t, 1, summaries)
	require.Equal(t, "v2", lastSummary.Payload)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	var bus = NewBus()
	var ch, unsub = bus.Subscribe()
	unsub()
	unsub() // Idempotent.

	bus.Publish(Event{Type: TypeComplete, Result: "ok"})
	var got = drain(ch)
	require.Empty(t, got)
}
