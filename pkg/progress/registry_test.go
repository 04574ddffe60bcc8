package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
		}
	}
	return out
}

func TestRegistry_StreamDeliversInOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(time.Minute)
	jobID := uuid.New()
	reg.Open(jobID)

	reg.Put(jobID, Info("accepted"))
	reg.Put(jobID, StepStart("hierarchy build"))
	reg.Put(jobID, StepDone("hierarchy build", 1500*time.Millisecond))
	reg.Put(jobID, Done())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := collect(t, reg.Stream(ctx, jobID), 4)

	require.Equal(t, EventInfo, events[0].Event)
	require.Equal(t, EventStepStart, events[1].Event)
	require.Equal(t, "hierarchy build", events[1].Step)
	require.Equal(t, EventStepDone, events[2].Event)
	require.InDelta(t, 1.5, events[2].ElapsedSec, 0.001)
	require.Equal(t, EventDone, events[3].Event)
}

func TestRegistry_StreamClosesAfterDone(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(time.Minute)
	jobID := uuid.New()
	reg.Open(jobID)
	reg.Put(jobID, Done())

	ch := reg.Stream(context.Background(), jobID)
	ev := <-ch
	require.Equal(t, EventDone, ev.Event)

	_, open := <-ch
	require.False(t, open, "stream must close after the terminal event")
}

func TestRegistry_IdleStreamEmitsPing(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(20 * time.Millisecond)
	jobID := uuid.New()
	reg.Open(jobID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := reg.Stream(ctx, jobID)

	select {
	case ev := <-ch:
		require.Equal(t, EventPing, ev.Event)
	case <-time.After(time.Second):
		t.Fatal("expected a ping on an idle stream")
	}

	// The producer can still deliver after a ping.
	reg.Put(jobID, Done())
	events := collect(t, ch, 1)
	require.Equal(t, EventDone, events[len(events)-1].Event)
}

func TestRegistry_UnknownJobTerminatesImmediately(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(time.Minute)
	ch := reg.Stream(context.Background(), uuid.New())
	ev := <-ch
	require.Equal(t, EventDone, ev.Event)
}

func TestRegistry_PutAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(time.Minute)
	jobID := uuid.New()
	reg.Open(jobID)
	reg.Close(jobID)

	// Must not panic or block.
	reg.Put(jobID, Info("late event"))
}

func TestRegistry_ProducerNeverBlocks(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(time.Minute)
	jobID := uuid.New()
	reg.Open(jobID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			reg.Put(jobID, Info("burst"))
		}
		reg.Put(jobID, Done())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked without a consumer attached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := collect(t, reg.Stream(ctx, jobID), 10001)
	require.Equal(t, EventDone, events[len(events)-1].Event)
}
