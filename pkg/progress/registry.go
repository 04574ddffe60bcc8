// Package progress implements the per-job event mailbox bridging a pipeline
// worker (producer) and a streaming consumer that may attach at a different
// wall-clock time. One producer and one consumer per job.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInfo      EventType = "info"
	EventStepStart EventType = "step_start"
	EventStepDone  EventType = "step_done"
	EventSurvey    EventType = "survey"
	EventStats     EventType = "stats"
	EventError     EventType = "error"
	EventPing      EventType = "ping"
	EventDone      EventType = "done"
)

// Event is one discrete progress record. The Event field is mandatory;
// everything else depends on the event type.
type Event struct {
	Event      EventType      `json:"event"`
	Step       string         `json:"step,omitempty"`
	Message    string         `json:"message,omitempty"`
	ElapsedSec float64        `json:"elapsed_sec,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func Info(message string) Event {
	return Event{Event: EventInfo, Message: message}
}

func StepStart(step string) Event {
	return Event{Event: EventStepStart, Step: step}
}

func StepDone(step string, elapsed time.Duration) Event {
	return Event{Event: EventStepDone, Step: step, ElapsedSec: round3(elapsed.Seconds())}
}

func Error(message string) Event {
	return Event{Event: EventError, Message: message}
}

func Done() Event {
	return Event{Event: EventDone}
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

type mailbox struct {
	mu     sync.Mutex
	events []Event
	// signal carries at most one pending wakeup for the single consumer.
	signal chan struct{}
}

func (m *mailbox) put(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return Event{}, false
	}
	ev := m.events[0]
	m.events = m.events[1:]
	return ev, true
}

// Registry owns the mailboxes. It is injected wherever progress is produced or
// consumed; there is no package-level instance.
type Registry struct {
	mu        sync.RWMutex
	mailboxes map[uuid.UUID]*mailbox
	ping      time.Duration
}

func NewRegistry(pingInterval time.Duration) *Registry {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Registry{
		mailboxes: make(map[uuid.UUID]*mailbox),
		ping:      pingInterval,
	}
}

// Open creates the mailbox for a job. It must be called before the producer
// goroutine is launched so a consumer can never attach to a missing mailbox.
func (r *Registry) Open(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailboxes[jobID] = &mailbox{signal: make(chan struct{}, 1)}
}

// Put appends an event to the job's mailbox. Never blocks the producer; events
// for an already-closed job are dropped.
func (r *Registry) Put(jobID uuid.UUID, ev Event) {
	r.mu.RLock()
	mb := r.mailboxes[jobID]
	r.mu.RUnlock()
	if mb == nil {
		return
	}
	mb.put(ev)
}

// Close tears down the mailbox. Safe to call more than once.
func (r *Registry) Close(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mailboxes, jobID)
}

// CloseAfter schedules a teardown for abandoned jobs whose consumer never
// drained the terminal event.
func (r *Registry) CloseAfter(jobID uuid.UUID, d time.Duration) {
	time.AfterFunc(d, func() { r.Close(jobID) })
}

// Stream yields the job's events in submission order on the returned channel.
// When no event arrives within the ping interval a synthetic ping is yielded
// instead of blocking indefinitely. The channel is closed after the done event
// has been delivered, or when ctx is canceled, or when the mailbox is missing.
func (r *Registry) Stream(ctx context.Context, jobID uuid.UUID) <-chan Event {
	out := make(chan Event)

	r.mu.RLock()
	mb := r.mailboxes[jobID]
	r.mu.RUnlock()

	go func() {
		defer close(out)
		if mb == nil {
			// Unknown or already-drained job: terminate the stream immediately.
			select {
			case out <- Done():
			case <-ctx.Done():
			}
			return
		}

		idle := time.NewTimer(r.ping)
		defer idle.Stop()

		for {
			ev, ok := mb.pop()
			if !ok {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(r.ping)
				select {
				case <-mb.signal:
					continue
				case <-idle.C:
					select {
					case out <- Event{Event: EventPing}:
					case <-ctx.Done():
						return
					}
					continue
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Event == EventDone {
				return
			}
		}
	}()

	return out
}
