/*
Package notify delivers user-facing notification events.

PURPOSE:
  The accounting and forum services announce things users care about -
  new answers, accepted answers, votes, mentions, earned badges - through
  a single Notifier interface. Delivery is fire-and-forget: a failed emit
  is logged by the implementation and never rolls back the mutation that
  produced it.

IMPLEMENTATIONS:
  - Capture: in-memory sink for tests
  - Log:     structured zap logging (single-node default)
  - Kafka:   event stream producer, keyed by recipient (kafka.go)
*/
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	EventNewAnswer      EventType = "new_answer"
	EventAnswerAccepted EventType = "answer_accepted"
	EventUpvoted        EventType = "upvoted"
	EventMentioned      EventType = "mentioned"
	EventBadgeEarned    EventType = "badge_earned"
)

// Event is one notification addressed to a single recipient.
type Event struct {
	Type      EventType `json:"type"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`

	// ContentType distinguishes question/answer for EventUpvoted.
	ContentType string    `json:"content_type,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier delivers events. Implementations must be safe for concurrent
// use. Emit errors are advisory only.
type Notifier interface {
	Emit(ctx context.Context, e Event) error
}

// =============================================================================
// CAPTURE - In-memory sink for tests
// =============================================================================

// Capture records every emitted event. Test-only.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

func NewCapture() *Capture { return &Capture{} }

func (c *Capture) Emit(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Events returns a copy of everything emitted so far.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByType filters captured events by type.
func (c *Capture) ByType(t EventType) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// LOG - Structured-log delivery
// =============================================================================

// Log writes each event to a zap logger. Used when no event stream is
// configured.
type Log struct {
	Logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log { return &Log{Logger: logger} }

func (l *Log) Emit(_ context.Context, e Event) error {
	l.Logger.Info("notification",
		zap.String("type", string(e.Type)),
		zap.String("recipient", e.Recipient),
		zap.String("title", e.Title),
		zap.String("link", e.Link),
	)
	return nil
}
