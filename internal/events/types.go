package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	SessionID() string
}

// Topic constants
const (
	TopicSession = "session"
	TopicAttempt = "attempt"
	TopicBatch   = "batch"
)

// Event type constants
const (
	EventTypeSessionStarted   = "session.started"
	EventTypeSessionFinished  = "session.finished"
	EventTypeAttemptStarted   = "attempt.started"
	EventTypeGenerated        = "attempt.generated"
	EventTypeSelfReview       = "attempt.self_review"
	EventTypeValidationFailed = "attempt.validation_failed"
	EventTypeCompileStarted   = "attempt.compile_started"
	EventTypeCompileFinished  = "attempt.compile_finished"
	EventTypeBatchProgress    = "batch.progress"
)

// SessionStartedEvent is published when a session begins execution.
type SessionStartedEvent struct {
	ID          string
	Instruction string
	MaxAttempts int
	Timestamp   time.Time
}

func (e SessionStartedEvent) EventType() string { return EventTypeSessionStarted }
func (e SessionStartedEvent) SessionID() string { return e.ID }

// SessionFinishedEvent is published when a session reaches a terminal outcome.
type SessionFinishedEvent struct {
	ID           string
	Outcome      string
	Reason       string
	Attempts     int
	ArtifactPath string
	Duration     time.Duration
	Timestamp    time.Time
}

func (e SessionFinishedEvent) EventType() string { return EventTypeSessionFinished }
func (e SessionFinishedEvent) SessionID() string { return e.ID }

// AttemptStartedEvent is published when an attempt begins.
type AttemptStartedEvent struct {
	ID        string
	Attempt   int
	Timestamp time.Time
}

func (e AttemptStartedEvent) EventType() string { return EventTypeAttemptStarted }
func (e AttemptStartedEvent) SessionID() string { return e.ID }

// GeneratedEvent is published when the model returns a candidate document.
type GeneratedEvent struct {
	ID        string
	Attempt   int
	Bytes     int
	Tokens    int
	Timestamp time.Time
}

func (e GeneratedEvent) EventType() string { return EventTypeGenerated }
func (e GeneratedEvent) SessionID() string { return e.ID }

// SelfReviewEvent is published after the model reviewed its own first
// candidate. Corrected reports whether the review replaced the document.
type SelfReviewEvent struct {
	ID        string
	Attempt   int
	Corrected bool
	Tokens    int
	Timestamp time.Time
}

func (e SelfReviewEvent) EventType() string { return EventTypeSelfReview }
func (e SelfReviewEvent) SessionID() string { return e.ID }

// ValidationFailedEvent is published when structural validation rejects a candidate.
type ValidationFailedEvent struct {
	ID        string
	Attempt   int
	Defects   []string
	Timestamp time.Time
}

func (e ValidationFailedEvent) EventType() string { return EventTypeValidationFailed }
func (e ValidationFailedEvent) SessionID() string { return e.ID }

// CompileStartedEvent is published when a candidate is handed to the compiler.
type CompileStartedEvent struct {
	ID        string
	Attempt   int
	Timestamp time.Time
}

func (e CompileStartedEvent) EventType() string { return EventTypeCompileStarted }
func (e CompileStartedEvent) SessionID() string { return e.ID }

// CompileFinishedEvent is published when the compiler returns a verdict.
type CompileFinishedEvent struct {
	ID         string
	Attempt    int
	Status     string
	Diagnostic string
	Duration   time.Duration
	Timestamp  time.Time
}

func (e CompileFinishedEvent) EventType() string { return EventTypeCompileFinished }
func (e CompileFinishedEvent) SessionID() string { return e.ID }

// BatchProgressEvent is published when batch progress changes.
type BatchProgressEvent struct {
	Total     int
	Completed int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e BatchProgressEvent) EventType() string { return EventTypeBatchProgress }
func (e BatchProgressEvent) SessionID() string { return "" }
