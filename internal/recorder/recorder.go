// Package recorder submits validated attendance events to a backend.
package recorder

import (
	"context"
	"errors"
	"time"

	"qrcheckin/internal/history"
)

// Receipt is the backend's acknowledgement of a submission.
type Receipt struct {
	Message string `json:"message"`
}

// Recorder submits one attendance event. Single attempt, no built-in
// retry; retry policy is the caller's concern.
type Recorder interface {
	Submit(ctx context.Context, event history.Event) (Receipt, error)
}

// FailSessionID is the reserved session id that always fails, exercising
// the error path end to end.
const FailSessionID = "FAIL_SESSION"

// ErrRejected is the deterministic failure for FailSessionID.
var ErrRejected = errors.New("This session has expired or the submission is a duplicate.")

// Stub simulates the backend with fixed latency and one canned failure.
type Stub struct {
	Delay time.Duration
}

// NewStub creates a stub with the given simulated latency.
func NewStub(delay time.Duration) *Stub {
	if delay < 0 {
		delay = 0
	}
	return &Stub{Delay: delay}
}

// Submit waits out the simulated latency and then accepts everything
// except the reserved failure session.
func (s *Stub) Submit(ctx context.Context, event history.Event) (Receipt, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
	if event.SessionID == FailSessionID {
		return Receipt{}, ErrRejected
	}
	return Receipt{
		Message: "Attendance for " + string(event.EventType) + " successfully recorded at " + time.Now().Format("3:04:05 PM") + ".",
	}, nil
}
