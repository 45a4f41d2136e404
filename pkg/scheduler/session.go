package scheduler

import (
	"context"
	"time"

	"github.com/entrhq/pilot/pkg/types"
)

// State is the lifecycle state of a session. Sessions move strictly
// forward: queued -> running -> one terminal state. Terminal states are
// never re-entered.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is an end state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateError, StateCancelled:
		return true
	}
	return false
}

// session is one scheduled execution of a generated script. All fields
// are owned by the scheduler and mutated only under its lock.
type session struct {
	id        string
	clientID  string
	requestID string
	request   types.RunRequest

	state       State
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	result      *types.RunResult

	// cancel terminates the in-flight subprocess when the session is
	// cancelled while running.
	cancel context.CancelFunc
}

// SessionView is an immutable snapshot of a session handed to listeners
// and status queries.
type SessionView struct {
	ID          string           `json:"sessionId"`
	ClientID    string           `json:"clientId"`
	RequestID   string           `json:"requestId,omitempty"`
	State       State            `json:"state"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Result      *types.RunResult `json:"result,omitempty"`
}

// view snapshots the session. Callers must hold the scheduler lock.
func (s *session) view() SessionView {
	v := SessionView{
		ID:        s.id,
		ClientID:  s.clientID,
		RequestID: s.requestID,
		State:     s.state,
		CreatedAt: s.createdAt,
		Result:    s.result,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		v.StartedAt = &started
	}
	if !s.completedAt.IsZero() {
		completed := s.completedAt
		v.CompletedAt = &completed
	}
	return v
}
