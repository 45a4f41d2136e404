package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/runner"
	"github.com/entrhq/pilot/pkg/types"
)

// fakeExecutor blocks each run until released, recording start order.
type fakeExecutor struct {
	mu      sync.Mutex
	started []string
	release chan struct{}
	result  types.RunResult
}

func newFakeExecutor(result types.RunResult) *fakeExecutor {
	return &fakeExecutor{
		release: make(chan struct{}),
		result:  result,
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, sessionID string, req types.RunRequest, onLog runner.LogFunc) (*types.RunResult, error) {
	f.mu.Lock()
	f.started = append(f.started, sessionID)
	f.mu.Unlock()

	if onLog != nil {
		onLog(runner.StreamStdout, "running "+sessionID)
	}

	select {
	case <-f.release:
	case <-ctx.Done():
		return &types.RunResult{Status: types.StatusError, Error: "run cancelled"}, nil
	}
	result := f.result
	return &result, nil
}

func (f *fakeExecutor) startedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

// recordingListener captures lifecycle notifications in order.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) record(kind, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, kind+":"+id)
}

func (l *recordingListener) SessionQueued(v SessionView, pos int, waitMs int64) {
	l.record("queued", v.ID)
}
func (l *recordingListener) SessionStarted(v SessionView)   { l.record("started", v.ID) }
func (l *recordingListener) SessionLog(v SessionView, stream, message string) {
	l.record("log", v.ID)
}
func (l *recordingListener) SessionFinished(v SessionView)  { l.record("finished", v.ID) }
func (l *recordingListener) SessionCancelled(v SessionView) { l.record("cancelled", v.ID) }

func (l *recordingListener) count(kind, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e == kind+":"+id {
			n++
		}
	}
	return n
}

func submitN(s *Scheduler, n int, clientID string) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		view, _, _ := s.Submit(types.RunRequest{ScriptSource: "x"}, clientID, fmt.Sprintf("req-%d", i))
		ids = append(ids, view.ID)
	}
	return ids
}

func TestScheduler_FIFOWithConcurrencyOne(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	s := New(exec, Options{MaxConcurrency: 1})

	ids := submitN(s, 3, "client-a")

	// Run 1 starts immediately; runs 2 and 3 stay queued.
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	queued, running := s.ActiveCounts()
	assert.Equal(t, 2, queued)
	assert.Equal(t, 1, running)
	assert.Equal(t, ids[0], exec.startedIDs()[0])

	// Each subsequent run starts only after the prior reaches a
	// terminal state, in submission order.
	exec.release <- struct{}{}
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ids[1], exec.startedIDs()[1])

	exec.release <- struct{}{}
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ids[2], exec.startedIDs()[2])

	exec.release <- struct{}{}
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_ConcurrencyInvariant(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	s := New(exec, Options{MaxConcurrency: 2})

	submitN(s, 5, "client-a")
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 2 }, time.Second, 5*time.Millisecond)

	_, running := s.ActiveCounts()
	assert.LessOrEqual(t, running, 2)

	for i := 0; i < 5; i++ {
		exec.release <- struct{}{}
		_, running := s.ActiveCounts()
		assert.LessOrEqual(t, running, 2)
	}
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_TerminalStateFromResult(t *testing.T) {
	tests := []struct {
		name   string
		result types.RunResult
		want   State
	}{
		{"passed maps to completed", types.RunResult{Status: types.StatusPassed}, StateCompleted},
		{"failed maps to failed", types.RunResult{Status: types.StatusFailed}, StateFailed},
		{"error maps to error", types.RunResult{Status: types.StatusError, Error: "boom"}, StateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor(tt.result)
			s := New(exec, Options{MaxConcurrency: 1})
			view, _, _ := s.Submit(types.RunRequest{}, "client-a", "r1")
			exec.release <- struct{}{}
			require.NoError(t, s.Wait(context.Background()))

			got, _, _, err := s.Status(view.ID, "client-a")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.State)
			require.NotNil(t, got.Result)
			assert.Equal(t, tt.result.Status, got.Result.Status)
		})
	}
}

func TestScheduler_CancelQueuedSession(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	listener := &recordingListener{}
	s := New(exec, Options{MaxConcurrency: 1, Listener: listener})

	ids := submitN(s, 2, "client-a")
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Cancel(ids[1], "client-a"))

	view, _, _, err := s.Status(ids[1], "client-a")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, view.State)
	assert.Nil(t, view.Result, "cancelled sessions carry no result")

	queued, _ := s.ActiveCounts()
	assert.Equal(t, 0, queued)

	exec.release <- struct{}{}
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 1, listener.count("cancelled", ids[1]))
	assert.Equal(t, 0, listener.count("finished", ids[1]))
}

func TestScheduler_CancelRunningDiscardsResult(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	listener := &recordingListener{}
	s := New(exec, Options{MaxConcurrency: 1, Listener: listener})

	view, _, _ := s.Submit(types.RunRequest{}, "client-a", "r1")
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Cancel(view.ID, "client-a"))
	require.NoError(t, s.Wait(context.Background()))

	got, _, _, err := s.Status(view.ID, "client-a")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
	assert.Nil(t, got.Result)

	// Exactly one terminal event, and it is the cancellation.
	assert.Equal(t, 1, listener.count("cancelled", view.ID))
	assert.Equal(t, 0, listener.count("finished", view.ID))
}

func TestScheduler_CancelRejections(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	s := New(exec, Options{MaxConcurrency: 1})

	view, _, _ := s.Submit(types.RunRequest{}, "client-a", "r1")

	assert.ErrorIs(t, s.Cancel("no-such-session", "client-a"), ErrSessionNotFound)
	assert.ErrorIs(t, s.Cancel(view.ID, "client-b"), ErrNotOwner)

	// The foreign cancel attempt changed nothing.
	got, _, _, err := s.Status(view.ID, "client-a")
	require.NoError(t, err)
	assert.NotEqual(t, StateCancelled, got.State)

	exec.release <- struct{}{}
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_DisconnectCancelsAllClientSessions(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	listener := &recordingListener{}
	s := New(exec, Options{MaxConcurrency: 1, Listener: listener})

	ids := submitN(s, 3, "client-a")
	otherView, _, _ := s.Submit(types.RunRequest{}, "client-b", "r-other")
	require.Eventually(t, func() bool { return len(exec.startedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	s.DisconnectClient("client-a")
	require.Eventually(t, func() bool {
		queued, running := s.ActiveCounts()
		// client-b's session should now occupy the freed slot.
		return queued == 0 && running == 1
	}, time.Second, 5*time.Millisecond)

	for _, id := range ids {
		assert.Equal(t, 1, listener.count("cancelled", id))
		// Disconnect drops the client's sessions entirely.
		_, _, _, err := s.Status(id, "client-a")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}

	// The other client's session is untouched.
	got, _, _, err := s.Status(otherView.ID, "client-b")
	require.NoError(t, err)
	assert.NotEqual(t, StateCancelled, got.State)

	exec.release <- struct{}{}
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_WaitEstimate(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	s := New(exec, Options{MaxConcurrency: 1})

	// First submission has a free slot: estimate is zero.
	_, _, waitMs := s.Submit(types.RunRequest{}, "client-a", "r1")
	assert.Zero(t, waitMs)

	// With the slot busy the estimate scales with queue depth.
	_, _, wait2 := s.Submit(types.RunRequest{}, "client-a", "r2")
	_, _, wait3 := s.Submit(types.RunRequest{}, "client-a", "r3")
	assert.Positive(t, wait2)
	assert.Greater(t, wait3, wait2)

	for i := 0; i < 3; i++ {
		exec.release <- struct{}{}
	}
	require.NoError(t, s.Wait(context.Background()))
}

func TestScheduler_LogEventsOnlyWhileRunning(t *testing.T) {
	exec := newFakeExecutor(types.RunResult{Status: types.StatusPassed})
	listener := &recordingListener{}
	s := New(exec, Options{MaxConcurrency: 1, Listener: listener})

	view, _, _ := s.Submit(types.RunRequest{}, "client-a", "r1")
	require.Eventually(t, func() bool { return listener.count("log", view.ID) == 1 }, time.Second, 5*time.Millisecond)

	exec.release <- struct{}{}
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 1, listener.count("started", view.ID))
	assert.Equal(t, 1, listener.count("finished", view.ID))
}

func TestScheduler_ExecutorFailureFinalizesSession(t *testing.T) {
	failing := executorFunc(func(ctx context.Context, id string, req types.RunRequest, onLog runner.LogFunc) (*types.RunResult, error) {
		return nil, fmt.Errorf("workdir setup failed")
	})
	s := New(failing, Options{MaxConcurrency: 1})

	view, _, _ := s.Submit(types.RunRequest{}, "client-a", "r1")
	require.NoError(t, s.Wait(context.Background()))

	got, _, _, err := s.Status(view.ID, "client-a")
	require.NoError(t, err)
	assert.Equal(t, StateError, got.State)
	require.NotNil(t, got.Result)
	assert.Contains(t, got.Result.Error, "workdir setup failed")
}

// executorFunc adapts a function to the RunExecutor interface.
type executorFunc func(ctx context.Context, sessionID string, req types.RunRequest, onLog runner.LogFunc) (*types.RunResult, error)

func (f executorFunc) Execute(ctx context.Context, sessionID string, req types.RunRequest, onLog runner.LogFunc) (*types.RunResult, error) {
	return f(ctx, sessionID, req, onLog)
}
