// Package scheduler owns the FIFO queue of requested runs, enforces the
// concurrency cap, tracks session state transitions, and invokes the
// process runner when capacity allows.
//
// All session, queue, and bookkeeping state lives on an explicit
// Scheduler instance and is mutated only under its lock, so the
// invariant "at most maxConcurrency sessions running" holds continuously
// rather than only at observation points.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/runner"
	"github.com/entrhq/pilot/pkg/types"
)

// Typed rejections for cancel and status requests.
var (
	ErrSessionNotFound = errors.New("scheduler: session not found")
	ErrNotOwner        = errors.New("scheduler: session owned by another client")
)

// initialAvgDuration seeds the wait-time estimate until the first run
// completes.
const initialAvgDuration = 30 * time.Second

// RunExecutor abstracts the process runner for testability.
type RunExecutor interface {
	Execute(ctx context.Context, sessionID string, req types.RunRequest, onLog runner.LogFunc) (*types.RunResult, error)
}

// Listener receives session lifecycle notifications. Methods are called
// with the scheduler lock held and must not call back into the
// scheduler; implementations should hand the event off quickly.
type Listener interface {
	SessionQueued(v SessionView, queuePosition int, estimatedWaitMs int64)
	SessionStarted(v SessionView)
	SessionLog(v SessionView, stream, message string)
	SessionFinished(v SessionView)
	SessionCancelled(v SessionView)
}

// Options configures a Scheduler.
type Options struct {
	MaxConcurrency int
	Listener       Listener
	Metrics        *Metrics
}

// Scheduler schedules sessions over a bounded pool of runner slots.
type Scheduler struct {
	executor RunExecutor
	listener Listener
	metrics  *Metrics
	logger   *logging.Logger

	mu             sync.Mutex
	maxConcurrency int
	queue          []*session
	sessions       map[string]*session
	running        int
	avgDuration    time.Duration
	completedRuns  int
	wg             sync.WaitGroup
}

// New creates a scheduler executing runs through the given executor.
func New(executor RunExecutor, opts Options) *Scheduler {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	logger, _ := logging.NewLogger("scheduler")
	return &Scheduler{
		executor:       executor,
		listener:       opts.Listener,
		metrics:        opts.Metrics,
		logger:         logger,
		maxConcurrency: opts.MaxConcurrency,
		sessions:       make(map[string]*session),
		avgDuration:    initialAvgDuration,
	}
}

// Submit enqueues a run request for the client and returns the queued
// session snapshot together with its queue position and advisory wait
// estimate. Scheduling happens immediately when a slot is free.
func (s *Scheduler) Submit(req types.RunRequest, clientID, requestID string) (SessionView, int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &session{
		id:        uuid.New().String(),
		clientID:  clientID,
		requestID: requestID,
		request:   req,
		state:     StateQueued,
		createdAt: time.Now(),
	}
	s.sessions[sess.id] = sess
	s.queue = append(s.queue, sess)

	position := len(s.queue)
	waitMs := s.estimatedWaitLocked()
	view := sess.view()

	s.logger.Infof("session %s submitted by client %s (position %d)", sess.id, clientID, position)
	if s.listener != nil {
		s.listener.SessionQueued(view, position, waitMs)
	}

	s.tickLocked()
	s.updateGaugesLocked()
	return view, position, waitMs
}

// Cancel requests cancellation of a session on behalf of a client. Only
// the submitting client may cancel its own session; foreign sessions are
// rejected with ErrNotOwner and unknown ones with ErrSessionNotFound,
// both without side effects. Cancelling an already terminal session is a
// no-op.
func (s *Scheduler) Cancel(sessionID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.clientID != clientID {
		return ErrNotOwner
	}
	if sess.state.Terminal() {
		return nil
	}

	s.cancelLocked(sess)
	s.tickLocked()
	s.updateGaugesLocked()
	return nil
}

// Status returns a snapshot of the session plus, for queued sessions,
// its queue position and estimated wait.
func (s *Scheduler) Status(sessionID, clientID string) (SessionView, int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionView{}, 0, 0, ErrSessionNotFound
	}
	if sess.clientID != clientID {
		return SessionView{}, 0, 0, ErrNotOwner
	}

	position := 0
	var waitMs int64
	if sess.state == StateQueued {
		for i, queued := range s.queue {
			if queued == sess {
				position = i + 1
				break
			}
		}
		waitMs = s.estimatedWaitLocked()
	}
	return sess.view(), position, waitMs, nil
}

// DisconnectClient cancels every non-terminal session owned by the
// client. Queued sessions are removed from the queue immediately;
// running ones have their subprocess signalled. Terminal sessions of
// the client are dropped, since only their owner could query them.
func (s *Scheduler) DisconnectClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.clientID != clientID {
			continue
		}
		if !sess.state.Terminal() {
			s.cancelLocked(sess)
		}
		delete(s.sessions, id)
	}
	s.tickLocked()
	s.updateGaugesLocked()
}

// ActiveCounts reports the current queue depth and running count.
func (s *Scheduler) ActiveCounts() (queued, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), s.running
}

// MaxConcurrency returns the configured concurrency cap.
func (s *Scheduler) MaxConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConcurrency
}

// Wait blocks until all in-flight runs have finished or the context is
// done. Used during shutdown.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cancelLocked transitions a non-terminal session to cancelled. A queued
// session is dequeued before start; a running one keeps executing until
// the signalled subprocess exits, at which point its result is
// discarded. Cancelled sessions carry no result.
func (s *Scheduler) cancelLocked(sess *session) {
	if sess.state == StateQueued {
		for i, queued := range s.queue {
			if queued == sess {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
	}
	if sess.state == StateRunning && sess.cancel != nil {
		sess.cancel()
	}

	sess.state = StateCancelled
	sess.completedAt = time.Now()
	if s.metrics != nil {
		s.metrics.SessionsTotal.WithLabelValues(string(StateCancelled)).Inc()
	}
	s.logger.Infof("session %s cancelled", sess.id)
	if s.listener != nil {
		s.listener.SessionCancelled(sess.view())
	}
}

// tickLocked starts queued sessions while capacity allows, in FIFO
// order. It never yields between checking capacity and marking a session
// running, which is what maintains the concurrency invariant.
func (s *Scheduler) tickLocked() {
	for s.running < s.maxConcurrency && len(s.queue) > 0 {
		sess := s.queue[0]
		s.queue = s.queue[1:]

		runCtx, cancel := context.WithCancel(context.Background())
		sess.state = StateRunning
		sess.startedAt = time.Now()
		sess.cancel = cancel
		s.running++

		s.logger.Infof("session %s started (%d/%d slots)", sess.id, s.running, s.maxConcurrency)
		if s.listener != nil {
			s.listener.SessionStarted(sess.view())
		}

		s.wg.Add(1)
		go s.execute(runCtx, sess)
	}
}

// execute runs one session to completion and finalizes its state.
func (s *Scheduler) execute(ctx context.Context, sess *session) {
	defer s.wg.Done()

	onLog := func(stream, line string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil && sess.state == StateRunning {
			s.listener.SessionLog(sess.view(), stream, line)
		}
	}

	result, err := s.executor.Execute(ctx, sess.id, sess.request, onLog)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--

	if sess.state == StateCancelled {
		// The client already received its terminal event; the late
		// result is discarded.
		s.logger.Debugf("session %s finished after cancellation, result discarded", sess.id)
	} else {
		s.finalizeLocked(sess, result, err)
	}

	s.tickLocked()
	s.updateGaugesLocked()
}

// finalizeLocked records the terminal state and result of a run and
// notifies the listener exactly once.
func (s *Scheduler) finalizeLocked(sess *session, result *types.RunResult, err error) {
	sess.completedAt = time.Now()

	if err != nil || result == nil {
		message := "runner produced no result"
		if err != nil {
			message = err.Error()
		}
		sess.state = StateError
		sess.result = &types.RunResult{Status: types.StatusError, Error: message}
	} else {
		sess.result = result
		switch result.Status {
		case types.StatusPassed:
			sess.state = StateCompleted
		case types.StatusFailed:
			sess.state = StateFailed
		default:
			sess.state = StateError
		}
	}

	duration := sess.completedAt.Sub(sess.startedAt)
	if s.completedRuns == 0 {
		s.avgDuration = duration
	} else {
		s.avgDuration = (s.avgDuration*time.Duration(s.completedRuns) + duration) / time.Duration(s.completedRuns+1)
	}
	s.completedRuns++

	if s.metrics != nil {
		s.metrics.SessionsTotal.WithLabelValues(string(sess.state)).Inc()
		s.metrics.RunDurationSec.Observe(duration.Seconds())
	}
	s.logger.Infof("session %s finished: %s", sess.id, sess.state)
	if s.listener != nil {
		s.listener.SessionFinished(sess.view())
	}
}

// estimatedWaitLocked is the advisory wait estimate reported to clients:
// zero when a slot is free, otherwise scaled by queue depth and the
// average run duration.
func (s *Scheduler) estimatedWaitLocked() int64 {
	if s.running < s.maxConcurrency {
		return 0
	}
	return int64(len(s.queue)) * s.avgDuration.Milliseconds() / int64(s.maxConcurrency)
}

func (s *Scheduler) updateGaugesLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.QueueDepth.Set(float64(len(s.queue)))
	s.metrics.RunningCount.Set(float64(s.running))
}
