package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/pilot/pkg/browser"
	"github.com/entrhq/pilot/pkg/instruction"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/scheduler"
	"github.com/entrhq/pilot/pkg/script"
	"github.com/entrhq/pilot/pkg/types"
)

// Options configures the protocol server.
type Options struct {
	// MaxConcurrency bounds simultaneous runs. Zero means one.
	MaxConcurrency int

	// Metrics, when set, records scheduler activity.
	Metrics *scheduler.Metrics

	// Facade, when set, enables interactive browser_command messages
	// against a shared live browser session.
	Facade *browser.Facade

	// Logger defaults to a component logger when nil.
	Logger *logging.Logger

	// RunDefaults, when set, fills unset run configuration fields on
	// each submission.
	RunDefaults func(*types.RunConfig)
}

// Server owns the WebSocket endpoint and its scheduler. It receives run
// lifecycle events as the scheduler's listener and forwards each one to
// the client that submitted the session.
type Server struct {
	log         *logging.Logger
	sched       *scheduler.Scheduler
	facade      *browser.Facade
	runDefaults func(*types.RunConfig)
	upgrader    websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// NewServer builds a server around the given run executor. The server
// registers itself as the scheduler's event listener.
func NewServer(executor scheduler.RunExecutor, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log, _ = logging.NewLogger("protocol")
	}

	s := &Server{
		log:         log,
		facade:      opts.Facade,
		runDefaults: opts.RunDefaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
		clients: make(map[string]*client),
	}
	s.sched = scheduler.New(executor, scheduler.Options{
		MaxConcurrency: opts.MaxConcurrency,
		Listener:       s,
		Metrics:        opts.Metrics,
	})
	return s
}

// Scheduler exposes the underlying scheduler for drain-on-shutdown.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Router returns the HTTP surface: the WebSocket endpoint plus health
// and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queued, running := s.sched.ActiveCounts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"queued":  queued,
		"running": running,
	})
}

// HandleWebSocket upgrades the connection, assigns a client identity,
// and starts the read and write pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(uuid.New().String(), conn)

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.log.Infof("client %s connected from %s", c.id, r.RemoteAddr)

	c.enqueue(envelope(TypeConnectionEstablished, "", ConnectionEstablishedData{
		ClientID:        c.id,
		ProtocolVersion: Version,
	}))

	go c.writePump()
	go s.readPump(c)
}

// ActiveClients returns the number of connected clients.
func (s *Server) ActiveClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown disconnects every client. In-flight runs are left to the
// scheduler; callers drain via Scheduler().Wait.
func (s *Server) Shutdown() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.cancel()
		c.conn.Close()
	}
}

// unregister drops the client and cancels everything it owns. Called
// once from readPump when the connection ends.
func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, present := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()

	if present {
		s.log.Infof("client %s disconnected", c.id)
		s.sched.DisconnectClient(c.id)
	}
}

// handle dispatches one inbound envelope.
func (s *Server) handle(c *client, env Envelope) {
	switch env.Type {
	case TypeHandshake:
		s.handleHandshake(c, env)
	case TypeRunTest:
		s.handleRunTest(c, env)
	case TypeCancelTest:
		s.handleCancelTest(c, env)
	case TypeGetStatus:
		s.handleGetStatus(c, env)
	case TypeListCapabilities:
		s.handleListCapabilities(c, env)
	case TypePing:
		c.enqueue(envelope(TypePong, env.RequestID, nil))
	case TypeBrowserCommand:
		s.handleBrowserCommand(c, env)
	default:
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: fmt.Sprintf("unknown message type: %s", env.Type),
		}))
	}
}

func (s *Server) handleHandshake(c *client, env Envelope) {
	var data HandshakeData
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &data) // identity fields are advisory
	}
	if data.ClientName != "" {
		s.log.Infof("client %s identified as %s %s", c.id, data.ClientName, data.ClientVersion)
	}
	c.enqueue(envelope(TypeHandshakeResponse, env.RequestID, HandshakeResponseData{
		ClientID:        c.id,
		ProtocolVersion: Version,
		ServerTime:      time.Now().UTC(),
	}))
}

func (s *Server) handleRunTest(c *client, env Envelope) {
	var req types.RunRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: "invalid run_test payload",
			Details: err.Error(),
		}))
		return
	}

	if s.runDefaults != nil {
		s.runDefaults(&req.Config)
	}

	// Instructions are compiled server-side when no ready script is
	// supplied.
	if req.ScriptSource == "" {
		if req.Instructions == "" {
			c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
				Message: "run_test requires scriptSource or instructions",
			}))
			return
		}
		steps := instruction.Parse(req.Instructions)
		name := req.Name
		if name == "" {
			name = "generated test"
		}
		source, err := script.NewGenerator().Generate(name, steps, req.Config)
		if err != nil {
			if errors.Is(err, script.ErrNoSteps) {
				c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
					Message: "instructions produced no executable steps",
				}))
				return
			}
			c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
				Message: "script generation failed",
				Details: err.Error(),
			}))
			return
		}
		req.ScriptSource = source
	}

	view, _, _ := s.sched.Submit(req, c.id, env.RequestID)
	s.log.Infof("client %s submitted session %s", c.id, view.ID)
}

func (s *Server) handleCancelTest(c *client, env Envelope) {
	var data SessionRefData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.SessionID == "" {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: "cancel_test requires a sessionId",
		}))
		return
	}

	if err := s.sched.Cancel(data.SessionID, c.id); err != nil {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: cancelErrorMessage(err),
			Details: data.SessionID,
		}))
	}
}

func cancelErrorMessage(err error) string {
	switch {
	case errors.Is(err, scheduler.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, scheduler.ErrNotOwner):
		return "session belongs to another client"
	default:
		return err.Error()
	}
}

func (s *Server) handleGetStatus(c *client, env Envelope) {
	var data SessionRefData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.SessionID == "" {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: "get_status requires a sessionId",
		}))
		return
	}

	view, pos, waitMs, err := s.sched.Status(data.SessionID, c.id)
	if err != nil {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: cancelErrorMessage(err),
			Details: data.SessionID,
		}))
		return
	}

	c.enqueue(envelope(TypeTestStatus, env.RequestID, TestStatusData{
		Session:         view,
		QueuePosition:   pos,
		EstimatedWaitMs: waitMs,
	}))
}

func (s *Server) handleListCapabilities(c *client, env Envelope) {
	caps := CapabilitiesData{
		ProtocolVersion: Version,
		Browsers: []string{
			string(types.BrowserChromium),
			string(types.BrowserFirefox),
			string(types.BrowserWebkit),
		},
		Actions:        instruction.SupportedActions(),
		MaxConcurrency: s.sched.MaxConcurrency(),
	}
	if s.facade != nil {
		caps.BrowserCommands = browser.CommandNames()
	}
	c.enqueue(envelope(TypeCapabilities, env.RequestID, caps))
}

func (s *Server) handleBrowserCommand(c *client, env Envelope) {
	if s.facade == nil {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: "live browser commands are disabled",
		}))
		return
	}

	var cmd browser.Command
	if err := json.Unmarshal(env.Data, &cmd); err != nil {
		c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
			Message: "invalid browser_command payload",
			Details: err.Error(),
		}))
		return
	}

	// Browser commands can block on page interaction, so they run off
	// the read loop. The façade serializes them internally.
	go func() {
		res, err := s.facade.Do(c.ctx, cmd)
		if err != nil {
			c.enqueue(envelope(TypeError, env.RequestID, ErrorData{
				Message: "browser command failed",
				Details: err.Error(),
			}))
			return
		}
		c.enqueue(envelope(TypeBrowserResult, env.RequestID, res))
	}()
}

// sendToOwner delivers an event envelope to the client owning the
// session, if still connected. Shed log events are only logged, but a
// lifecycle envelope that cannot be queued means the client has stopped
// reading entirely; the connection is closed so the disconnect cascade
// settles the client's sessions instead of leaving them without a
// terminal event.
func (s *Server) sendToOwner(v scheduler.SessionView, env Envelope) {
	s.mu.RLock()
	c, ok := s.clients[v.ClientID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if c.enqueue(env) {
		return
	}
	if env.Type == TypeTestLog {
		s.log.Warnf("shedding %s for session %s: client %s buffer full", env.Type, v.ID, v.ClientID)
		return
	}
	s.log.Errorf("client %s not draining, closing: cannot deliver %s for session %s", v.ClientID, env.Type, v.ID)
	c.close()
}

// Scheduler listener hooks. These run with the scheduler lock held and
// only enqueue onto the owner's buffered channel.

// SessionQueued forwards queue admission to the owner.
func (s *Server) SessionQueued(v scheduler.SessionView, queuePosition int, estimatedWaitMs int64) {
	s.sendToOwner(v, envelope(TypeTestQueued, v.RequestID, TestQueuedData{
		SessionID:       v.ID,
		QueuePosition:   queuePosition,
		EstimatedWaitMs: estimatedWaitMs,
	}))
}

// SessionStarted forwards run start to the owner.
func (s *Server) SessionStarted(v scheduler.SessionView) {
	data := TestStartedData{SessionID: v.ID}
	if v.StartedAt != nil {
		data.StartedAt = *v.StartedAt
	}
	s.sendToOwner(v, envelope(TypeTestStarted, v.RequestID, data))
}

// SessionLog forwards one line of run output to the owner.
func (s *Server) SessionLog(v scheduler.SessionView, stream, message string) {
	s.sendToOwner(v, envelope(TypeTestLog, v.RequestID, TestLogData{
		SessionID: v.ID,
		Stream:    stream,
		Message:   message,
	}))
}

// SessionFinished forwards the terminal result to the owner.
func (s *Server) SessionFinished(v scheduler.SessionView) {
	data := TestCompletedData{
		SessionID: v.ID,
		Status:    string(v.State),
		Result:    v.Result,
	}
	s.sendToOwner(v, envelope(TypeTestCompleted, v.RequestID, data))
}

// SessionCancelled forwards cancellation to the owner.
func (s *Server) SessionCancelled(v scheduler.SessionView) {
	s.sendToOwner(v, envelope(TypeTestCancelled, v.RequestID, TestCancelledData{
		SessionID: v.ID,
	}))
}

var _ scheduler.Listener = (*Server)(nil)
