// Package protocol implements the persistent WebSocket surface of the
// orchestration server: a JSON message envelope, per-connection read and
// write pumps, and a dispatcher that routes inbound messages to the
// scheduler and streams run lifecycle events back to the owning client.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/entrhq/pilot/pkg/scheduler"
	"github.com/entrhq/pilot/pkg/types"
)

// Version identifies the wire protocol. Advertised in the handshake
// response and the capabilities listing.
const Version = "1.0"

// Envelope is the bidirectional message frame. Data is left raw so each
// handler can decode its own payload shape.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Inbound message types.
const (
	TypeHandshake        = "handshake"
	TypeRunTest          = "run_test"
	TypeCancelTest       = "cancel_test"
	TypeGetStatus        = "get_status"
	TypeListCapabilities = "list_capabilities"
	TypePing             = "ping"
	TypeBrowserCommand   = "browser_command"
)

// Outbound message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeHandshakeResponse     = "handshake_response"
	TypeTestQueued            = "test_queued"
	TypeTestStarted           = "test_started"
	TypeTestLog               = "test_log"
	TypeTestCompleted         = "test_completed"
	TypeTestCancelled         = "test_cancelled"
	TypeTestStatus            = "test_status"
	TypeCapabilities          = "capabilities"
	TypeError                 = "error"
	TypePong                  = "pong"
	TypeBrowserResult         = "browser_result"
)

// ConnectionEstablishedData greets a client with its assigned identity.
type ConnectionEstablishedData struct {
	ClientID        string `json:"clientId"`
	ProtocolVersion string `json:"protocolVersion"`
}

// HandshakeData is the optional client self-identification payload.
type HandshakeData struct {
	ClientName    string `json:"clientName,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// HandshakeResponseData acknowledges a handshake.
type HandshakeResponseData struct {
	ClientID        string    `json:"clientId"`
	ProtocolVersion string    `json:"protocolVersion"`
	ServerTime      time.Time `json:"serverTime"`
}

// SessionRefData identifies an existing session in cancel and status
// requests.
type SessionRefData struct {
	SessionID string `json:"sessionId"`
}

// TestQueuedData reports admission of a run into the queue.
type TestQueuedData struct {
	SessionID       string `json:"sessionId"`
	QueuePosition   int    `json:"queuePosition"`
	EstimatedWaitMs int64  `json:"estimatedWaitMs"`
}

// TestStartedData reports a run leaving the queue.
type TestStartedData struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// TestLogData carries one line of subprocess output.
type TestLogData struct {
	SessionID string `json:"sessionId"`
	Stream    string `json:"stream"`
	Message   string `json:"message"`
}

// TestCompletedData is the terminal event for a finished run.
type TestCompletedData struct {
	SessionID string           `json:"sessionId"`
	Status    string           `json:"status"`
	Result    *types.RunResult `json:"result,omitempty"`
}

// TestCancelledData is the terminal event for a cancelled run.
type TestCancelledData struct {
	SessionID string `json:"sessionId"`
}

// TestStatusData answers a status query with a session snapshot.
type TestStatusData struct {
	Session         scheduler.SessionView `json:"session"`
	QueuePosition   int                   `json:"queuePosition"`
	EstimatedWaitMs int64                 `json:"estimatedWaitMs"`
}

// CapabilitiesData advertises what the server can do.
type CapabilitiesData struct {
	ProtocolVersion string   `json:"protocolVersion"`
	Browsers        []string `json:"browsers"`
	Actions         []string `json:"actions"`
	BrowserCommands []string `json:"browserCommands,omitempty"`
	MaxConcurrency  int      `json:"maxConcurrency"`
}

// ErrorData describes a request failure. Details is optional context
// such as the offending session id.
type ErrorData struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// envelope builds an outbound frame, marshalling the payload. A payload
// that fails to marshal degrades to an empty data field.
func envelope(msgType, requestID string, data interface{}) Envelope {
	env := Envelope{
		Type:      msgType,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			env.Data = raw
		}
	}
	return env
}
