package browser

import "time"

// Default façade settings.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeout        = 30000 // milliseconds
)

// CommandName is the closed vocabulary of façade commands.
type CommandName string

const (
	CommandNavigate   CommandName = "navigate"
	CommandClick      CommandName = "click"
	CommandFill       CommandName = "fill"
	CommandEvaluate   CommandName = "evaluate"
	CommandScreenshot CommandName = "screenshot"
	CommandContent    CommandName = "content"
)

// Command is one synchronous request against the shared browser page.
type Command struct {
	Name     CommandName `json:"command"`
	URL      string      `json:"url,omitempty"`
	Selector string      `json:"selector,omitempty"`
	Value    string      `json:"value,omitempty"`
}

// CommandResult is the response to a façade command. Screenshot data is
// base64-encoded PNG.
type CommandResult struct {
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// FacadeOptions configures the shared browser session.
type FacadeOptions struct {
	// Headless controls whether the browser runs without a window.
	Headless bool

	// Viewport sets the page viewport; zero values use the defaults.
	ViewportWidth  int
	ViewportHeight int

	// Timeout is the default operation timeout in milliseconds.
	Timeout float64
}
