// Package types defines the shared data model for run requests, run
// configuration, and run results exchanged between the script generator,
// the scheduler, the process runner, and the protocol layer.
package types

import "encoding/json"

// BrowserKind identifies the browser engine a run targets.
type BrowserKind string

const (
	BrowserChromium BrowserKind = "chromium"
	BrowserFirefox  BrowserKind = "firefox"
	BrowserWebkit   BrowserKind = "webkit"
)

// Valid reports whether the browser kind is one of the supported engines.
func (b BrowserKind) Valid() bool {
	switch b {
	case BrowserChromium, BrowserFirefox, BrowserWebkit:
		return true
	}
	return false
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AuthKind identifies the authentication mechanism injected into a
// generated script. Exactly one kind is active per script.
type AuthKind string

const (
	AuthBearer  AuthKind = "bearer"
	AuthBasic   AuthKind = "basic"
	AuthHeaders AuthKind = "headers"
	AuthCookie  AuthKind = "cookie"
)

// Cookie is a single cookie injected into the browser context before a
// run starts.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// AuthSpec describes how a generated script authenticates against the
// application under test.
type AuthSpec struct {
	Kind     AuthKind          `json:"kind"`
	Token    string            `json:"token,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Cookies  []Cookie          `json:"cookies,omitempty"`
}

// RunConfig enumerates the recognized run options. Keys the engine does
// not recognize are preserved in Extra and passed through opaquely to
// the underlying execution tool.
type RunConfig struct {
	Browser       BrowserKind       `json:"browserKind,omitempty"`
	Headless      bool              `json:"headless"`
	TimeoutMs     int               `json:"timeoutMs,omitempty"`
	Retries       int               `json:"retries,omitempty"`
	Parallel      bool              `json:"parallel,omitempty"`
	BaseURL       string            `json:"baseUrl,omitempty"`
	Viewport      *Viewport         `json:"viewport,omitempty"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
	Auth          *AuthSpec         `json:"authSpec,omitempty"`

	// Extra holds unrecognized configuration keys verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// recognized lists the RunConfig keys the engine interprets itself.
var recognized = map[string]bool{
	"browserKind":   true,
	"headless":      true,
	"timeoutMs":     true,
	"retries":       true,
	"parallel":      true,
	"baseUrl":       true,
	"viewport":      true,
	"customHeaders": true,
	"authSpec":      true,
}

// UnmarshalJSON decodes the recognized keys and stashes everything else
// in Extra so unknown options survive the round trip to the execution
// tool's configuration file.
func (c *RunConfig) UnmarshalJSON(data []byte) error {
	type alias RunConfig
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if recognized[key] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[key] = raw[key]
	}

	*c = RunConfig(a)
	return nil
}

// MarshalJSON re-emits recognized keys alongside any preserved extras.
func (c RunConfig) MarshalJSON() ([]byte, error) {
	type alias RunConfig
	data, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range c.Extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// DefaultRunConfig returns the run configuration defaults applied when a
// request leaves an option unset.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Browser:   BrowserChromium,
		Headless:  true,
		TimeoutMs: 60000,
		Viewport:  &Viewport{Width: 1280, Height: 720},
	}
}

// RunRequest is one submitted unit of work: the script to execute and
// the configuration to execute it under.
type RunRequest struct {
	Name         string    `json:"name,omitempty"`
	ScriptSource string    `json:"scriptSource"`
	Instructions string    `json:"instructions,omitempty"`
	Config       RunConfig `json:"config"`
}
