// Package instruction converts plain-language test instructions into an
// ordered sequence of structured automation steps.
//
// Parsing is deterministic and rule-based: each non-blank input line is
// matched against a fixed-priority rule table, and lines matching no rule
// degrade to custom steps so input is never dropped.
package instruction

// Action identifies the kind of browser interaction a step performs.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionFill       Action = "fill"
	ActionSelect     Action = "select"
	ActionWait       Action = "wait"
	ActionVerify     Action = "verify"
	ActionHover      Action = "hover"
	ActionPressKey   Action = "pressKey"
	ActionScreenshot Action = "screenshot"
	ActionCustom     Action = "custom"
)

// SupportedActions lists the actions the rule table can produce, in a
// stable order, for capability advertisement.
func SupportedActions() []string {
	return []string{
		string(ActionNavigate),
		string(ActionClick),
		string(ActionFill),
		string(ActionSelect),
		string(ActionWait),
		string(ActionVerify),
		string(ActionHover),
		string(ActionPressKey),
		string(ActionScreenshot),
		string(ActionCustom),
	}
}

// Assertion qualifiers attached to verify steps.
const (
	AssertionVisible  = "visible"
	AssertionContains = "contains"
)

// AnnotationStabilityWait marks interaction steps that should wait for
// their element to be visible before acting on it.
const AnnotationStabilityWait = "stability-wait"

// Step is a single structured action derived from one instruction line.
// Steps are immutable once produced by Parse.
type Step struct {
	// Index is the 1-based position of the step in the instruction text.
	Index int `json:"index"`

	// Action is the interaction kind, drawn from the closed vocabulary.
	Action Action `json:"action"`

	// Target names the element or destination the action applies to.
	Target string `json:"target,omitempty"`

	// Value carries input text, wait durations, or expected content.
	Value string `json:"value,omitempty"`

	// Assertion qualifies verify steps ("visible" or "contains").
	Assertion string `json:"assertion,omitempty"`

	// Raw preserves the cleaned instruction line for script comments.
	Raw string `json:"raw"`

	// Annotations carries hints for the script generator.
	Annotations []string `json:"annotations,omitempty"`
}

// HasAnnotation reports whether the step carries the named annotation.
func (s Step) HasAnnotation(name string) bool {
	for _, a := range s.Annotations {
		if a == name {
			return true
		}
	}
	return false
}
