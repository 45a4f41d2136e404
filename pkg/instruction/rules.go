package instruction

import (
	"regexp"
	"strconv"
	"strings"
)

// rule matches one instruction shape and builds the corresponding step.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) Step
}

// rules is evaluated in table order and the first match wins. The order
// is load-bearing: several patterns can structurally match the same line
// (a generic verify also matches a contains-text verify), so specific
// rules must stay ahead of the generic ones they overlap.
var rules = []rule{
	{
		name: "navigate",
		re:   regexp.MustCompile(`(?i)^(?:go to|navigate to|open|visit)\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionNavigate, Target: m[1]}
		},
	},
	{
		name: "click",
		re:   regexp.MustCompile(`(?i)^(?:click|tap)(?:\s+on)?\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionClick, Target: m[1]}
		},
	},
	{
		name: "fill-quoted",
		re:   regexp.MustCompile(`(?i)^(?:type|enter|fill)\s+["'](.*)["']\s+(?:in|into)\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionFill, Target: m[2], Value: m[1]}
		},
	},
	{
		name: "fill-with",
		re:   regexp.MustCompile(`(?i)^fill\s+(?:in\s+)?(.+?)\s+with\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionFill, Target: m[1], Value: m[2]}
		},
	},
	{
		name: "fill-unquoted",
		re:   regexp.MustCompile(`(?i)^(?:type|enter)\s+(.+?)\s+(?:in|into)\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionFill, Target: m[2], Value: m[1]}
		},
	},
	{
		name: "select",
		re:   regexp.MustCompile(`(?i)^(?:select|choose)\s+(.+?)\s+(?:from|in)\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionSelect, Target: m[2], Value: m[1]}
		},
	},
	{
		name: "wait-duration",
		re:   regexp.MustCompile(`(?i)^wait(?:\s+for)?\s+(\d+)\s*(ms|milliseconds?|s|secs?|seconds?)?$`),
		build: func(m []string) Step {
			return Step{Action: ActionWait, Value: normalizeDuration(m[1], m[2])}
		},
	},
	{
		name: "wait-element",
		re:   regexp.MustCompile(`(?i)^wait\s+(?:for|until)\s+(.+?)\s+(?:to\s+(?:be\s+)?|is\s+)?(?:visible|appears?|loads?)$`),
		build: func(m []string) Step {
			return Step{Action: ActionWait, Target: "element", Value: m[1]}
		},
	},
	{
		name: "verify-visible",
		re:   regexp.MustCompile(`(?i)^(?:verify|check|assert|ensure|confirm)\s+(?:that\s+)?(.+?)\s+is\s+(?:visible|displayed|shown|present)$`),
		build: func(m []string) Step {
			return Step{Action: ActionVerify, Target: m[1], Assertion: AssertionVisible}
		},
	},
	{
		name: "verify-contains",
		re:   regexp.MustCompile(`(?i)^(?:verify|check|assert|ensure|confirm)\s+(?:that\s+)?(.+?)\s+(?:contains|shows|says|displays)\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionVerify, Target: m[1], Value: m[2], Assertion: AssertionContains}
		},
	},
	{
		name: "verify",
		re:   regexp.MustCompile(`(?i)^(?:verify|check|assert|ensure|confirm)\s+(?:that\s+)?(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionVerify, Target: m[1]}
		},
	},
	{
		name: "hover",
		re:   regexp.MustCompile(`(?i)^(?:hover|mouse)\s+over\s+(.+)$`),
		build: func(m []string) Step {
			return Step{Action: ActionHover, Target: m[1]}
		},
	},
	{
		name: "press-key",
		re:   regexp.MustCompile(`(?i)^(?:press|hit)\s+(?:the\s+)?(.+?)(?:\s+key)?$`),
		build: func(m []string) Step {
			return Step{Action: ActionPressKey, Value: m[1]}
		},
	},
	{
		name: "screenshot",
		re:   regexp.MustCompile(`(?i)^(?:(?:take|capture)\s+(?:a\s+)?)?screenshot(?:\s+of\s+(.+))?$`),
		build: func(m []string) Step {
			return Step{Action: ActionScreenshot, Target: m[1]}
		},
	},
}

// normalizeDuration converts a matched amount plus optional unit into a
// millisecond count. Bare numbers are treated as milliseconds.
func normalizeDuration(amount, unit string) string {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return amount
	}
	if strings.HasPrefix(strings.ToLower(unit), "s") {
		n *= 1000
	}
	return strconv.Itoa(n)
}
