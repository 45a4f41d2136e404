package instruction

import (
	"regexp"
	"strings"
)

var ordinalRe = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*]\s+)`)

// Parse converts free-form instruction text into an ordered step
// sequence. Each non-blank line produces exactly one step, in input
// order, with 1-based indexes. Lines matching no rule become custom
// steps carrying the raw text as target. Parse never fails; empty or
// whitespace-only input yields an empty sequence.
func Parse(text string) []Step {
	var steps []Step
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = ordinalRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		step := matchLine(line)
		step.Raw = line
		step.Index = len(steps) + 1
		steps = append(steps, enhance(step))
	}
	return steps
}

// matchLine runs the line through the rule table in priority order.
func matchLine(line string) Step {
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(line); m != nil {
			return r.build(m)
		}
	}
	return Step{Action: ActionCustom, Target: line}
}

// enhance applies the post-processing pass: filler words are stripped
// from targets, wrapping quotes from values, verify steps default to a
// visibility assertion, and interaction steps are flagged for a
// stability pre-wait.
func enhance(s Step) Step {
	if s.Action != ActionCustom {
		s.Target = cleanTarget(s.Target)
	}
	s.Value = stripQuotes(s.Value)

	if s.Action == ActionVerify && s.Assertion == "" {
		s.Assertion = AssertionVisible
	}
	if s.Action == ActionClick || s.Action == ActionFill {
		s.Annotations = append(s.Annotations, AnnotationStabilityWait)
	}
	return s
}

// cleanTarget strips filler words that describe rather than identify the
// element: a leading "the" and trailing "field"/"element".
func cleanTarget(t string) string {
	t = strings.TrimSpace(t)
	if len(t) > 4 && strings.EqualFold(t[:4], "the ") {
		t = t[4:]
	}
	for _, suffix := range []string{" field", " element"} {
		if len(t) > len(suffix) && strings.EqualFold(t[len(t)-len(suffix):], suffix) {
			t = strings.TrimSpace(t[:len(t)-len(suffix)])
		}
	}
	return strings.TrimSpace(t)
}

// stripQuotes removes one pair of wrapping single or double quotes.
func stripQuotes(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
