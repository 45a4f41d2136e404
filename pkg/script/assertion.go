package script

import (
	"fmt"
	"strings"

	"github.com/entrhq/pilot/pkg/instruction"
)

// nounSelectors maps the generic nouns a verify target can consist of to
// their element-appropriate matcher. When the target is exactly one of
// these nouns and a value is present, the selector is built from the
// value directly instead of running the general heuristic on the noun.
var nounSelectors = map[string]string{
	"link":    "a",
	"button":  "button",
	"element": "",
}

// writeAssertion emits the expectation for a verify step. A visibility
// assertion is produced when the assertion is "visible" or absent with
// no value; a contains-text assertion when the assertion indicates text
// content or a bare value is present.
func writeAssertion(b *strings.Builder, step instruction.Step) {
	target := strings.ToLower(strings.TrimSpace(step.Target))

	if elem, ok := nounSelectors[target]; ok && step.Value != "" {
		var sel string
		if elem == "" {
			sel = fmt.Sprintf("text=%s", escapeQuotes(step.Value))
		} else {
			sel = fmt.Sprintf(`%s:has-text("%s")`, elem, escapeQuotes(step.Value))
		}
		// The value is folded into the selector, so toBeVisible already
		// covers contains assertions: the locator only matches an
		// element carrying that text.
		fmt.Fprintf(b, "  await expect(page.locator(%s)).toBeVisible();\n", jsString(sel))
		return
	}

	sel := Selector(step.Target)
	if containsAssertion(step) {
		fmt.Fprintf(b, "  await expect(page.locator(%s)).toContainText(%s);\n", jsString(sel), jsString(step.Value))
		return
	}
	fmt.Fprintf(b, "  await expect(page.locator(%s)).toBeVisible();\n", jsString(sel))
}

// containsAssertion decides between the text-content and visibility
// expectations for a verify step.
func containsAssertion(step instruction.Step) bool {
	a := strings.ToLower(step.Assertion)
	if strings.Contains(a, "contain") || strings.Contains(a, "text") {
		return true
	}
	return a == "" && step.Value != ""
}
