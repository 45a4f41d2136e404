package script

import (
	"fmt"
	"regexp"
	"strings"
)

// synonyms maps well-known element descriptions to concrete selectors.
// Entries are checked in slice order as case-insensitive substring
// matches, so the resolution stays deterministic.
var synonyms = []struct {
	phrase   string
	selector string
}{
	{"login button", `button[type="submit"]`},
	{"sign in button", `button[type="submit"]`},
	{"submit button", `button[type="submit"]`},
	{"search box", `input[type="search"]`},
	{"search bar", `input[type="search"]`},
	{"username", `input[name="username"]`},
	{"password", `input[type="password"]`},
	{"email", `input[type="email"]`},
	{"checkbox", `input[type="checkbox"]`},
}

var (
	buttonWordRe = regexp.MustCompile(`(?i)\bbutton\b`)
	linkWordRe   = regexp.MustCompile(`(?i)\blink\b`)
	quotedTextRe = regexp.MustCompile(`["']([^"']+)["']`)
	testIDBadRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Selector resolves a free-text element description to a Playwright
// selector. Resolution order is fixed: raw selectors pass through
// verbatim, then the synonym table, then button/link text extraction,
// then a combined test-id and text fallback. The same target always
// produces the same selector.
func Selector(target string) string {
	t := strings.TrimSpace(target)
	if t == "" {
		return "body"
	}
	if looksLikeSelector(t) {
		return t
	}

	lower := strings.ToLower(t)
	for _, syn := range synonyms {
		if strings.Contains(lower, syn.phrase) {
			return syn.selector
		}
	}

	if buttonWordRe.MatchString(t) {
		text := strings.TrimSpace(buttonWordRe.ReplaceAllString(t, ""))
		return fmt.Sprintf(`button:has-text("%s")`, escapeQuotes(text))
	}

	if linkWordRe.MatchString(t) {
		return fmt.Sprintf(`a:has-text("%s")`, escapeQuotes(linkText(t)))
	}

	return fmt.Sprintf(`[data-testid="%s"], text=%s`, testID(t), escapeQuotes(t))
}

// looksLikeSelector reports whether the target is already a raw CSS
// selector rather than a description.
func looksLikeSelector(t string) bool {
	return strings.Contains(t, "[") || strings.HasPrefix(t, "#") || strings.HasPrefix(t, ".")
}

// linkText extracts the anchor text from a link description, supporting
// both `link "text"` and `"text" link` orderings.
func linkText(t string) string {
	if m := quotedTextRe.FindStringSubmatch(t); m != nil {
		return m[1]
	}
	return strings.TrimSpace(strings.Trim(linkWordRe.ReplaceAllString(t, ""), " ,"))
}

// testID derives a test-id attribute value from a description: lowered,
// with runs of non-alphanumeric characters collapsed to single dashes.
func testID(t string) string {
	id := testIDBadRe.ReplaceAllString(strings.ToLower(t), "-")
	return strings.Trim(id, "-")
}

// escapeQuotes escapes double quotes in literal text inserted into a
// selector so the resulting selector string stays valid.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
