// Package script turns parsed instruction steps plus a run configuration
// into a self-contained Playwright test script.
//
// Code generation is a pure function of the step sequence: the same
// steps and configuration always produce the same script source.
package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/pilot/pkg/instruction"
	"github.com/entrhq/pilot/pkg/types"
)

// ErrNoSteps is returned when generation is attempted on an empty step
// sequence. This is the only failure mode; malformed individual steps
// degrade to placeholder comments instead of aborting generation.
var ErrNoSteps = errors.New("script: no steps to generate")

const defaultWaitMs = 1000

// Generator emits Playwright test scripts from step sequences.
type Generator struct{}

// NewGenerator creates a new script generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate produces the script source for the named test: a fixed
// import preamble, an optional custom-header helper, then one statement
// group per step in step order, each introduced by the original
// instruction line as a comment.
func (g *Generator) Generate(name string, steps []instruction.Step, cfg types.RunConfig) (string, error) {
	if len(steps) == 0 {
		return "", ErrNoSteps
	}
	if name == "" {
		name = "generated test"
	}

	var b strings.Builder
	b.WriteString("import { test, expect } from '@playwright/test';\n\n")

	if len(cfg.CustomHeaders) > 0 {
		writeHeaderHelper(&b, cfg.CustomHeaders)
	}

	fmt.Fprintf(&b, "test(%s, async ({ page, context }) => {\n", jsString(name))

	if len(cfg.CustomHeaders) > 0 {
		b.WriteString("  await applyCustomHeaders(context);\n")
	}
	if cfg.Auth != nil {
		writeAuth(&b, cfg.Auth)
	}

	for i, step := range steps {
		if i > 0 || len(cfg.CustomHeaders) > 0 || cfg.Auth != nil {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  // %d. %s\n", step.Index, step.Raw)
		g.writeStep(&b, name, step)
	}

	b.WriteString("});\n")
	return b.String(), nil
}

// writeStep emits the statement group for one step. Unrecognized actions
// produce a comment-only placeholder rather than failing the generation.
func (g *Generator) writeStep(b *strings.Builder, testName string, step instruction.Step) {
	switch step.Action {
	case instruction.ActionNavigate:
		dest := step.Target
		if dest == "" {
			dest = step.Value
		}
		fmt.Fprintf(b, "  await page.goto(%s);\n", jsString(dest))

	case instruction.ActionClick:
		sel := Selector(step.Target)
		writeStabilityWait(b, step, sel)
		fmt.Fprintf(b, "  await page.click(%s);\n", jsString(sel))

	case instruction.ActionHover:
		fmt.Fprintf(b, "  await page.hover(%s);\n", jsString(Selector(step.Target)))

	case instruction.ActionFill:
		sel := Selector(step.Target)
		writeStabilityWait(b, step, sel)
		fmt.Fprintf(b, "  await page.fill(%s, %s);\n", jsString(sel), jsString(step.Value))

	case instruction.ActionSelect:
		fmt.Fprintf(b, "  await page.selectOption(%s, %s);\n", jsString(Selector(step.Target)), jsString(step.Value))

	case instruction.ActionWait:
		if strings.Contains(strings.ToLower(step.Target), "element") {
			fmt.Fprintf(b, "  await page.waitForSelector(%s, { state: 'visible' });\n", jsString(Selector(step.Value)))
		} else {
			fmt.Fprintf(b, "  await page.waitForTimeout(%d);\n", waitMillis(step.Value))
		}

	case instruction.ActionVerify:
		writeAssertion(b, step)

	case instruction.ActionPressKey:
		key := step.Value
		if key == "" {
			key = step.Target
		}
		fmt.Fprintf(b, "  await page.keyboard.press(%s);\n", jsString(normalizeKey(key)))

	case instruction.ActionScreenshot:
		fmt.Fprintf(b, "  await page.screenshot({ path: %s, fullPage: true });\n", jsString(screenshotPath(testName, step)))

	default:
		fmt.Fprintf(b, "  // Unsupported step: %s\n", step.Raw)
	}
}

// writeStabilityWait emits a visibility wait ahead of interaction steps
// flagged by the parser.
func writeStabilityWait(b *strings.Builder, step instruction.Step, sel string) {
	if step.HasAnnotation(instruction.AnnotationStabilityWait) {
		fmt.Fprintf(b, "  await page.waitForSelector(%s, { state: 'visible' });\n", jsString(sel))
	}
}

// waitMillis parses a wait duration in milliseconds, defaulting when the
// value is unparsable.
func waitMillis(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return defaultWaitMs
	}
	return n
}

// screenshotPath builds a per-step capture filename. The step index
// keeps concurrent captures within one script from colliding.
func screenshotPath(testName string, step instruction.Step) string {
	label := step.Target
	if label == "" {
		label = testName
	}
	slug := testID(label)
	if slug == "" {
		slug = "capture"
	}
	return fmt.Sprintf("artifacts/step-%d-%s.png", step.Index, slug)
}

// playwrightKeys maps common key descriptions to Playwright key names.
var playwrightKeys = map[string]string{
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"space":     "Space",
	"spacebar":  "Space",
	"backspace": "Backspace",
	"delete":    "Delete",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
}

// normalizeKey translates a described key into its Playwright name,
// falling back to the input with the first letter upper-cased.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "Enter"
	}
	if mapped, ok := playwrightKeys[strings.ToLower(key)]; ok {
		return mapped
	}
	if len(key) == 1 {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// jsString renders s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}
