package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Facade owns a single shared browser session for interactive commands.
// All commands serialize on one page; the session starts lazily on the
// first command and stays open until Close.
type Facade struct {
	mu      sync.Mutex
	opts    FacadeOptions
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	started bool
}

// NewFacade creates a façade with the given options. No browser process
// is launched until the first command runs.
func NewFacade(opts FacadeOptions) *Facade {
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Facade{opts: opts}
}

// Install downloads the Playwright driver and browsers. Output is
// discarded so it does not interleave with structured logs.
func Install() error {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	return nil
}

// start launches the browser session. Callers must hold f.mu.
func (f *Facade) start() error {
	if f.started {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &f.opts.Headless,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(f.opts.Timeout)

	f.pw = pw
	f.browser = browser
	f.context = bctx
	f.page = page
	f.started = true
	return nil
}

// Do executes a single command against the shared page. Commands are
// validated before the browser session is started, so a malformed
// command never launches a browser.
func (f *Facade) Do(ctx context.Context, cmd Command) (*CommandResult, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.start(); err != nil {
		return nil, err
	}

	res := &CommandResult{ExecutedAt: time.Now()}

	switch cmd.Name {
	case CommandNavigate:
		if _, err := f.page.Goto(cmd.URL); err != nil {
			return nil, fmt.Errorf("navigation failed: %w", err)
		}
	case CommandClick:
		if err := f.page.Click(cmd.Selector); err != nil {
			return nil, fmt.Errorf("click failed: %w", err)
		}
	case CommandFill:
		if err := f.page.Fill(cmd.Selector, cmd.Value); err != nil {
			return nil, fmt.Errorf("fill failed: %w", err)
		}
	case CommandEvaluate:
		value, err := f.page.Evaluate(cmd.Value)
		if err != nil {
			return nil, fmt.Errorf("evaluate failed: %w", err)
		}
		res.Text = fmt.Sprintf("%v", value)
	case CommandScreenshot:
		data, err := f.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("screenshot failed: %w", err)
		}
		res.Screenshot = base64.StdEncoding.EncodeToString(data)
	case CommandContent:
		text, err := f.extractText(cmd.Selector)
		if err != nil {
			return nil, err
		}
		res.Text = text
	}

	res.URL = f.page.URL()
	if title, err := f.page.Title(); err == nil {
		res.Title = title
	}
	return res, nil
}

// extractText returns the text content of the selector, or of the page
// body when no selector is given. Callers must hold f.mu.
func (f *Facade) extractText(selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}
	element, err := f.page.QuerySelector(selector)
	if err != nil {
		return "", fmt.Errorf("selector query failed: %w", err)
	}
	if element == nil {
		return "", fmt.Errorf("no element found matching selector: %s", selector)
	}
	text, err := element.TextContent()
	if err != nil {
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	return text, nil
}

// Close shuts down the shared session and stops the Playwright driver.
// Safe to call when the session was never started, and idempotent.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return nil
	}

	_ = f.page.Close()    // Ignore errors, continue cleanup
	_ = f.context.Close() // Ignore errors, continue cleanup
	_ = f.browser.Close() // Ignore errors, continue cleanup

	f.started = false
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		f.pw = nil
	}
	return nil
}
