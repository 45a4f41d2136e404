package runner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/pilot/pkg/types"
)

// renderConfig emits the Playwright configuration for one run. The
// recognized options are mapped explicitly; unrecognized keys from the
// request are spread into the `use` block without interpretation.
func renderConfig(cfg types.RunConfig) string {
	browser := cfg.Browser
	if !browser.Valid() {
		browser = types.BrowserChromium
	}
	timeout := cfg.TimeoutMs
	if timeout <= 0 {
		timeout = types.DefaultRunConfig().TimeoutMs
	}
	workers := 1
	if cfg.Parallel {
		workers = 0 // let the tool pick worker count
	}

	var b strings.Builder
	b.WriteString("import { defineConfig } from '@playwright/test';\n\n")
	b.WriteString("export default defineConfig({\n")
	b.WriteString("  testDir: '.',\n")
	fmt.Fprintf(&b, "  timeout: %d,\n", timeout)
	fmt.Fprintf(&b, "  retries: %d,\n", cfg.Retries)
	if workers > 0 {
		fmt.Fprintf(&b, "  workers: %d,\n", workers)
	}
	b.WriteString("  reporter: [['json', { outputFile: 'report.json' }]],\n")
	b.WriteString("  outputDir: 'test-results',\n")
	b.WriteString("  use: {\n")
	if cfg.BaseURL != "" {
		fmt.Fprintf(&b, "    baseURL: %s,\n", jsonValue(cfg.BaseURL))
	}
	fmt.Fprintf(&b, "    headless: %t,\n", cfg.Headless)
	if cfg.Viewport != nil {
		fmt.Fprintf(&b, "    viewport: { width: %d, height: %d },\n", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	b.WriteString("    screenshot: 'only-on-failure',\n")
	b.WriteString("    video: 'retain-on-failure',\n")
	b.WriteString("    trace: 'retain-on-failure',\n")
	for _, key := range extraKeys(cfg.Extra) {
		fmt.Fprintf(&b, "    %s: %s,\n", jsonValue(key), strings.TrimSpace(string(cfg.Extra[key])))
	}
	b.WriteString("  },\n")
	fmt.Fprintf(&b, "  projects: [{ name: %s, use: { browserName: %s } }],\n",
		jsonValue(string(browser)), jsonValue(string(browser)))
	b.WriteString("});\n")
	return b.String()
}

// jsonValue renders v as a JSON literal, which is also valid inside the
// generated configuration file.
func jsonValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(data)
}

func extraKeys(extra map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
