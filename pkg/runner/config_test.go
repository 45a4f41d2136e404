package runner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/types"
)

func TestRenderConfig_Defaults(t *testing.T) {
	src := renderConfig(types.RunConfig{})

	assert.Contains(t, src, "reporter: [['json', { outputFile: 'report.json' }]],")
	assert.Contains(t, src, "timeout: 60000,")
	assert.Contains(t, src, "retries: 0,")
	assert.Contains(t, src, "workers: 1,")
	assert.Contains(t, src, `projects: [{ name: "chromium", use: { browserName: "chromium" } }],`)
}

func TestRenderConfig_RecognizedOptions(t *testing.T) {
	cfg := types.RunConfig{
		Browser:   types.BrowserFirefox,
		Headless:  true,
		TimeoutMs: 90000,
		Retries:   2,
		BaseURL:   "https://staging.example.com",
		Viewport:  &types.Viewport{Width: 1920, Height: 1080},
	}
	src := renderConfig(cfg)

	assert.Contains(t, src, `baseURL: "https://staging.example.com",`)
	assert.Contains(t, src, "headless: true,")
	assert.Contains(t, src, "viewport: { width: 1920, height: 1080 },")
	assert.Contains(t, src, "timeout: 90000,")
	assert.Contains(t, src, "retries: 2,")
	assert.Contains(t, src, `browserName: "firefox"`)
}

func TestRenderConfig_ParallelDropsWorkerCap(t *testing.T) {
	src := renderConfig(types.RunConfig{Parallel: true})
	assert.NotContains(t, src, "workers:")
}

func TestRenderConfig_UnrecognizedKeysPassThrough(t *testing.T) {
	var cfg types.RunConfig
	payload := `{"headless": true, "locale": "de-DE", "colorScheme": "dark"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))

	src := renderConfig(cfg)
	assert.Contains(t, src, `"colorScheme": "dark",`)
	assert.Contains(t, src, `"locale": "de-DE",`)

	// Extras are sorted for deterministic output.
	assert.Less(t, strings.Index(src, "colorScheme"), strings.Index(src, "locale"))
}

func TestRenderConfig_InvalidBrowserFallsBack(t *testing.T) {
	src := renderConfig(types.RunConfig{Browser: "netscape"})
	assert.Contains(t, src, `browserName: "chromium"`)
}
