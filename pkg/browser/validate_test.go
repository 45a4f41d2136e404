package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr string
	}{
		{
			name: "navigate with url",
			cmd:  Command{Name: CommandNavigate, URL: "https://example.com"},
		},
		{
			name:    "navigate without url",
			cmd:     Command{Name: CommandNavigate},
			wantErr: "requires a url",
		},
		{
			name: "click with selector",
			cmd:  Command{Name: CommandClick, Selector: "#submit"},
		},
		{
			name:    "click without selector",
			cmd:     Command{Name: CommandClick},
			wantErr: "requires a selector",
		},
		{
			name: "fill with selector and value",
			cmd:  Command{Name: CommandFill, Selector: "#email", Value: "a@b.test"},
		},
		{
			name:    "fill without value",
			cmd:     Command{Name: CommandFill, Selector: "#email"},
			wantErr: "requires a value",
		},
		{
			name: "evaluate with code",
			cmd:  Command{Name: CommandEvaluate, Value: "document.title"},
		},
		{
			name:    "evaluate without code",
			cmd:     Command{Name: CommandEvaluate},
			wantErr: "requires a value",
		},
		{
			name: "screenshot needs nothing",
			cmd:  Command{Name: CommandScreenshot},
		},
		{
			name: "content needs nothing",
			cmd:  Command{Name: CommandContent},
		},
		{
			name:    "missing name",
			cmd:     Command{},
			wantErr: "missing command name",
		},
		{
			name:    "unknown command",
			cmd:     Command{Name: "teleport"},
			wantErr: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cmd)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestCommandNames(t *testing.T) {
	names := CommandNames()
	assert.Len(t, names, 6)
	assert.Equal(t, "navigate", names[0])

	// Every advertised name must validate with suitable fields.
	for _, n := range names {
		cmd := Command{
			Name:     CommandName(n),
			URL:      "https://example.com",
			Selector: "#x",
			Value:    "v",
		}
		assert.NoError(t, Validate(cmd), n)
	}
}
