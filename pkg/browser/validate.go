package browser

import "fmt"

// Validate checks that a command names a known operation and carries the
// fields that operation requires.
func Validate(cmd Command) error {
	switch cmd.Name {
	case CommandNavigate:
		if cmd.URL == "" {
			return fmt.Errorf("navigate command requires a url")
		}
	case CommandClick:
		if cmd.Selector == "" {
			return fmt.Errorf("click command requires a selector")
		}
	case CommandFill:
		if cmd.Selector == "" {
			return fmt.Errorf("fill command requires a selector")
		}
		if cmd.Value == "" {
			return fmt.Errorf("fill command requires a value")
		}
	case CommandEvaluate:
		if cmd.Value == "" {
			return fmt.Errorf("evaluate command requires a value with code to run")
		}
	case CommandScreenshot, CommandContent:
		// No required fields.
	case "":
		return fmt.Errorf("missing command name")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Name)
	}
	return nil
}

// CommandNames lists the supported façade commands in a stable order,
// for capability advertisement.
func CommandNames() []string {
	return []string{
		string(CommandNavigate),
		string(CommandClick),
		string(CommandFill),
		string(CommandEvaluate),
		string(CommandScreenshot),
		string(CommandContent),
	}
}
