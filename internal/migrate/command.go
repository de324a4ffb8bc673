package migrate

import (
	"strconv"
	"strings"
)

// Command is a parsed migration command. The wire form is
// "<version>|latest"[,"rerun"], e.g. "42", "latest", "42,rerun".
type Command struct {
	// Latest targets the highest version currently in the registry.
	Latest bool

	// Version is the explicit target version when Latest is false.
	Version int64

	// Rerun re-invokes the current version's up action in place instead
	// of walking to the target.
	Rerun bool
}

// ParseCommand parses the wire form of a migration command.
func ParseCommand(command string) (Command, error) {
	raw := strings.TrimSpace(command)
	if raw == "" {
		return Command{}, &InvalidCommandError{Command: command}
	}

	parts := strings.Split(raw, ",")
	if len(parts) > 2 {
		return Command{}, &InvalidCommandError{Command: command}
	}

	var cmd Command
	target := strings.TrimSpace(parts[0])
	if strings.EqualFold(target, "latest") {
		cmd.Latest = true
	} else {
		version, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return Command{}, &InvalidCommandError{Command: command}
		}
		cmd.Version = version
	}

	if len(parts) == 2 {
		if !strings.EqualFold(strings.TrimSpace(parts[1]), "rerun") {
			return Command{}, &InvalidCommandError{Command: command}
		}
		cmd.Rerun = true
	}

	return cmd, nil
}
