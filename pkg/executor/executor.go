// Package executor implements the execution strategies behind registered
// tools: templated shell commands dispatched into a project container, and
// proxied calls against remote MCP servers.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
)

// Executor executes one tool call. Implementations convert their own failure
// modes into textual results; an error return is reserved for faults the
// dispatch registry reports on the implementation's behalf.
type Executor interface {
	// Execute runs the tool with the given arguments and returns the output
	// as a string.
	Execute(ctx context.Context, args map[string]any) (string, error)

	// ValidateArguments checks arguments before execution. Implementations
	// with nothing to check return (true, "").
	ValidateArguments(args map[string]any) (bool, string)
}

// RemoteCaller is implemented by executors that can address a specific tool
// on a remote server. The registry uses it for tools derived from remote
// discovery.
type RemoteCaller interface {
	ExecuteTool(ctx context.Context, remoteName string, args map[string]any) (string, error)
}

// formatValue renders an argument or response value the way it appears in a
// command line or textual result. Strings pass through; everything else is
// JSON-encoded.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; render integral values without a
		// trailing fraction.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
