// Package sandbox executes argv vectors inside project-owned containers.
// Access is restricted to containers whose site-name label matches the bound
// project, and the outer boundary never invokes a shell.
package sandbox

import (
	"context"
	"strings"
)

// DefaultUser is the user commands run as when none is configured.
const DefaultUser = "www-data"

// DefaultProject is the sentinel project binding that disables the
// ownership check.
const DefaultProject = "default-project"

// Result represents the captured output of one container exec.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Executor runs an argv vector inside a container under a named user.
type Executor interface {
	// Execute runs command inside container as user. An empty container
	// selects the project's derived web container; an empty user selects
	// DefaultUser.
	Execute(ctx context.Context, command []string, container, user string) (Result, error)
}

// dangerousChars are rejected in the interpreter positions of an argv vector.
const dangerousChars = ";|&><$`\n\r"

// ValidateCommand enforces the argv shape and the position-dependent
// character-safety rule. Positions 0 and 1 conventionally hold an interpreter
// path and its flag and must be free of shell metacharacters; positions at
// index >= 2 hold a single opaque script string passed as one argument and
// are not subject to shell re-interpretation, so they are exempt.
func ValidateCommand(command []string) error {
	if len(command) == 0 {
		return ErrInvalidCommand
	}
	for i, arg := range command {
		if i >= 2 {
			break
		}
		if idx := strings.IndexAny(arg, dangerousChars); idx >= 0 {
			return &DangerousCharacterError{Index: i, Char: rune(arg[idx])}
		}
	}
	return nil
}
