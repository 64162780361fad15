package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand is returned when the argv vector is empty
	ErrInvalidCommand = errors.New("command must be a non-empty argument vector")

	// ErrDangerousCharacter is returned when an interpreter-position argument
	// contains a shell metacharacter
	ErrDangerousCharacter = errors.New("dangerous character in argument")

	// ErrPermissionDenied is returned when the target container belongs to a
	// different project
	ErrPermissionDenied = errors.New("container ownership denied")

	// ErrExecution is returned when the container runtime fails to run the
	// command at all
	ErrExecution = errors.New("container execution failed")
)

// DangerousCharacterError reports which argument position carried which
// rejected character.
type DangerousCharacterError struct {
	Index int
	Char  rune
}

func (e *DangerousCharacterError) Error() string {
	return fmt.Sprintf("dangerous character %q in argument %d", e.Char, e.Index)
}

// Unwrap makes the error match ErrDangerousCharacter with errors.Is.
func (e *DangerousCharacterError) Unwrap() error {
	return ErrDangerousCharacter
}
