package config

import "fmt"

// Validator validates tool definitions before executors are built.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTool checks the per-type required keys of a tool definition.
func (v *Validator) ValidateTool(t *ToolConfig) error {
	if t.Name == "" {
		return fmt.Errorf("tool config missing 'name'")
	}

	switch t.Type {
	case TypeCommand:
		if t.CommandTemplate == "" {
			return fmt.Errorf("tool %s: missing command_template", t.Name)
		}
	case TypeMCPServer:
		if t.ServerURL == "" {
			return fmt.Errorf("tool %s: missing server_url", t.Name)
		}
	default:
		return fmt.Errorf("tool %s: unknown tool type %q", t.Name, t.Type)
	}

	return nil
}
