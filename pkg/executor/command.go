package executor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wdrdev/sitebridge/pkg/rules"
	"github.com/wdrdev/sitebridge/pkg/sandbox"
)

const (
	// DefaultShell wraps rendered command lines for container dispatch.
	DefaultShell = "/bin/bash"

	autoUIDPrefix  = "auto:uid-from-path"
	autoUIDDefault = "/var/www/html"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// CommandConfig holds the configuration of one command-type tool.
type CommandConfig struct {
	Template           string
	Container          string
	User               string
	Shell              string
	DefaultArgs        map[string]any
	DisallowedCommands []string
	Rules              []rules.Rule

	// HostRoot/ContainerRoot drive path normalization of string arguments.
	HostRoot      string
	ContainerRoot string
}

// CommandExecutor renders a shell command line from a template and merged
// arguments, then dispatches it into the sandbox container.
type CommandExecutor struct {
	sb  sandbox.Executor
	cfg CommandConfig
	set *rules.Set
}

// NewCommand builds a CommandExecutor, compiling its validation rules. An
// invalid rule pattern is a configuration error.
func NewCommand(sb sandbox.Executor, cfg CommandConfig) (*CommandExecutor, error) {
	if cfg.Template == "" {
		return nil, fmt.Errorf("command_template is required")
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	set, err := rules.Compile(cfg.Rules)
	if err != nil {
		return nil, err
	}
	return &CommandExecutor{sb: sb, cfg: cfg, set: set}, nil
}

// Execute merges arguments, renders the template and runs the result through
// the sandbox shell. Policy failures come back as textual results; only
// sandbox faults surface as errors.
func (e *CommandExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	user := e.resolveUser(ctx)

	merged := make(map[string]any, len(e.cfg.DefaultArgs)+len(args))
	for k, v := range e.cfg.DefaultArgs {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	normalized, _ := e.normalizePaths(merged).(map[string]any)

	if cmd, ok := normalized["command"]; ok {
		cmdStr := formatValue(cmd)
		for _, blocked := range e.cfg.DisallowedCommands {
			if cmdStr == blocked {
				log.Warn().Str("command", cmdStr).Msg("Blocked disallowed command")
				return fmt.Sprintf("Error: Command '%s' is not allowed", cmdStr), nil
			}
		}
	}

	rendered, missing := renderTemplate(e.cfg.Template, normalized)
	if missing != "" {
		return fmt.Sprintf("Error: Missing required argument '%s'", missing), nil
	}

	// Last-line defense: rules may reference metacharacters that only appear
	// after substitution.
	if ok, message := e.set.Check(rendered); !ok {
		return fmt.Sprintf("Validation error: %s", message), nil
	}

	res, err := e.sb.Execute(ctx, []string{e.cfg.Shell, "-c", rendered}, e.cfg.Container, user)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Execution failed (code %d)\nStderr: %s", res.ExitCode, res.Stderr), nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ValidateArguments runs validation rules over the raw arguments, then checks
// that every template placeholder without a configured default is supplied.
func (e *CommandExecutor) ValidateArguments(args map[string]any) (bool, string) {
	if ok, message := e.set.Check(stringifyArgs(args)); !ok {
		return false, message
	}

	var missing []string
	for _, name := range templatePlaceholders(e.cfg.Template) {
		if _, ok := e.cfg.DefaultArgs[name]; ok {
			continue
		}
		if _, ok := args[name]; ok {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return false, fmt.Sprintf("Missing: %s", strings.Join(missing, ", "))
	}
	return true, ""
}

// resolveUser handles the auto:uid-from-path directive by statting the target
// path inside the container as root. Any failure falls back to the default
// user; resolution never errors.
func (e *CommandExecutor) resolveUser(ctx context.Context) string {
	user := e.cfg.User
	if !strings.HasPrefix(user, autoUIDPrefix) {
		return user
	}

	targetPath := autoUIDDefault
	if rest := strings.TrimPrefix(user, autoUIDPrefix); strings.HasPrefix(rest, ":") {
		targetPath = rest[1:]
	}

	res, err := e.sb.Execute(ctx,
		[]string{"/bin/sh", "-c", "stat -c %u " + targetPath}, e.cfg.Container, "root")
	if err != nil || res.ExitCode != 0 {
		log.Warn().
			Str("path", targetPath).
			Err(err).
			Str("stderr", strings.TrimSpace(res.Stderr)).
			Msgf("Failed to resolve owner uid, falling back to %s", sandbox.DefaultUser)
		return sandbox.DefaultUser
	}

	uid := strings.TrimSpace(res.Stdout)
	log.Info().Str("path", targetPath).Str("uid", uid).Msg("Resolved execution uid from path owner")
	return uid
}

// normalizePaths rewrites host-root path prefixes to their in-container
// equivalents, walking nested sequences and mappings.
func (e *CommandExecutor) normalizePaths(value any) any {
	if e.cfg.HostRoot == "" || e.cfg.ContainerRoot == "" {
		return value
	}
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, e.cfg.HostRoot+"/") {
			return e.cfg.ContainerRoot + v[len(e.cfg.HostRoot):]
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = e.normalizePaths(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = e.normalizePaths(item)
		}
		return out
	default:
		return value
	}
}

// renderTemplate substitutes {name} placeholders. It returns the rendered
// string, or the name of the first placeholder with no corresponding key.
func renderTemplate(template string, args map[string]any) (string, string) {
	missing := ""
	rendered := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := args[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return formatValue(value)
	})
	if missing != "" {
		return "", missing
	}
	return rendered, ""
}

// templatePlaceholders lists the distinct placeholder names in a template.
func templatePlaceholders(template string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// stringifyArgs produces a deterministic textual view of raw arguments for
// rule matching.
func stringifyArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, formatValue(args[k]))
	}
	b.WriteString("}")
	return b.String()
}
