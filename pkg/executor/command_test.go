package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdrdev/sitebridge/pkg/rules"
	"github.com/wdrdev/sitebridge/pkg/sandbox"
)

// fakeSandbox implements sandbox.Executor for tests. Stat lookups (user root,
// stat script) answer from statResult; everything else answers from result.
type fakeSandbox struct {
	calls      []sandboxCall
	result     sandbox.Result
	err        error
	statResult sandbox.Result
	statErr    error
}

type sandboxCall struct {
	command   []string
	container string
	user      string
}

func (f *fakeSandbox) Execute(ctx context.Context, command []string, container, user string) (sandbox.Result, error) {
	f.calls = append(f.calls, sandboxCall{command: command, container: container, user: user})
	if user == "root" && len(command) == 3 && strings.HasPrefix(command[2], "stat -c %u") {
		return f.statResult, f.statErr
	}
	return f.result, f.err
}

func (f *fakeSandbox) lastCall(t *testing.T) sandboxCall {
	t.Helper()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func TestNewCommand_RequiresTemplate(t *testing.T) {
	_, err := NewCommand(&fakeSandbox{}, CommandConfig{})
	assert.Error(t, err)
}

func TestNewCommand_InvalidRule(t *testing.T) {
	_, err := NewCommand(&fakeSandbox{}, CommandConfig{
		Template: "echo {x}",
		Rules:    []rules.Rule{{Pattern: "[bad"}},
	})
	assert.Error(t, err)
}

func TestCommandExecutor_Execute_RendersTemplate(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stdout: "done\n"}}
	e, err := NewCommand(sb, CommandConfig{Template: "drush {cmd}"})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{"cmd": "cr"})
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	call := sb.lastCall(t)
	assert.Equal(t, []string{DefaultShell, "-c", "drush cr"}, call.command)
}

func TestCommandExecutor_Execute_DefaultsAndOverrides(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stdout: "ok"}}
	e, err := NewCommand(sb, CommandConfig{
		Template:    "echo {x} {y}",
		DefaultArgs: map[string]any{"x": "default-x", "y": "default-y"},
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{"y": "caller-y"})
	require.NoError(t, err)

	call := sb.lastCall(t)
	assert.Equal(t, "echo default-x caller-y", call.command[2])
}

func TestCommandExecutor_Execute_EndToEndDefault(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stdout: "ok\n"}}
	e, err := NewCommand(sb, CommandConfig{
		Template:    "echo {x}",
		DefaultArgs: map[string]any{"x": "ok"},
	})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestCommandExecutor_Execute_MissingArgument(t *testing.T) {
	sb := &fakeSandbox{}
	e, err := NewCommand(sb, CommandConfig{Template: "drush {cmd}"})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "Missing required argument 'cmd'")
	assert.Empty(t, sb.calls)
}

func TestCommandExecutor_Execute_DisallowedCommand(t *testing.T) {
	sb := &fakeSandbox{}
	e, err := NewCommand(sb, CommandConfig{
		Template:           "drush {command}",
		DisallowedCommands: []string{"sql-drop"},
	})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{"command": "sql-drop"})
	require.NoError(t, err)
	assert.Equal(t, "Error: Command 'sql-drop' is not allowed", out)
	assert.Empty(t, sb.calls)
}

func TestCommandExecutor_Execute_PostRenderValidation(t *testing.T) {
	sb := &fakeSandbox{}
	e, err := NewCommand(sb, CommandConfig{
		Template: "git {args}",
		Rules:    []rules.Rule{{Pattern: `--force`, Message: "force pushes are blocked"}},
	})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{"args": "push --force"})
	require.NoError(t, err)
	assert.Equal(t, "Validation error: force pushes are blocked", out)
	assert.Empty(t, sb.calls)
}

func TestCommandExecutor_Execute_NonZeroExit(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stderr: "no such command", ExitCode: 1}}
	e, err := NewCommand(sb, CommandConfig{Template: "drush {cmd}"})
	require.NoError(t, err)

	out, err := e.Execute(context.Background(), map[string]any{"cmd": "nope"})
	require.NoError(t, err)
	assert.Contains(t, out, "Execution failed (code 1)")
	assert.Contains(t, out, "no such command")
}

func TestCommandExecutor_Execute_SandboxFaultPropagates(t *testing.T) {
	sb := &fakeSandbox{err: sandbox.ErrPermissionDenied}
	e, err := NewCommand(sb, CommandConfig{Template: "ls"})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, sandbox.ErrPermissionDenied)
}

func TestCommandExecutor_Execute_PathNormalization(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stdout: ""}}
	e, err := NewCommand(sb, CommandConfig{
		Template:      "cat {file}",
		HostRoot:      "/workspace",
		ContainerRoot: "/var/www/html",
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{"file": "/workspace/web/index.php"})
	require.NoError(t, err)
	assert.Equal(t, "cat /var/www/html/web/index.php", sb.lastCall(t).command[2])

	// Non-matching strings pass through untouched.
	_, err = e.Execute(context.Background(), map[string]any{"file": "/etc/hosts"})
	require.NoError(t, err)
	assert.Equal(t, "cat /etc/hosts", sb.lastCall(t).command[2])
}

func TestCommandExecutor_Execute_PathNormalizationNested(t *testing.T) {
	e, err := NewCommand(&fakeSandbox{}, CommandConfig{
		Template:      "noop",
		HostRoot:      "/workspace",
		ContainerRoot: "/var/www/html",
	})
	require.NoError(t, err)

	out := e.normalizePaths(map[string]any{
		"files": []any{"/workspace/a.txt", "/other/b.txt"},
		"meta":  map[string]any{"path": "/workspace/c.txt", "count": float64(2)},
	})

	m := out.(map[string]any)
	assert.Equal(t, []any{"/var/www/html/a.txt", "/other/b.txt"}, m["files"])
	assert.Equal(t, "/var/www/html/c.txt", m["meta"].(map[string]any)["path"])
	assert.Equal(t, float64(2), m["meta"].(map[string]any)["count"])
}

func TestCommandExecutor_ResolveUser_AutoUID(t *testing.T) {
	sb := &fakeSandbox{
		statResult: sandbox.Result{Stdout: "33\n"},
		result:     sandbox.Result{Stdout: "ok"},
	}
	e, err := NewCommand(sb, CommandConfig{
		Template: "whoami",
		User:     "auto:uid-from-path",
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)

	require.Len(t, sb.calls, 2)
	assert.Equal(t, "root", sb.calls[0].user)
	assert.Equal(t, "stat -c %u /var/www/html", sb.calls[0].command[2])
	assert.Equal(t, "33", sb.calls[1].user)
}

func TestCommandExecutor_ResolveUser_ExplicitPath(t *testing.T) {
	sb := &fakeSandbox{
		statResult: sandbox.Result{Stdout: "1000"},
		result:     sandbox.Result{Stdout: "ok"},
	}
	e, err := NewCommand(sb, CommandConfig{
		Template: "whoami",
		User:     "auto:uid-from-path:/opt/app",
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "stat -c %u /opt/app", sb.calls[0].command[2])
	assert.Equal(t, "1000", sb.calls[1].user)
}

func TestCommandExecutor_ResolveUser_FallsBack(t *testing.T) {
	sb := &fakeSandbox{
		statErr: errors.New("container down"),
		result:  sandbox.Result{Stdout: "ok"},
	}
	e, err := NewCommand(sb, CommandConfig{
		Template: "whoami",
		User:     "auto:uid-from-path",
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, sandbox.DefaultUser, sb.lastCall(t).user)
}

func TestCommandExecutor_ResolveUser_Plain(t *testing.T) {
	sb := &fakeSandbox{result: sandbox.Result{Stdout: "ok"}}
	e, err := NewCommand(sb, CommandConfig{Template: "whoami", User: "deploy"})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Len(t, sb.calls, 1)
	assert.Equal(t, "deploy", sb.calls[0].user)
}

func TestCommandExecutor_ValidateArguments_RequiredPlaceholders(t *testing.T) {
	e, err := NewCommand(&fakeSandbox{}, CommandConfig{
		Template:    "run {a} {b}",
		DefaultArgs: map[string]any{"a": 1},
	})
	require.NoError(t, err)

	ok, message := e.ValidateArguments(map[string]any{})
	assert.False(t, ok)
	assert.Equal(t, "Missing: b", message)

	ok, message = e.ValidateArguments(map[string]any{"b": "x"})
	assert.True(t, ok)
	assert.Empty(t, message)
}

func TestCommandExecutor_ValidateArguments_Rules(t *testing.T) {
	e, err := NewCommand(&fakeSandbox{}, CommandConfig{
		Template: "echo {x}",
		Rules:    []rules.Rule{{Pattern: `drop\s+table`, Message: "no ddl"}},
	})
	require.NoError(t, err)

	ok, message := e.ValidateArguments(map[string]any{"x": "drop table users"})
	assert.False(t, ok)
	assert.Equal(t, "no ddl", message)
}

func TestRenderTemplate_NumericValues(t *testing.T) {
	rendered, missing := renderTemplate("retry {n} times", map[string]any{"n": float64(3)})
	assert.Empty(t, missing)
	assert.Equal(t, "retry 3 times", rendered)
}
