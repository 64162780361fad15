package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records docker invocations and replays canned results per
// subcommand.
type fakeRunner struct {
	calls      [][]string
	inspect    Result
	inspectErr error
	exec       Result
	execErr    error
}

func (f *fakeRunner) run(ctx context.Context, args ...string) (Result, error) {
	f.calls = append(f.calls, args)
	if len(args) > 0 && args[0] == "inspect" {
		return f.inspect, f.inspectErr
	}
	return f.exec, f.execErr
}

func newTestExecutor(project string, runner *fakeRunner) *DockerExecutor {
	d := NewDockerExecutor(project)
	d.run = runner.run
	return d
}

func TestDockerExecutor_ContainerFor(t *testing.T) {
	d := NewDockerExecutor("mysite")

	assert.Equal(t, "ddev-mysite-web", d.ContainerFor(""))
	assert.Equal(t, "custom-db", d.ContainerFor("custom-db"))
}

func TestDockerExecutor_DefaultProject(t *testing.T) {
	d := NewDockerExecutor("")
	assert.Equal(t, DefaultProject, d.Project())
}

func TestDockerExecutor_Execute_Success(t *testing.T) {
	runner := &fakeRunner{
		inspect: Result{Stdout: "mysite\n"},
		exec:    Result{Stdout: "ok\n", ExitCode: 0},
	}
	d := newTestExecutor("mysite", runner)

	res, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "echo ok"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "inspect", runner.calls[0][0])
	assert.Equal(t, []string{"exec", "-u", DefaultUser, "ddev-mysite-web", "/bin/bash", "-c", "echo ok"}, runner.calls[1])
}

func TestDockerExecutor_Execute_OwnershipMismatch(t *testing.T) {
	runner := &fakeRunner{
		inspect: Result{Stdout: "othersite\n"},
	}
	d := newTestExecutor("mysite", runner)

	_, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "true"}, "", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "othersite")

	// No exec after a denied ownership check.
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "inspect", runner.calls[0][0])
}

func TestDockerExecutor_Execute_OwnershipLookupFailsOpen(t *testing.T) {
	runner := &fakeRunner{
		inspectErr: errors.New("no such container"),
		exec:       Result{Stdout: "ran\n"},
	}
	d := newTestExecutor("mysite", runner)

	res, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "true"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ran\n", res.Stdout)
}

func TestDockerExecutor_Execute_DefaultProjectSkipsMatch(t *testing.T) {
	runner := &fakeRunner{
		inspect: Result{Stdout: "whatever\n"},
		exec:    Result{Stdout: "ran\n"},
	}
	d := newTestExecutor("", runner)

	_, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "true"}, "", "")
	assert.NoError(t, err)
}

func TestDockerExecutor_Execute_ValidatesFirst(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestExecutor("mysite", runner)

	_, err := d.Execute(context.Background(), []string{"bash;", "-c", "true"}, "", "")
	assert.ErrorIs(t, err, ErrDangerousCharacter)
	assert.Empty(t, runner.calls)
}

func TestDockerExecutor_Execute_TransportFailure(t *testing.T) {
	runner := &fakeRunner{
		inspect: Result{Stdout: "mysite\n"},
		execErr: errors.New("docker daemon unreachable"),
	}
	d := newTestExecutor("mysite", runner)

	_, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "true"}, "", "")
	assert.ErrorIs(t, err, ErrExecution)
}

func TestDockerExecutor_Execute_NonZeroExitIsNotError(t *testing.T) {
	runner := &fakeRunner{
		inspect: Result{Stdout: "mysite\n"},
		exec:    Result{Stderr: "boom", ExitCode: 2},
	}
	d := newTestExecutor("mysite", runner)

	res, err := d.Execute(context.Background(), []string{"/bin/bash", "-c", "exit 2"}, "", "root")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "boom", res.Stderr)

	// The requested user is forwarded to the runtime.
	assert.True(t, strings.HasPrefix(strings.Join(runner.calls[1], " "), "exec -u root"))
}
