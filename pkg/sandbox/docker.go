package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

const siteNameLabel = "com.ddev.site-name"

// runFunc abstracts the docker binary invocation so ownership and exec paths
// can be exercised without a container runtime.
type runFunc func(ctx context.Context, args ...string) (Result, error)

// DockerExecutor executes commands in DDEV containers with security
// validation. The ownership check is stateless and re-queried on every call.
type DockerExecutor struct {
	project string
	run     runFunc
}

// NewDockerExecutor creates an executor bound to a DDEV project. An empty
// project falls back to DefaultProject, which disables the ownership check.
func NewDockerExecutor(project string) *DockerExecutor {
	if project == "" {
		project = DefaultProject
	}
	return &DockerExecutor{
		project: project,
		run:     runDocker,
	}
}

// Project returns the bound project identifier.
func (d *DockerExecutor) Project() string {
	return d.project
}

// ContainerFor resolves the target container name, deriving the project's web
// container when none is given.
func (d *DockerExecutor) ContainerFor(container string) string {
	if container != "" {
		return container
	}
	return fmt.Sprintf("ddev-%s-web", d.project)
}

// Execute validates and runs command inside container as user. No shell is
// invoked on the outer boundary; the argv vector is passed to the runtime's
// exec primitive as-is.
func (d *DockerExecutor) Execute(ctx context.Context, command []string, container, user string) (Result, error) {
	if err := ValidateCommand(command); err != nil {
		return Result{}, err
	}

	container = d.ContainerFor(container)
	if user == "" {
		user = DefaultUser
	}

	if err := d.verifyOwnership(ctx, container); err != nil {
		return Result{}, err
	}

	head := command
	if len(head) > 3 {
		head = head[:3]
	}
	log.Info().
		Str("container", container).
		Str("user", user).
		Strs("argv", head).
		Msg("Executing container command")

	args := append([]string{"exec", "-u", user, container}, command...)
	res, err := d.run(ctx, args...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return res, nil
}

// verifyOwnership checks the container's site-name label against the bound
// project. An unreadable label logs a warning and proceeds; only a readable
// mismatching label denies execution.
func (d *DockerExecutor) verifyOwnership(ctx context.Context, container string) error {
	res, err := d.run(ctx,
		"inspect", "--format", fmt.Sprintf("{{index .Config.Labels %q}}", siteNameLabel), container)
	if err != nil || res.ExitCode != 0 {
		log.Warn().
			Str("container", container).
			Err(err).
			Msg("Container ownership lookup failed, proceeding anyway")
		return nil
	}

	siteName := strings.TrimSpace(res.Stdout)
	if d.project != DefaultProject && siteName != d.project {
		return fmt.Errorf("%w: container %q belongs to %q, not %q",
			ErrPermissionDenied, container, siteName, d.project)
	}
	return nil
}

// runDocker invokes the docker binary and captures output. A non-zero exit is
// reported through Result, not through the error.
func runDocker(ctx context.Context, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, err
		}
		exitCode = exitErr.ExitCode()
	}

	return Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
