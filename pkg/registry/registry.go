// Package registry binds tool names to executor instances and dispatches
// calls. The dispatch boundary is a total function: every failure becomes a
// textual result, never an error to the outer transport.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/wdrdev/sitebridge/internal/config"
	"github.com/wdrdev/sitebridge/pkg/executor"
	"github.com/wdrdev/sitebridge/pkg/sandbox"
)

// Tool holds the per-name metadata of one registered tool. Derived remote
// tools carry the remote tool's original name; many derived tools may share
// one executor instance.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any

	// RemoteName is set on tools discovered from a remote catalog and is the
	// name the remote server knows the tool by.
	RemoteName string

	schema *gojsonschema.Schema
}

// Descriptor is the transport-facing view of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Recorder observes tool executions. A nil Recorder is valid.
type Recorder interface {
	ObserveToolExecution(tool, status string, d time.Duration)
}

// Registry manages tool definitions and execution.
type Registry struct {
	cfg      *config.Config
	sb       sandbox.Executor
	recorder Recorder

	mu        sync.RWMutex
	tools     map[string]*Tool
	executors map[string]executor.Executor
	discovery map[string]string
}

// New creates a registry bound to a bridge configuration and a sandbox
// executor.
func New(cfg *config.Config, sb sandbox.Executor) *Registry {
	return &Registry{
		cfg:       cfg,
		sb:        sb,
		tools:     make(map[string]*Tool),
		executors: make(map[string]executor.Executor),
		discovery: make(map[string]string),
	}
}

// SetRecorder attaches an execution recorder.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Load reads the tool definition files and builds one executor per enabled
// tool. A disabled or malformed definition is skipped with a logged reason.
// It returns the number of registered tools.
func (r *Registry) Load(ctx context.Context) (int, error) {
	defs, err := config.LoadToolFiles(r.cfg.ToolsDir)
	if err != nil {
		return 0, err
	}

	validator := config.NewValidator()
	count := 0
	for i := range defs {
		def := &defs[i]
		if !def.Enabled {
			log.Info().Str("tool", def.Name).Msg("Tool disabled")
			continue
		}
		if err := validator.ValidateTool(def); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed tool definition")
			continue
		}
		count += r.loadTool(ctx, def)
	}

	log.Info().Int("count", count).Msg("Tool registry loaded")
	return count, nil
}

func (r *Registry) loadTool(ctx context.Context, def *config.ToolConfig) int {
	switch def.Type {
	case config.TypeCommand:
		cmd, err := executor.NewCommand(r.sb, executor.CommandConfig{
			Template:           def.CommandTemplate,
			Container:          config.InterpolateContainer(def.Container, r.cfg.Project),
			User:               def.User,
			Shell:              def.Shell,
			DefaultArgs:        def.DefaultArgs,
			DisallowedCommands: def.DisallowedCommands,
			Rules:              def.ValidationRules,
			HostRoot:           r.cfg.HostRoot,
			ContainerRoot:      r.cfg.ContainerRoot,
		})
		if err != nil {
			log.Warn().Str("tool", def.Name).Err(err).Msg("Failed to create executor")
			return 0
		}
		r.register(&Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, cmd)
		return 1

	case config.TypeMCPServer:
		remote, err := executor.NewRemote(executor.RemoteConfig{
			ServerURL:      def.ServerURL,
			ForwardArgs:    *def.ForwardArgs,
			Timeout:        def.RemoteTimeout(),
			AuthUsername:   def.AuthUsername,
			AuthPassword:   def.AuthPassword,
			AuthToken:      def.AuthToken,
			AuthTokenBasic: def.AuthTokenBasic,
			VerifySSL:      *def.VerifySSL,
		})
		if err != nil {
			log.Warn().Str("tool", def.Name).Err(err).Msg("Failed to create executor")
			return 0
		}
		if def.ExposeRemoteTools {
			return r.expandRemoteTools(ctx, def, remote)
		}
		r.register(&Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, remote)
		return 1

	default:
		log.Warn().Str("tool", def.Name).Str("type", def.Type).Msg("Unknown tool type")
		return 0
	}
}

// expandRemoteTools fetches a remote server's catalog and registers one tool
// per discovered entry, all sharing the proxy's executor. Discovery runs on a
// worker goroutine bounded by the configured init timeout; failure is logged
// and adds zero tools, and there is no retry until process restart.
func (r *Registry) expandRemoteTools(ctx context.Context, def *config.ToolConfig, remote *executor.RemoteExecutor) int {
	r.setDiscovery(def.Name, "fetching")

	fetchCtx, cancel := context.WithTimeout(ctx, def.DiscoveryTimeout())
	defer cancel()

	type fetched struct {
		tools []executor.RemoteTool
		err   error
	}
	ch := make(chan fetched, 1)
	go func() {
		tools, err := remote.FetchRemoteTools(fetchCtx)
		ch <- fetched{tools: tools, err: err}
	}()

	var result fetched
	select {
	case result = <-ch:
	case <-fetchCtx.Done():
		result = fetched{err: fetchCtx.Err()}
	}

	if result.err != nil {
		log.Error().Str("tool", def.Name).Err(result.err).Msg("Remote tool discovery failed")
		r.setDiscovery(def.Name, "failed")
		return 0
	}
	if len(result.tools) == 0 {
		log.Warn().Str("tool", def.Name).Msg("No tools fetched from remote server")
		r.setDiscovery(def.Name, "failed")
		return 0
	}

	count := 0
	for _, rt := range result.tools {
		if rt.Name == "" {
			continue
		}
		localName := def.ToolPrefix + rt.Name
		r.register(&Tool{
			Name:        localName,
			Description: rt.Description,
			InputSchema: rt.InputSchema,
			RemoteName:  rt.Name,
		}, remote)
		log.Info().
			Str("tool", localName).
			Str("remote_name", rt.Name).
			Str("proxy", def.Name).
			Msg("Registered remote tool")
		count++
	}

	r.setDiscovery(def.Name, fmt.Sprintf("expanded(%d)", count))
	return count
}

func (r *Registry) setDiscovery(name, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovery[name] = state
}

// DiscoveryState reports the discovery outcome for a proxy tool name.
func (r *Registry) DiscoveryState(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discovery[name]
}

func (r *Registry) register(tool *Tool, exec executor.Executor) {
	if len(tool.InputSchema) > 0 {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.InputSchema))
		if err != nil {
			log.Warn().Str("tool", tool.Name).Err(err).Msg("Invalid input schema, skipping schema validation")
		} else {
			tool.schema = schema
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		log.Warn().Str("tool", tool.Name).Msg("Duplicate tool name, replacing earlier definition")
	}
	r.tools[tool.Name] = tool
	r.executors[tool.Name] = exec
}

// GetToolDefinition returns the metadata for a registered tool, or nil.
func (r *Registry) GetToolDefinition(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns transport descriptors for every registered tool.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		out = append(out, Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out
}

// ExecuteTool dispatches a call. It always returns a textual result; no
// failure escapes as an error.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}

	r.mu.RLock()
	tool := r.tools[name]
	exec := r.executors[name]
	rec := r.recorder
	r.mu.RUnlock()

	if tool == nil || exec == nil {
		return fmt.Sprintf("Error: Unknown tool '%s'", name)
	}

	start := time.Now()
	result := r.dispatch(ctx, tool, exec, args)
	if rec != nil {
		status := "ok"
		if isFailureText(result) {
			status = "error"
		}
		rec.ObserveToolExecution(name, status, time.Since(start))
	}
	return result
}

func (r *Registry) dispatch(ctx context.Context, tool *Tool, exec executor.Executor, args map[string]any) string {
	if tool.schema != nil {
		res, err := tool.schema.Validate(gojsonschema.NewGoLoader(args))
		if err != nil {
			return fmt.Sprintf("Validation error: %v", err)
		}
		if !res.Valid() {
			return fmt.Sprintf("Validation error: %s", res.Errors()[0].String())
		}
	}

	if ok, message := exec.ValidateArguments(args); !ok {
		return fmt.Sprintf("Validation error: %s", message)
	}

	var out string
	var err error
	if caller, ok := exec.(executor.RemoteCaller); ok && tool.RemoteName != "" {
		out, err = caller.ExecuteTool(ctx, tool.RemoteName, args)
	} else {
		out, err = exec.Execute(ctx, args)
	}
	if err != nil {
		log.Error().Str("tool", tool.Name).Err(err).Msg("Tool execution failed")
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

// isFailureText classifies a dispatch result for metrics purposes only; the
// protocol itself treats every result as success.
func isFailureText(result string) bool {
	for _, prefix := range []string{"Error: ", "Validation error: ", "Execution failed", "HTTP error: ", "Request timeout", "RPC Error: "} {
		if len(result) >= len(prefix) && result[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
