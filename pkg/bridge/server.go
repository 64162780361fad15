// Package bridge exposes the tool registry to an agent process over a
// line-oriented JSON-RPC channel on stdin/stdout. Tool failures are textual
// content; only protocol-level faults produce JSON-RPC errors.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wdrdev/sitebridge/pkg/registry"
)

const (
	serverName      = "sitebridge"
	serverVersion   = "0.1.0"
	protocolVersion = "2024-11-05"
)

// maxLineBytes bounds a single incoming request line.
const maxLineBytes = 4 * 1024 * 1024

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// contentBlock is one MCP text content block.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server answers list_tools/call_tool requests against a loaded registry.
type Server struct {
	registry *registry.Registry
	in       io.Reader
	out      io.Writer

	writeMu sync.Mutex
}

// New creates a server bound to stdin/stdout.
func New(reg *registry.Registry) *Server {
	return NewWithStreams(reg, os.Stdin, os.Stdout)
}

// NewWithStreams creates a server over explicit streams.
func NewWithStreams(reg *registry.Registry, in io.Reader, out io.Writer) *Server {
	return &Server{registry: reg, in: in, out: out}
}

// Run reads requests line by line until EOF or context cancellation. Each
// call is handled on its own goroutine so overlapping invocations do not
// block one another; responses are serialized on the write side.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var wg sync.WaitGroup
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Error().Err(err).Msg("Failed to parse request line")
			s.write(rpcResponse{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: -32700, Message: "parse error"},
				ID:      nil,
			})
			continue
		}

		// Notifications carry no id and get no response.
		if req.ID == nil {
			continue
		}

		wg.Add(1)
		go func(req rpcRequest) {
			defer wg.Done()
			s.write(s.handle(ctx, req))
		}(req)
	}

	wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("transport read failed: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		}

	case "tools/list":
		tools := s.registry.List()
		log.Info().Int("count", len(tools)).Msg("Listing tools")
		resp.Result = map[string]any{"tools": tools}

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			resp.Error = &rpcError{Code: -32602, Message: "invalid params"}
			return resp
		}

		callID := uuid.NewString()
		log.Info().
			Str("call_id", callID).
			Str("tool", params.Name).
			Msg("Calling tool")

		result := s.registry.ExecuteTool(ctx, params.Name, params.Arguments)

		log.Info().
			Str("call_id", callID).
			Str("tool", params.Name).
			Int("result_bytes", len(result)).
			Msg("Tool call finished")

		resp.Result = map[string]any{
			"content": []contentBlock{{Type: "text", Text: result}},
		}

	case "ping":
		resp.Result = map[string]any{}

	default:
		resp.Error = &rpcError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}

	return resp
}

func (s *Server) write(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out.Write(data)
	s.out.Write([]byte("\n"))
}
