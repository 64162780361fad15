package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRemoteTimeout bounds proxied calls when none is configured.
const DefaultRemoteTimeout = 10 * time.Second

// RemoteConfig holds the configuration of one remote MCP server tool.
type RemoteConfig struct {
	ServerURL   string
	ForwardArgs bool
	Timeout     time.Duration

	AuthUsername   string
	AuthPassword   string
	AuthToken      string
	AuthTokenBasic bool
	VerifySSL      bool
}

// RemoteExecutor proxies tool calls to an external MCP server over HTTP
// using JSON-RPC 2.0. All failure modes come back as textual results.
type RemoteExecutor struct {
	cfg    RemoteConfig
	client *http.Client

	// authHeader is set for token auth; basic credentials are applied per
	// request. Token forms take priority over username/password.
	authHeader string
}

// RemoteTool describes one tool advertised by a remote server's catalog.
type RemoteTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// NewRemote builds a RemoteExecutor for a server URL.
func NewRemote(cfg RemoteConfig) (*RemoteExecutor, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}

	transport := http.DefaultTransport
	if !cfg.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	e := &RemoteExecutor{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}

	switch {
	case cfg.AuthToken != "" && cfg.AuthTokenBasic:
		// Some servers overload Basic auth for bare token delivery.
		encoded := base64.StdEncoding.EncodeToString([]byte(cfg.AuthToken))
		e.authHeader = "Basic " + encoded
	case cfg.AuthToken != "":
		e.authHeader = "Bearer " + cfg.AuthToken
	}

	return e, nil
}

// Execute proxies a call with no specific remote tool bound, selecting the
// request shape from the arguments themselves.
func (e *RemoteExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	return e.ExecuteTool(ctx, "", args)
}

// ExecuteTool proxies a call to the server. When remoteName is set, the call
// becomes a tools/call envelope regardless of the argument contents; next a
// "method" argument selects direct JSON-RPC passthrough; otherwise the raw
// arguments are forwarded as the body (or an empty body when forwarding is
// disabled).
func (e *RemoteExecutor) ExecuteTool(ctx context.Context, remoteName string, args map[string]any) (string, error) {
	var payload any
	switch {
	case remoteName != "":
		payload = map[string]any{
			"jsonrpc": "2.0",
			"method":  "tools/call",
			"params": map[string]any{
				"name":      remoteName,
				"arguments": args,
			},
			"id": 1,
		}
	case args["method"] != nil:
		params := args["params"]
		if params == nil {
			params = map[string]any{}
		}
		payload = map[string]any{
			"jsonrpc": "2.0",
			"method":  args["method"],
			"params":  params,
			"id":      1,
		}
	case e.cfg.ForwardArgs:
		payload = args
	default:
		payload = map[string]any{}
	}

	body, err := e.post(ctx, payload)
	if err != nil {
		return e.describeFailure(err), nil
	}
	return extractResult(body), nil
}

// ValidateArguments is trivially true; remote servers validate their own
// arguments.
func (e *RemoteExecutor) ValidateArguments(map[string]any) (bool, string) {
	return true, ""
}

// FetchRemoteTools enumerates the server's own tool catalog via tools/list.
// It accepts a top-level tools array, a nested result.tools array, or a bare
// array response.
func (e *RemoteExecutor) FetchRemoteTools(ctx context.Context) ([]RemoteTool, error) {
	log.Info().Str("server_url", e.cfg.ServerURL).Msg("Fetching remote tool catalog")

	body, err := e.post(ctx, map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/list",
		"params":  map[string]any{},
		"id":      1,
	})
	if err != nil {
		return nil, err
	}

	var asList []RemoteTool
	if err := json.Unmarshal(body, &asList); err == nil {
		return asList, nil
	}

	var envelope struct {
		Tools  []RemoteTool `json:"tools"`
		Result struct {
			Tools []RemoteTool `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected tools/list response: %w", err)
	}
	if len(envelope.Tools) > 0 {
		return envelope.Tools, nil
	}
	return envelope.Result.Tools, nil
}

// post sends one JSON body to the server and returns the raw response body.
func (e *RemoteExecutor) post(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ServerURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.authHeader != "" {
		req.Header.Set("Authorization", e.authHeader)
	} else if e.cfg.AuthUsername != "" && e.cfg.AuthPassword != "" {
		req.SetBasicAuth(e.cfg.AuthUsername, e.cfg.AuthPassword)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.Status}
	}
	return body, nil
}

// describeFailure maps transport faults onto the textual messages the
// dispatch boundary hands back to the caller.
func (e *RemoteExecutor) describeFailure(err error) string {
	if isTimeout(err) {
		return fmt.Sprintf("Request timeout after %ds", int(e.cfg.Timeout.Seconds()))
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("HTTP error: %s", statusErr.status)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("HTTP error: %v", urlErr)
	}
	log.Error().Err(err).Str("server_url", e.cfg.ServerURL).Msg("Remote proxy error")
	return fmt.Sprintf("Error: %v", err)
}

type httpStatusError struct {
	status string
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + e.status
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// extractResult pulls a textual result out of a response body, preferring a
// JSON-RPC result, then the first MCP content block, then a formatted error,
// then the raw body.
func extractResult(body []byte) string {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return string(body)
	}

	if result, ok := obj["result"]; ok {
		return formatValue(result)
	}

	if content, ok := obj["content"].([]any); ok && len(content) > 0 {
		if block, ok := content[0].(map[string]any); ok {
			if text, ok := block["text"].(string); ok {
				return text
			}
		}
		return string(body)
	}

	if rpcErr, ok := obj["error"]; ok {
		if errObj, ok := rpcErr.(map[string]any); ok {
			if message, ok := errObj["message"].(string); ok {
				return fmt.Sprintf("RPC Error: %s", message)
			}
		}
		return fmt.Sprintf("RPC Error: %s", formatValue(rpcErr))
	}

	return string(body)
}
