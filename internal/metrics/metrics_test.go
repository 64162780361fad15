package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveToolExecution(t *testing.T) {
	m := NewMetrics()

	m.ObserveToolExecution("drush", "ok", 120*time.Millisecond)
	m.ObserveToolExecution("drush", "error", 5*time.Millisecond)
	m.ToolsRegistered.Set(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `tool_executions_total{status="ok",tool_name="drush"} 1`)
	assert.Contains(t, text, `tool_executions_total{status="error",tool_name="drush"} 1`)
	assert.Contains(t, text, "tools_registered 3")
}
