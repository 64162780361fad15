package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsCmd_PrintsCatalog(t *testing.T) {
	dir := t.TempDir()
	toolsDir := filepath.Join(dir, "tools-config")
	require.NoError(t, os.Mkdir(toolsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(toolsDir, "tools.yml"), []byte(`
tools:
  - name: status
    enabled: true
    description: Show site status
    command_template: "drush status"
`), 0644))

	cfgPath := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
project: testsite
tools_dir: `+toolsDir+`
logging:
  file: `+filepath.Join(dir, "bridge.log")+`
`), 0644))

	cmd := GetRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tools", "--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "1 tools loaded (project: testsite)")
	assert.Contains(t, out.String(), "status")
	assert.Contains(t, out.String(), "Show site status")
}

func TestToolsCmd_MissingToolsDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
tools_dir: `+filepath.Join(dir, "nope")+`
logging:
  file: `+filepath.Join(dir, "bridge.log")+`
`), 0644))

	cmd := GetRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tools", "--config", cfgPath})

	assert.Error(t, cmd.Execute())
}
