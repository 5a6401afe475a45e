package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetsCmd_ListsInventory(t *testing.T) {
	app := newTestApp(t, nil, "[]")
	app.SetArgs([]string{"targets", "--config", app.configPath})

	require.NoError(t, app.Execute())

	out := app.stdout.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"GROUP", "NAME", "ADDRESS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "box1", "10.1.1.5"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"3", "box3", "10.1.3.5"}, strings.Fields(lines[3]))
	assert.Contains(t, out, "3 target(s)")
}

func TestTargetsCmd_InventoryFlag(t *testing.T) {
	app := newTestApp(t, nil, "[]")
	yamlInv := filepath.Join(app.dir, "targets.yaml")
	require.NoError(t, os.WriteFile(yamlInv, []byte(`targets:
  - name: lab-a
    address: 192.168.7.10
    group_id: 7
`), 0644))

	app.SetArgs([]string{"targets", "--config", app.configPath, "--inventory", yamlInv})
	require.NoError(t, app.Execute())

	out := app.stdout.String()
	assert.Contains(t, out, "lab-a")
	assert.Contains(t, out, "192.168.7.10")
	assert.Contains(t, out, "1 target(s)")
}

func TestTargetsCmd_MissingInventory(t *testing.T) {
	app := newTestApp(t, nil, "[]")
	app.SetArgs([]string{"targets", "--config", app.configPath, "--inventory", filepath.Join(app.dir, "nope")})

	assert.Error(t, app.Execute())
}
