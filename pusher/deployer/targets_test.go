package deployer_test

import (
	"os"
	"path/filepath"
	"testing"

	"model_pusher/pusher/deployer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTargetsFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeTargetsFile(t, `
serving_root: /share/serving
targets:
  staging:
    type: ai-platform
    project_id: proj-1
    model_name: model-a
  local:
    type: filesystem
  pinned:
    type: filesystem
    serving_dir: /mnt/exact/path
`)

	deployers, err := deployer.LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, deployers, 3)

	staging := deployers["staging"].BuildPusherConfig()
	require.NotNil(t, staging.PushDestination.Filesystem)
	assert.Equal(t, filepath.Join("/share/serving", "staging"), staging.PushDestination.Filesystem.BaseDirectory)
	require.NotNil(t, staging.CustomConfig.AiPlatformServingArgs)
	assert.Equal(t, "proj-1", staging.CustomConfig.AiPlatformServingArgs.ProjectId)
	assert.Equal(t, "model-a", staging.CustomConfig.AiPlatformServingArgs.ModelName)

	local := deployers["local"].BuildPusherConfig()
	require.NotNil(t, local.PushDestination.Filesystem)
	assert.Equal(t, filepath.Join("/share/serving", "local"), local.PushDestination.Filesystem.BaseDirectory)
	assert.Nil(t, local.CustomConfig.AiPlatformServingArgs)

	pinned := deployers["pinned"].BuildPusherConfig()
	require.NotNil(t, pinned.PushDestination.Filesystem)
	assert.Equal(t, "/mnt/exact/path", pinned.PushDestination.Filesystem.BaseDirectory)
}

func TestLoadTargetsUnknownType(t *testing.T) {
	path := writeTargetsFile(t, `
serving_root: /share/serving
targets:
  bad:
    type: carrier-pigeon
`)

	_, err := deployer.LoadTargets(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadTargetsMissingFile(t *testing.T) {
	_, err := deployer.LoadTargets(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
