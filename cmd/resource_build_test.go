package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/catalystcommunity/enginecore/internal/resource/pack"
	"github.com/stretchr/testify/require"
)

func writeProjectFixture(t *testing.T, workspace string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "textures", "a.png"), []byte("png-bytes"), 0o644))

	projectPath := filepath.Join(workspace, "project.yaml")
	contents := "workspace_directory: " + workspace + "\nplugin_directory_name: plugins\nplugins: []\n"
	require.NoError(t, os.WriteFile(projectPath, []byte(contents), 0o644))
	return projectPath
}

func TestRunResourceBuildRejectsMissingArgs(t *testing.T) {
	require.Equal(t, ExitInvalidArgs, RunResourceBuild("", "regular", "regular", nil))
	require.Equal(t, ExitInvalidArgs, RunResourceBuild("x.yaml", "loud", "regular", []string{"t"}))
	require.Equal(t, ExitInvalidArgs, RunResourceBuild("x.yaml", "regular", "ultra", []string{"t"}))
}

func TestRunResourceBuildRejectsMissingProject(t *testing.T) {
	dir := t.TempDir()
	code := RunResourceBuild(filepath.Join(dir, "missing.yaml"), "regular", "regular", []string{"textures"})
	require.Equal(t, ExitSetupFailed, code)
}

func TestRunResourceBuildProducesPackFile(t *testing.T) {
	workspace := t.TempDir()
	projectPath := writeProjectFixture(t, workspace)

	code := RunResourceBuild(projectPath, "regular", "regular", []string{"textures"})
	require.Equal(t, ExitSuccess, code)

	packPath := filepath.Join(workspace, "textures.kanpack")
	p, err := pack.Open(packPath)
	require.NoError(t, err)
	defer p.Close()

	require.Contains(t, p.List(), "a.png")
	data, err := p.Read("a.png")
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))

	_, err = os.Stat(workspace + ".build_lock")
	require.True(t, os.IsNotExist(err), "build lock should be released after a successful build")
}

func TestRunResourceBuildPackNoneSkipsPackFile(t *testing.T) {
	workspace := t.TempDir()
	projectPath := writeProjectFixture(t, workspace)

	code := RunResourceBuild(projectPath, "regular", "none", []string{"textures"})
	require.Equal(t, ExitSuccess, code)

	_, err := os.Stat(filepath.Join(workspace, "textures.kanpack"))
	require.True(t, os.IsNotExist(err))
}
