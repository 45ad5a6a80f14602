package explainer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/explainer/internal/plugin"
)

const runPlugin = `
local M = {}

M.entry_points = {
  run = function(text)
    if text == nil then
      return "ran"
    end
    return "ran: " .. text
  end,
}

return M
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestExplainer(t *testing.T, opts ...Option) *Explainer {
	t.Helper()
	base := []Option{WithLoaderOptions(plugin.WithBasePath(""))}
	ex, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Close() })
	return ex
}

func TestListUnionIsSorted(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "plugins")
	writeFile(t, filepath.Join(pluginDir, "beta.lua"), runPlugin)
	writeFile(t, filepath.Join(pluginDir, "gamma", "init.lua"), runPlugin)
	writeFile(t, filepath.Join(pluginDir, "empty", "README"), "not a plugin")
	writeFile(t, filepath.Join(pluginDir, ".hidden.lua"), runPlugin)

	descriptor := &Descriptor{
		Name: "test",
		Plugins: []PluginRule{
			{Name: "zeta", Module: "zeta_impl"},
			{Name: "alpha", Path: "./alpha"},
			{Name: "beta", Module: "beta"},
		},
	}
	ex := newTestExplainer(t, WithDescriptor(descriptor), WithSearchPaths(pluginDir))

	want := []string{"alpha", "beta", "gamma", "zeta"}
	assert.Equal(t, want, ex.List())
	assert.Equal(t, want, ex.List(), "List must be deterministic")

	assert.False(t, ex.loader.IsLoaded("beta"), "List must not import plugins")
	assert.False(t, ex.loader.IsLoaded("gamma"))
}

func TestListWithoutDescriptor(t *testing.T) {
	ex := newTestExplainer(t)
	assert.Empty(t, ex.List())
	assert.Nil(t, ex.Descriptor())
}

func TestImportFromPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugins", "myplugin", "init.lua"), runPlugin)
	t.Chdir(dir)

	ex := newTestExplainer(t)
	ctx := context.Background()

	spec, err := ex.ImportFrom(ctx, "./plugins/myplugin")
	require.NoError(t, err)
	assert.Equal(t, "myplugin", spec.Module)
	assert.Equal(t, []string{"run"}, spec.EntryPoints().Names())

	got, err := spec.Invoke(ctx, "run", nil)
	require.NoError(t, err)
	assert.Equal(t, "ran", got)

	got, err = spec.Invoke(ctx, "run", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "ran: x y", got)

	cached, ok := ex.Loaded("./plugins/myplugin")
	require.True(t, ok)
	assert.Same(t, spec, cached)

	head := ex.SearchPath()[0]
	assert.Equal(t, filepath.Join(dir, "plugins"), head)
}

func TestImportFromDescriptorRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vendor", "shap_impl.lua"), runPlugin)
	writeFile(t, filepath.Join(dir, "lib", "lime_explainer.lua"), runPlugin)
	descPath := writeFile(t, filepath.Join(dir, "desc.yaml"), `
name: default
search_paths: [lib]
plugins:
  - name: shap
    path: vendor/shap_impl.lua
    description: SHAP values
  - name: lime
    module: lime_explainer
`)

	ex := newTestExplainer(t, WithDescriptorPath(descPath))
	ctx := context.Background()

	assert.Equal(t, []string{"lime", "lime_explainer", "shap"}, ex.List())
	assert.Equal(t, "SHAP values", ex.Describe("shap"))

	spec, err := ex.ImportFrom(ctx, "shap")
	require.NoError(t, err)
	assert.Equal(t, "shap_impl", spec.Module)

	spec, err = ex.ImportFrom(ctx, "lime")
	require.NoError(t, err)
	assert.Equal(t, "lime_explainer", spec.Module)

	_, ok := ex.Loaded("lime")
	assert.True(t, ok)
	_, ok = ex.Loaded("lime_explainer")
	assert.False(t, ok, "specs are cached under the requested identifier")
}

func TestImportFromReplacesCachedSpec(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "counter.lua"), runPlugin)

	ex := newTestExplainer(t)
	ctx := context.Background()

	first, err := ex.ImportFrom(ctx, path)
	require.NoError(t, err)
	second, err := ex.ImportFrom(ctx, path)
	require.NoError(t, err)

	assert.NotEqual(t, first.LoadID, second.LoadID)
	cached, ok := ex.Loaded(path)
	require.True(t, ok)
	assert.Same(t, second, cached)
}

func TestImportFromNotFound(t *testing.T) {
	ex := newTestExplainer(t)

	_, err := ex.ImportFrom(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, err = ex.ImportFrom(context.Background(), "no_such_module")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, ok := ex.Loaded("no_such_module")
	assert.False(t, ok)
}

func TestImportFromLoadError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "broken.lua"), `error("boom")`)

	ex := newTestExplainer(t)

	_, err := ex.ImportFrom(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrPluginLoad)

	var loadErr *plugin.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Module)
}

func TestHostAPIListsPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "peer.lua"), runPlugin)
	writeFile(t, filepath.Join(dir, "inspector.lua"), `
local host = require("explainer.host")

return {
  entry_points = {
    peers = function() return host.list() end,
    version = function() return host.version() end,
  },
}
`)

	ex := newTestExplainer(t, WithSearchPaths(dir), WithVersion("1.2.3"))
	ctx := context.Background()

	spec, err := ex.ImportFrom(ctx, "inspector")
	require.NoError(t, err)

	got, err := spec.Invoke(ctx, "peers", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"inspector", "peer"}, got)

	got, err = spec.Invoke(ctx, "version", nil)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", got)
}

func TestDescriptorByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "team.yml"), `
name: team
plugins:
  - name: shared
    module: shared_plugin
`)

	ex := newTestExplainer(t, WithDescriptorName("team"), WithDescriptorDirs(dir))
	require.NotNil(t, ex.Descriptor())
	assert.Equal(t, "team", ex.Descriptor().Name)
	assert.Equal(t, []string{"shared"}, ex.List())
}

func TestNewErrors(t *testing.T) {
	_, err := New(WithDescriptorName("absent"), WithDescriptorDirs(t.TempDir()))
	assert.ErrorIs(t, err, ErrDescriptorNotFound)

	_, err = New(WithCacheSize(0))
	assert.Error(t, err)

	bad := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"), "plugins: [{name: x}]")
	_, err = New(WithDescriptorPath(bad))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestClose(t *testing.T) {
	ex := newTestExplainer(t)

	require.NoError(t, ex.Close())
	require.NoError(t, ex.Close())

	_, err := ex.ImportFrom(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEveryListedIdentifierImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "2dviz.lua"), runPlugin)
	writeFile(t, filepath.Join(dir, "shap.lua"), runPlugin)
	writeFile(t, filepath.Join(dir, "lime", "init.lua"), runPlugin)

	ex := newTestExplainer(t, WithSearchPaths(dir))
	ctx := context.Background()

	names := ex.List()
	assert.Equal(t, []string{"lime", "shap"}, names)
	for _, name := range names {
		_, err := ex.ImportFrom(ctx, name)
		assert.NoError(t, err, "ImportFrom(%q)", name)
	}
}
