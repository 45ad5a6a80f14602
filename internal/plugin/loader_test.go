package plugin

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/explainer/internal/plugin/api"
	plua "github.com/dshills/explainer/internal/plugin/lua"
)

func TestNewLoader(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(t, WithSearchPaths(dir, "", dir))

	paths := loader.SearchPath()
	if len(paths) != 1 || paths[0] != dir {
		t.Errorf("SearchPath() = %v, want [%s]", paths, dir)
	}
	if loader.State() == nil {
		t.Error("State() returned nil")
	}
}

func TestDefaultPluginPaths(t *testing.T) {
	paths := DefaultPluginPaths()
	if len(paths) == 0 {
		t.Error("DefaultPluginPaths() should not be empty")
	}
}

func TestLoaderLoadRelativeDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugins", "myplugin", "init.lua"), echoPlugin)
	t.Chdir(dir)

	loader := newTestLoader(t)
	spec := mustLoad(t, loader, "./plugins/myplugin")

	if spec.Module != "myplugin" {
		t.Errorf("Module = %q, want %q", spec.Module, "myplugin")
	}
	if spec.Identifier != "./plugins/myplugin" {
		t.Errorf("Identifier = %q, want %q", spec.Identifier, "./plugins/myplugin")
	}

	pluginsDir, err := filepath.Abs("plugins")
	if err != nil {
		t.Fatal(err)
	}
	if got := loader.SearchPath(); len(got) == 0 || got[0] != pluginsDir {
		t.Errorf("SearchPath() = %v, want %s at head", got, pluginsDir)
	}

	run, ok := spec.Lookup("run")
	if !ok {
		t.Fatal("Lookup(run) not found")
	}

	ctx := context.Background()
	got, err := run.Invoke(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != "got: a b" {
		t.Errorf("Invoke([a b]) = %v, want %q", got, "got: a b")
	}

	got, err = run.Invoke(ctx, nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != "got: none" {
		t.Errorf("Invoke() = %v, want %q", got, "got: none")
	}

	if !loader.IsLoaded("myplugin") {
		t.Error("IsLoaded(myplugin) = false after Load")
	}
}

func TestLoaderLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "single.lua"), echoPlugin)

	loader := newTestLoader(t)
	spec := mustLoad(t, loader, path)

	if spec.Module != "single" {
		t.Errorf("Module = %q, want %q", spec.Module, "single")
	}
	if spec.Source != path {
		t.Errorf("Source = %q, want %q", spec.Source, path)
	}
	if spec.EntryPoints().Len() != 2 {
		t.Errorf("EntryPoints().Len() = %d, want 2", spec.EntryPoints().Len())
	}
}

func TestLoaderLoadModuleName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tools", "echo.lua"), echoPlugin)

	loader := newTestLoader(t, WithSearchPaths(dir))
	spec := mustLoad(t, loader, "tools.echo")

	if spec.SearchDir != "" {
		t.Errorf("SearchDir = %q, want empty for module names", spec.SearchDir)
	}
	got, err := spec.Invoke(context.Background(), "version", nil)
	if err != nil {
		t.Fatalf("Invoke(version) error = %v", err)
	}
	if got != "1.0.0" {
		t.Errorf("Invoke(version) = %v, want %q", got, "1.0.0")
	}
}

func TestLoaderLoadSiblingAfterPathImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.lua"), echoPlugin)
	writeFile(t, filepath.Join(dir, "second.lua"), echoPlugin)

	loader := newTestLoader(t)
	if _, err := loader.Load(context.Background(), "second"); !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("Load(second) before path import error = %v, want ErrPluginNotFound", err)
	}

	mustLoad(t, loader, filepath.Join(dir, "first.lua"))
	mustLoad(t, loader, "second")
}

func TestLoaderLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(t, WithSearchPaths(dir))

	for _, id := range []string{"missing", filepath.Join(dir, "missing"), filepath.Join(dir, "missing.lua")} {
		_, err := loader.Load(context.Background(), id)
		if !errors.Is(err, ErrPluginNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrPluginNotFound", id, err)
		}
	}
}

func TestLoaderLoadDirectoryWithoutModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty", "README"), "nothing here")

	loader := newTestLoader(t)
	_, err := loader.Load(context.Background(), filepath.Join(dir, "empty"))
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Load() error = %v, want ErrPluginNotFound", err)
	}
	// The parent dir stays on the search path after the failed import.
	if got := loader.SearchPath(); len(got) == 0 || got[0] != dir {
		t.Errorf("SearchPath() = %v, want %s at head", got, dir)
	}
}

func TestLoaderLoadInvalidIdentifier(t *testing.T) {
	loader := newTestLoader(t)

	for _, id := range []string{"", "  ", "bad name!"} {
		_, err := loader.Load(context.Background(), id)
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
}

func TestLoaderLoadRaises(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "broken.lua"), `error("boom")`)

	loader := newTestLoader(t)
	_, err := loader.Load(context.Background(), path)

	if !errors.Is(err, ErrPluginLoad) {
		t.Fatalf("Load() error = %v, want ErrPluginLoad", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %T, want *LoadError", err)
	}
	if loadErr.Module != "broken" {
		t.Errorf("LoadError.Module = %q, want %q", loadErr.Module, "broken")
	}
	var apiErr *glua.ApiError
	if !errors.As(err, &apiErr) {
		t.Errorf("Load() error should wrap *lua.ApiError, got %v", err)
	}

	// The search path change is kept after a failed import.
	if got := loader.SearchPath(); len(got) == 0 || got[0] != dir {
		t.Errorf("SearchPath() = %v, want %s at head", got, dir)
	}
	if loader.IsLoaded("broken") {
		t.Error("IsLoaded(broken) = true after failed load")
	}

	// Fixing the file makes the next load succeed.
	writeFile(t, path, echoPlugin)
	mustLoad(t, loader, path)
}

func TestLoaderReloadReplaces(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "changing.lua"), `
return { entry_points = { old = function() return "old" end } }
`)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	loader := newTestLoader(t, WithClock(func() time.Time { return now }))
	first := mustLoad(t, loader, path)

	writeFile(t, path, `
return { entry_points = { new = function() return "new" end } }
`)
	second := mustLoad(t, loader, path)

	if first.LoadID == second.LoadID {
		t.Error("LoadID should change between loads")
	}
	if !second.LoadedAt.Equal(now) {
		t.Errorf("LoadedAt = %v, want %v", second.LoadedAt, now)
	}
	if _, ok := second.Lookup("old"); ok {
		t.Error("reloaded spec still has entry point from previous load")
	}
	if _, ok := second.Lookup("new"); !ok {
		t.Error("reloaded spec missing new entry point")
	}
	if names := first.EntryPoints().Names(); len(names) != 1 || names[0] != "old" {
		t.Errorf("first spec Names() = %v, want [old]", names)
	}

	if got := loader.SearchPath(); len(got) != 1 {
		t.Errorf("SearchPath() = %v, want a single entry after repeated loads", got)
	}
}

func TestLoaderManifestEntryPoints(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "counter")
	writeFile(t, filepath.Join(pluginDir, "init.lua"), `
local M = {}

function M.count(text)
  local n = 0
  for _ in string.gmatch(text or "", "%S+") do n = n + 1 end
  return n
end

M.entry_points = {
  count = function() return "module field" end,
  extra = function() return "extra" end,
}

return M
`)
	writeFile(t, filepath.Join(pluginDir, "plugin.json"), `{
		"name": "counter",
		"version": "1.0.0",
		"entry_points": {
			"count": "count",
			"helper": "counter.helper:shout"
		}
	}`)
	writeFile(t, filepath.Join(dir, "counter", "helper.lua"), `
return { shout = function(s) return string.upper(s or "") end }
`)

	loader := newTestLoader(t)
	spec := mustLoad(t, loader, pluginDir)

	if spec.Manifest == nil || spec.Manifest.Name != "counter" {
		t.Fatalf("Manifest = %v, want counter manifest", spec.Manifest)
	}

	names := spec.EntryPoints().Names()
	want := []string{"count", "extra", "helper"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	ctx := context.Background()
	got, err := spec.Invoke(ctx, "count", []string{"one two", "three"})
	if err != nil {
		t.Fatalf("Invoke(count) error = %v", err)
	}
	if got != int64(3) {
		t.Errorf("Invoke(count) = %v (%T), want 3", got, got)
	}

	ep, _ := spec.Lookup("helper")
	if ep.Target() != "counter.helper:shout" {
		t.Errorf("Target() = %q, want %q", ep.Target(), "counter.helper:shout")
	}
	got, err = ep.Invoke(ctx, []string{"hi"})
	if err != nil {
		t.Fatalf("Invoke(helper) error = %v", err)
	}
	if got != "HI" {
		t.Errorf("Invoke(helper) = %v, want %q", got, "HI")
	}
}

func TestLoaderInvalidEntryPoints(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"not a function", `return { entry_points = { bad = 42 } }`},
		{"too many parameters", `return { entry_points = { bad = function(a, b) end } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(t.TempDir(), "bad.lua"), tt.source)
			loader := newTestLoader(t)

			_, err := loader.Load(context.Background(), path)
			if !errors.Is(err, ErrPluginLoad) {
				t.Errorf("Load() error = %v, want ErrPluginLoad", err)
			}
			if !errors.Is(err, ErrInvalidEntryPoint) {
				t.Errorf("Load() error = %v, want ErrInvalidEntryPoint", err)
			}
		})
	}
}

func TestLoaderInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "single.lua"), echoPlugin)
	writeFile(t, filepath.Join(dir, "single.plugin.json"), `{"version": "nope"}`)

	loader := newTestLoader(t)
	_, err := loader.Load(context.Background(), path)
	if !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("Load() error = %v, want ErrInvalidManifest", err)
	}
	if !errors.Is(err, ErrPluginLoad) {
		t.Errorf("Load() error = %v, want ErrPluginLoad", err)
	}
}

func TestLoaderNoEntryPoints(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "plain.lua"), `x = 1`)
	loader := newTestLoader(t)

	spec := mustLoad(t, loader, path)
	if spec.EntryPoints().Len() != 0 {
		t.Errorf("EntryPoints().Len() = %d, want 0", spec.EntryPoints().Len())
	}
	if _, ok := spec.Lookup("anything"); ok {
		t.Error("Lookup() found entry point in empty table")
	}
	if _, err := spec.Invoke(context.Background(), "anything", nil); !errors.Is(err, ErrInvalidEntryPoint) {
		t.Errorf("Invoke() error = %v, want ErrInvalidEntryPoint", err)
	}
}

func TestLoaderEntryPointRaises(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "raiser.lua"), `
return { entry_points = { fail = function(s) error("bad input: " .. (s or "")) end } }
`)
	loader := newTestLoader(t)
	spec := mustLoad(t, loader, path)

	_, err := spec.Invoke(context.Background(), "fail", []string{"x"})
	var apiErr *glua.ApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Invoke() error = %v, want *lua.ApiError", err)
	}
	if errors.Is(err, ErrPluginLoad) {
		t.Error("invocation errors should not be wrapped as load errors")
	}
}

func TestLoaderClose(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "echo.lua"), echoPlugin)
	loader := newTestLoader(t)
	spec := mustLoad(t, loader, path)

	if err := loader.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := loader.Load(context.Background(), path); !errors.Is(err, plua.ErrStateClosed) {
		t.Errorf("Load() after Close error = %v, want ErrStateClosed", err)
	}
	if _, err := spec.Invoke(context.Background(), "run", nil); !errors.Is(err, plua.ErrStateClosed) {
		t.Errorf("Invoke() after Close error = %v, want ErrStateClosed", err)
	}
}

func TestLoaderWithModules(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "words.lua"), `
local util = require("explainer.util")
return { entry_points = { count = function(s) return #util.fields(s) end } }
`)
	reg, err := api.NewRegistry(api.NewUtilModule())
	if err != nil {
		t.Fatal(err)
	}

	loader := newTestLoader(t, WithModules(reg))
	spec := mustLoad(t, loader, path)

	got, err := spec.Invoke(context.Background(), "count", []string{"a b", "c"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != int64(3) {
		t.Errorf("Invoke() = %v, want 3", got)
	}
}
