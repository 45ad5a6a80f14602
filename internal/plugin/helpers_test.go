package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates path (and its parents) with content.
func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestLoader creates a loader that ignores the interpreter default path.
func newTestLoader(t *testing.T, opts ...LoaderOption) *Loader {
	t.Helper()
	opts = append([]LoaderOption{WithBasePath("")}, opts...)
	loader, err := NewLoader(opts...)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	t.Cleanup(func() { _ = loader.Close() })
	return loader
}

// mustLoad loads identifier and fails the test on error.
func mustLoad(t *testing.T, loader *Loader, identifier string) *ModuleSpec {
	t.Helper()
	spec, err := loader.Load(context.Background(), identifier)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", identifier, err)
	}
	return spec
}

const echoPlugin = `
local M = {}

M.entry_points = {
  run = function(text)
    if text == nil then
      return "got: none"
    end
    return "got: " .. text
  end,
  version = function() return "1.0.0" end,
}

return M
`
