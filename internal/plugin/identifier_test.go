package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsPathIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"myplugin", false},
		{"tools.wordcount", false},
		{"./plugins/myplugin", true},
		{"../myplugin", true},
		{"/abs/myplugin", true},
		{"plugins/myplugin", true},
		{"~/plugins/myplugin", true},
		{"myplugin.lua", true},
		{".hidden", true},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			if got := IsPathIdentifier(tt.identifier); got != tt.want {
				t.Errorf("IsPathIdentifier(%q) = %v, want %v", tt.identifier, got, tt.want)
			}
		})
	}
}

func TestResolveModuleName(t *testing.T) {
	target, err := Resolve("tools.wordcount")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Module != "tools.wordcount" {
		t.Errorf("Module = %q, want %q", target.Module, "tools.wordcount")
	}
	if target.SearchDir != "" {
		t.Errorf("SearchDir = %q, want empty", target.SearchDir)
	}
	if target.IsPath() {
		t.Error("IsPath() = true for module name")
	}
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugins", "myplugin", "init.lua"), "return {}")

	target, err := Resolve(filepath.Join(dir, "plugins", "myplugin"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Module != "myplugin" {
		t.Errorf("Module = %q, want %q", target.Module, "myplugin")
	}
	if target.SearchDir != filepath.Join(dir, "plugins") {
		t.Errorf("SearchDir = %q, want %q", target.SearchDir, filepath.Join(dir, "plugins"))
	}
	if !target.IsPath() {
		t.Error("IsPath() = false for directory")
	}
}

func TestResolveRelativePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugins", "myplugin", "init.lua"), "return {}")
	t.Chdir(dir)

	target, err := Resolve("./plugins/myplugin")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantDir, err := filepath.Abs("plugins")
	if err != nil {
		t.Fatal(err)
	}
	if target.SearchDir != wantDir {
		t.Errorf("SearchDir = %q, want %q", target.SearchDir, wantDir)
	}
	if target.Identifier != "./plugins/myplugin" {
		t.Errorf("Identifier = %q, want original string", target.Identifier)
	}
}

func TestResolveLuaFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "single.lua"), "return {}")

	target, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Module != "single" {
		t.Errorf("Module = %q, want %q", target.Module, "single")
	}
	if target.SearchDir != dir {
		t.Errorf("SearchDir = %q, want %q", target.SearchDir, dir)
	}
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	notLua := writeFile(t, filepath.Join(dir, "readme.txt"), "hello")
	dotted := filepath.Join(dir, "my.plugin")
	if err := os.MkdirAll(dotted, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		identifier string
		want       error
	}{
		{"empty", "", ErrInvalidIdentifier},
		{"whitespace", "   ", ErrInvalidIdentifier},
		{"nul byte", "my\x00plugin", ErrInvalidIdentifier},
		{"pattern character", "my?plugin", ErrInvalidIdentifier},
		{"bad module name", "bad name!", ErrInvalidIdentifier},
		{"leading digit module", "1plugin", ErrInvalidIdentifier},
		{"missing path", filepath.Join(dir, "nope"), ErrPluginNotFound},
		{"missing lua file", filepath.Join(dir, "nope.lua"), ErrPluginNotFound},
		{"non-lua file", notLua, ErrInvalidIdentifier},
		{"dotted directory", dotted, ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.identifier)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve(%q) error = %v, want %v", tt.identifier, err, tt.want)
			}
		})
	}
}
