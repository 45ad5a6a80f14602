package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// moduleNamePattern validates logical module identifiers (dotted Lua module names).
var moduleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z_][A-Za-z0-9_-]*)*$`)

// pathModulePattern validates module names derived from the last path component.
var pathModulePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// Target is the resolved form of a plugin identifier.
type Target struct {
	// Identifier is the string the caller supplied.
	Identifier string

	// Module is the name passed to require.
	Module string

	// SearchDir is the directory to prepend to the search path.
	// Empty for logical module names.
	SearchDir string

	// Path is the absolute filesystem path for path identifiers.
	Path string
}

// IsPath reports whether the identifier named a filesystem location.
func (t Target) IsPath() bool {
	return t.Path != ""
}

// IsPathIdentifier reports whether identifier should be treated as a filesystem
// path rather than a logical module name.
func IsPathIdentifier(identifier string) bool {
	return strings.ContainsRune(identifier, '/') ||
		strings.ContainsRune(identifier, filepath.Separator) ||
		strings.HasPrefix(identifier, ".") ||
		strings.HasPrefix(identifier, "~") ||
		strings.HasSuffix(identifier, ".lua")
}

// Resolve determines where a plugin lives without touching the Lua runtime.
//
// Path identifiers must exist and be readable: a directory D/N resolves to
// module N searched in D, and a file D/N.lua resolves the same way. Anything
// else is treated as a logical module name found through the current search
// path.
func Resolve(identifier string) (Target, error) {
	if strings.TrimSpace(identifier) == "" {
		return Target{}, fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}
	if strings.ContainsAny(identifier, "\x00;?") {
		return Target{}, fmt.Errorf("%w: %q contains a reserved character", ErrInvalidIdentifier, identifier)
	}

	if !IsPathIdentifier(identifier) {
		if !moduleNamePattern.MatchString(identifier) {
			return Target{}, fmt.Errorf("%w: %q is not a module name", ErrInvalidIdentifier, identifier)
		}
		return Target{Identifier: identifier, Module: identifier}, nil
	}

	path, err := expandPath(identifier)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s: %v", ErrInvalidIdentifier, identifier, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s", ErrPluginNotFound, identifier)
	}
	if err := checkReadable(path, info.IsDir()); err != nil {
		return Target{}, fmt.Errorf("%w: %s: %v", ErrPluginNotFound, identifier, err)
	}

	base := filepath.Base(path)
	if !info.IsDir() {
		if filepath.Ext(base) != ".lua" {
			return Target{}, fmt.Errorf("%w: %s is not a .lua file", ErrInvalidIdentifier, identifier)
		}
		base = strings.TrimSuffix(base, ".lua")
	}
	if !pathModulePattern.MatchString(base) {
		return Target{}, fmt.Errorf("%w: cannot derive a module name from %s", ErrInvalidIdentifier, identifier)
	}

	return Target{
		Identifier: identifier,
		Module:     base,
		SearchDir:  filepath.Dir(path),
		Path:       path,
	}, nil
}

// expandPath resolves a leading ~ and makes the path absolute.
func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// checkReadable verifies the process can read the plugin location.
func checkReadable(path string, dir bool) error {
	if dir {
		_, err := os.ReadDir(path)
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
