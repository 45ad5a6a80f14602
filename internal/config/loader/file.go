package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// Format is a configuration file syntax.
type Format struct {
	// Name is used in error messages ("toml", "yaml").
	Name string

	// Extensions lists the lower-case file extensions of the format.
	Extensions []string

	unmarshal func(data []byte) (map[string]any, error)
	position  func(err error) (line, column int)
}

// formats lists the supported syntaxes; the first is the fallback.
var formats = []Format{TOML, YAML}

// FormatFor returns the format matching the extension of path, or TOML.
func FormatFor(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.Extensions {
			if e == ext {
				return f
			}
		}
	}
	return formats[0]
}

// File reads one configuration file.
type File struct {
	fs     FileSystem
	path   string
	format Format
}

var (
	_ FileLoader   = (*File)(nil)
	_ ReaderLoader = (*File)(nil)
	_ Loader       = (*EnvLoader)(nil)
)

// NewFile creates a loader for path in the given format.
func NewFile(fsys FileSystem, path string, format Format) *File {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &File{fs: fsys, path: path, format: format}
}

// Format returns the syntax the file is parsed as.
func (f *File) Format() Format {
	return f.format
}

// Load reads the configured path. A missing file yields nil, nil.
func (f *File) Load() (map[string]any, error) {
	return f.LoadFrom(f.path)
}

// LoadFrom reads path in the loader's format. A missing file yields nil, nil.
func (f *File) LoadFrom(path string) (map[string]any, error) {
	data, err := f.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return f.decode(path, data)
}

// LoadFromReader parses configuration read from r.
func (f *File) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return f.decode("<reader>", data)
}

// decode parses data. An empty document yields an empty map.
func (f *File) decode(source string, data []byte) (map[string]any, error) {
	config, err := f.format.unmarshal(data)
	if err != nil {
		perr := &ParseError{
			Path:    source,
			Format:  f.format.Name,
			Message: err.Error(),
			Err:     err,
		}
		if f.format.position != nil {
			perr.Line, perr.Column = f.format.position(err)
		}
		return nil, perr
	}
	if config == nil {
		config = make(map[string]any)
	}
	return config, nil
}
