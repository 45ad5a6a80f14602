package loader

import "fmt"

// ParseError reports a configuration file that could not be decoded.
type ParseError struct {
	Path    string
	Format  string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	where := e.Path
	switch {
	case e.Line > 0 && e.Column > 0:
		where = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	case e.Line > 0:
		where = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("invalid %s config %s: %s", e.Format, where, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
