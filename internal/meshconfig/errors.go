package meshconfig

import "fmt"

// ParseError reports an existing config.json that could not be understood.
// The reconciler never rewrites a file that produced one.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
