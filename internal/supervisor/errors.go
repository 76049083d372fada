package supervisor

import "fmt"

// LaunchError means the server process could not be started. Without a
// child there is nothing to supervise, so callers treat it as fatal.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
