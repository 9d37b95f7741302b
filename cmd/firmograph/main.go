// Command firmograph crawls business-entity websites for their legal
// disclosure data and exports validated records.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Firmograph/Firmograph/internal/orchestrator"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// exitError carries an explicit process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: orchestrator.ExitConfig, err: err}
}

func storageError(err error) error {
	return &exitError{code: orchestrator.ExitStorage, err: err}
}
