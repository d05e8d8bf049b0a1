// Command elbow runs hyperparameter sweeps and selects their elbow from the
// command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/okian/elbow/internal/domain/elbow"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0
	ExitError    = 1 // configuration or runtime error
	ExitBadSweep = 2 // the sweep has no defined elbow
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, elbow.ErrInvalidSweep) || errors.Is(err, elbow.ErrDegenerateSweep) {
			os.Exit(ExitBadSweep)
		}
		os.Exit(ExitError)
	}
}
