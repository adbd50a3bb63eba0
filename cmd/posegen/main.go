package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Run finalized
	ExitJobsFailed = 1 // Run finalized with failed jobs and --strict was set
	ExitError      = 2 // Configuration or runtime error
)

// JobFailureError indicates that the run finalized, but one or more jobs
// failed. It's only returned when --strict is set.
type JobFailureError struct {
	Message string
}

func (e *JobFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var jobFailureErr *JobFailureError
		if errors.As(err, &jobFailureErr) {
			os.Exit(ExitJobsFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
