package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/phueb/twoprocess/internal/evaluation"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Experiment finished and scores were saved
	ExitInterrupted = 1 // Interrupted, or a debug run that saves no scores
	ExitError       = 2 // Configuration or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, evaluation.ErrInterrupted), errors.Is(err, evaluation.ErrDebugExit):
		return ExitInterrupted
	default:
		return ExitError
	}
}
