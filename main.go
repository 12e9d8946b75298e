package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tonimelisma/rmcloud-upload/internal/config"
	"github.com/tonimelisma/rmcloud-upload/internal/upload"
)

// Process exit codes.
const (
	exitOK            = 0
	exitFault         = 1
	exitFileNotFound  = 2
	exitNotConfigured = 3
	exitUploadFailed  = 4
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

// exitCode maps an error onto the documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, upload.ErrFileNotFound):
		return exitFileNotFound
	case errors.Is(err, config.ErrNotConfigured):
		return exitNotConfigured
	case errors.Is(err, upload.ErrUploadFailed):
		return exitUploadFailed
	default:
		return exitFault
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}
