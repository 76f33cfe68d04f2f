package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshp123/xiqsync/internal/ui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprint(os.Stderr, ui.FormatError("xiqsync failed", err.Error(), hintFor(err)))
		os.Exit(1)
	}
}

// exitError carries a specific exit code without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
