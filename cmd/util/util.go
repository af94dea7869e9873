package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/filesync/pkg/errors"
)

// Mocked for unit testing.
var exit = os.Exit

// HandleFatalError handles errors that are severe enough to terminate the
// program. Friendly errors are printed as-is; all other errors are logged with
// their full context.
func HandleFatalError(err error) {
	if friendlyErr, ok := errors.RootCause(err).(errors.FriendlyError); ok {
		fmt.Fprintln(os.Stderr, friendlyErr.Error())
	} else {
		log.WithError(err).Error("Fatal error")
	}
	exit(1)
}

// HandlePanic logs the stack trace of a panic and exits. It should be
// deferred at the start of goroutines whose failure leaves the process
// unusable.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		exit(1)
	}
}
