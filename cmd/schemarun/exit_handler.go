package main

import (
	"errors"
	"os"

	"github.com/loykin/schemarun"
	"github.com/loykin/schemarun/cmd/schemarun/commands"
	"github.com/loykin/schemarun/internal/common"
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct {
	logger *common.Logger
}

// NewDefaultExitHandler creates a new default exit handler
func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{
		logger: common.GetLogger().WithComponent("main"),
	}
}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs a fatal error and exits with 2 for a commands.UsageError
// (flag parse failures included), ErrStepCount or ErrInvalidVersion, and with 1
// for everything else. Argument-count errors from cobra's Args validators are
// plain errors and therefore exit with 1.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	allKeyvals := append([]any{"error", err}, keyvals...)
	h.logger.Error(msg, allKeyvals...)
	h.Exit(exitCode(err))
}

func exitCode(err error) int {
	var uerr *commands.UsageError
	if errors.As(err, &uerr) ||
		errors.Is(err, schemarun.ErrStepCount) ||
		errors.Is(err, schemarun.ErrInvalidVersion) {
		return 2
	}
	return 1
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()
