package cli

import (
	"errors"
	"fmt"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/config"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/fragment"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/plan"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/sqlcheck"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeParse       = "E002" // Malformed definition file
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeUnsupported = "E004" // Unsupported definition format
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeInvalid     = "E006" // Invalid definition
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeUnreadable  = "E008" // File exists but cannot be read

	ErrCodeMissingRole    = "E201" // Missing or colliding mapping role
	ErrCodeDuplicateStage = "E202" // Two facts expose the same table
	ErrCodeNoTerminal     = "E203" // Fragment without terminal select (strict)
	ErrCodeUnbalanced     = "E204" // SQL balance check failed

	ErrCodeExecFailed = "E301" // Statement execution failed
)

// errorCode maps an error from the config, compose and sqlcheck packages to
// its CLI code. The first matching category wins.
func errorCode(err error) string {
	switch {
	case errors.Is(err, config.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, config.ErrUnreadable):
		return ErrCodeUnreadable
	case errors.Is(err, config.ErrParse):
		return ErrCodeParse
	case errors.Is(err, config.ErrUnsupportedFormat):
		return ErrCodeUnsupported
	case errors.Is(err, config.ErrInvalid):
		return ErrCodeInvalid
	case errors.Is(err, compose.ErrMissingRole), errors.Is(err, compose.ErrDuplicateColumn):
		return ErrCodeMissingRole
	case errors.Is(err, plan.ErrDuplicateStage):
		return ErrCodeDuplicateStage
	case errors.Is(err, fragment.ErrNoTerminalSelect):
		return ErrCodeNoTerminal
	case errors.Is(err, sqlcheck.ErrUnbalanced):
		return ErrCodeUnbalanced
	default:
		return ErrCodeGeneric
	}
}

// outputError reports err through the formatter and returns the ExitError
// the command should fail with.
func outputError(formatter *OutputFormatter, exitCode int, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return reported(NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message)))
}

// outputCommandError reports err under its mapped code with exit code 2.
// The returned ExitError wraps err, so callers can still match its sentinels.
func outputCommandError(formatter *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return reported(WrapExitError(ExitCommandError, code, err))
}
