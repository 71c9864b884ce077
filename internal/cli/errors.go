package cli

import "errors"

// ErrUsage marks errors caused by how the command was invoked: bad flags,
// unreadable inputs, invalid project or schema documents.
var ErrUsage = errors.New("cli usage error")

// Exit codes returned by the specforge binary.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// ExitCode maps an Execute error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}
