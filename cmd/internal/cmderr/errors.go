package cmderr

import (
	"errors"
	"fmt"
	"os"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

// Exit codes of company file failures. Scripts may rely on them.
const (
	CodeGeneric           = 1
	CodeInvalidPassword   = 2
	CodeCorrupt           = 3
	CodeIncompatible      = 4
	CodeMigrationFailed   = 5
	CodeRestoreFailed     = 6
	CodeInvalidInput      = 7
	CodePasswordIncorrect = 8
	CodeCanceled          = 9
)

// ExitErr specific error for ExitOnErr function that passes the exit code and error caused.
type ExitErr struct {
	Code  int
	Cause error
}

func (x ExitErr) Error() string { return x.Cause.Error() }

func (x ExitErr) Unwrap() error { return x.Cause }

// ExitCode returns the process exit code for err: the code of ExitErr if
// any, otherwise the code of the company file error kind. Returns 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var e ExitErr
	if errors.As(err, &e) {
		return e.Code
	}

	switch fileerr.KindOf(err) {
	case fileerr.KindInvalidPassword:
		return CodeInvalidPassword
	case fileerr.KindCorruptData, fileerr.KindAuthentication, fileerr.KindCorruptArchive, fileerr.KindCorruptFooter:
		return CodeCorrupt
	case fileerr.KindVersionIncompatible:
		return CodeIncompatible
	case fileerr.KindMigrationFailed:
		return CodeMigrationFailed
	case fileerr.KindRestoreFailed:
		return CodeRestoreFailed
	case fileerr.KindInvalidEntry:
		return CodeInvalidInput
	case fileerr.KindCanceled:
		return CodeCanceled
	default:
		return CodeGeneric
	}
}

// ExitOnErr writes error to os.Stderr and calls os.Exit with the code
// returned by ExitCode. Does nothing if err is nil.
func ExitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitCode(err))
	}
}
