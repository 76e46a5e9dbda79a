package fileerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures of company-file operations so that callers can
// present a precise message (e.g. "wrong password" vs "file is damaged").
type Kind uint8

// Failure kinds.
const (
	KindUnknown Kind = iota
	// KindCorruptData means the compressed stream is malformed or truncated.
	KindCorruptData
	// KindAuthentication means the integrity tag did not match: the file was
	// tampered with or the key is wrong.
	KindAuthentication
	// KindInvalidPassword means the password verifier did not match.
	KindInvalidPassword
	// KindCorruptArchive means the archive structure is invalid.
	KindCorruptArchive
	// KindCorruptFooter means the trailer marker, length or body is inconsistent.
	KindCorruptFooter
	// KindVersionIncompatible means there is no migration path to the current
	// format version or the file is newer than the program.
	KindVersionIncompatible
	// KindMigrationFailed means a migration step failed.
	KindMigrationFailed
	// KindIO means an underlying read or write failed.
	KindIO
	// KindInvalidEntry means the caller supplied entries that can not be packed.
	KindInvalidEntry
	// KindRestoreFailed means the original file could not be restored from the
	// pre-migration backup. This is fatal: data may be lost.
	KindRestoreFailed
	// KindCanceled means the operation was interrupted by its context.
	KindCanceled
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindCorruptData:         "corrupt data",
	KindAuthentication:      "authentication failed",
	KindInvalidPassword:     "invalid password",
	KindCorruptArchive:      "corrupt archive",
	KindCorruptFooter:       "corrupt footer",
	KindVersionIncompatible: "incompatible version",
	KindMigrationFailed:     "migration failed",
	KindIO:                  "i/o failure",
	KindInvalidEntry:        "invalid entry",
	KindRestoreFailed:       "restore failed",
	KindCanceled:            "canceled",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error implements error interface. Errors of the same Kind match each other
// with errors.Is, so the package-level sentinels may be used as targets.
func (k Kind) Error() string { return k.String() }

// Sentinels for errors.Is checks.
var (
	ErrCorruptData         error = KindCorruptData
	ErrAuthentication      error = KindAuthentication
	ErrInvalidPassword     error = KindInvalidPassword
	ErrCorruptArchive      error = KindCorruptArchive
	ErrCorruptFooter       error = KindCorruptFooter
	ErrVersionIncompatible error = KindVersionIncompatible
	ErrMigrationFailed     error = KindMigrationFailed
	ErrIO                  error = KindIO
	ErrInvalidEntry        error = KindInvalidEntry
	ErrRestoreFailed       error = KindRestoreFailed
	ErrCanceled            error = KindCanceled
)

// Error is a classified failure of a company-file operation.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "open" or "save".
	Op string
	// Path is the file the operation worked on, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an error of the given kind with a message.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Err: errors.New(msg)}
}

// Newf is like New but formats the message.
func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err with the given kind. If err is already classified, its
// kind is kept. Returns nil for nil err.
func Wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: k, Err: err}
}

// WithOp annotates err with an operation name and a file path keeping its
// kind. Unclassified context errors become KindCanceled, any other
// unclassified error KindIO. Returns nil for nil err.
func WithOp(op, path string, err error) error {
	if err == nil {
		return nil
	}
	k := KindOf(err)
	if k == KindUnknown {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			k = KindCanceled
		} else {
			k = KindIO
		}
	}
	if e, ok := err.(*Error); ok && e.Op == "" && e.Path == "" {
		return &Error{Kind: k, Op: op, Path: path, Err: e.Err}
	}
	return &Error{Kind: k, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindUnknown
}
