// Package status carries the two-tier error model used across the SPM:
// recoverable status codes returned to callers via reply(), and fatal
// invariant violations that halt the secure world.
package status

import (
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Code is a PSA-style recoverable status code. Positive values (Success
// and above) indicate success with a domain-specific result; negative
// values are errors.
type Code int32

// InvalidSource stamps records written by the emulator/NSPE direct-call
// path. See spec.md §4.7.
const InvalidSource int32 = 0

// VersionNone is returned by Client.Version for a SID no partition
// implements, per spec.md §6's `version(sid) -> minor version or
// VERSION_NONE`. It is disjoint from every valid RotService.MinVersion
// a partition can declare (0 is a legitimate minimum version), so it
// unambiguously means "no such service" rather than "version zero".
const VersionNone uint32 = 0xFFFFFFFF

// Recoverable status codes, per spec.md §7.
const (
	Success Code = 0

	BadPointer        Code = -1
	InvalidKey        Code = -2
	KeyNotFound       Code = -3
	IncorrectSize     Code = -4
	OffsetInvalid     Code = -5
	InsufficientSpace Code = -6
	FlagsSetAfterCreate Code = -7
	StorageFailure    Code = -8

	ConnectionRefused Code = -9
	ConnectionBusy    Code = -10
	Version           Code = -11
	DropConnection    Code = -12

	// PoolExhausted, InvalidHandle are recoverable at the handle-manager
	// API boundary (programming errors at the SPM level become panics
	// once past that boundary; see Panicf).
	PoolExhausted Code = -13
	InvalidHandle Code = -14
)

var codeNames = map[Code]string{
	Success:             "SUCCESS",
	BadPointer:          "BAD_POINTER",
	InvalidKey:          "INVALID_KEY",
	KeyNotFound:         "KEY_NOT_FOUND",
	IncorrectSize:       "INCORRECT_SIZE",
	OffsetInvalid:       "OFFSET_INVALID",
	InsufficientSpace:   "INSUFFICIENT_SPACE",
	FlagsSetAfterCreate: "FLAGS_SET_AFTER_CREATE",
	StorageFailure:      "STORAGE_FAILURE",
	ConnectionRefused:   "CONNECTION_REFUSED",
	ConnectionBusy:      "CONNECTION_BUSY",
	Version:             "VERSION",
	DropConnection:      "DROP_CONNECTION",
	PoolExhausted:       "POOL_EXHAUSTED",
	InvalidHandle:       "INVALID_HANDLE",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int32(c))
}

// Error is a recoverable SPM status, suitable for crossing the
// client/server boundary via reply(). It wraps a grpc status.Status
// internally so every recoverable error is carried through the same
// mechanism the teacher used to carry Invoke's result back across the
// in-process call boundary, without adopting gRPC's method/service model.
type Error struct {
	Code Code
	grpc *grpcstatus.Status
}

// Newf builds an *Error for the given code, with a human-readable detail
// message. The message never crosses the wire in a real PSA build (PSA
// calls return only the status code); it exists for logs and test
// failures.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code: code,
		grpc: grpcstatus.Newf(grpcCode(code), format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return Success.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.grpc.Message())
}

// Is reports whether err carries the given Code, unwrapping *Error.
func Is(err error, code Code) bool {
	se, ok := err.(*Error)
	return ok && se != nil && se.Code == code
}

// CodeOf extracts the Code from err, or Success if err is nil, or
// StorageFailure if err is a non-status error (a programming mistake
// surfaced defensively rather than panicking, since CodeOf is used on
// the hot reply path).
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return StorageFailure
}

// grpcCode maps a PSA Code onto the nearest grpc/codes.Code, purely so
// Error can ride on google.golang.org/grpc/status's Status plumbing.
func grpcCode(code Code) codes.Code {
	switch code {
	case Success:
		return codes.OK
	case KeyNotFound, InvalidHandle:
		return codes.NotFound
	case InvalidKey, BadPointer, OffsetInvalid, IncorrectSize:
		return codes.InvalidArgument
	case InsufficientSpace, PoolExhausted:
		return codes.ResourceExhausted
	case FlagsSetAfterCreate:
		return codes.AlreadyExists
	case ConnectionRefused, DropConnection:
		return codes.Unavailable
	case ConnectionBusy:
		return codes.Aborted
	case Version:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// Panicf reports a fatal invariant violation. Per spec.md §5/§7, trusted
// code never converts a fatal condition into a recoverable error; it
// halts. Mirrors the teacher's own panic(fmt.Sprintf(...)) idiom used in
// handler.go and channel construction for programming errors.
func Panicf(format string, args ...any) {
	panic(fmt.Sprintf("spm: "+format, args...))
}
