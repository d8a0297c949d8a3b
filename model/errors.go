package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification attached to every failed
// launch, kill, or reap call.
type ErrorKind string

const (
	KindUnknownImageType     ErrorKind = "unknown_image_type"
	KindAlreadyRunning       ErrorKind = "already_running"
	KindInsufficientCapacity ErrorKind = "insufficient_capacity"
	KindUnknownUser          ErrorKind = "unknown_user"
	KindNoHomeDirectory      ErrorKind = "no_home_directory"
	KindMissingCredential    ErrorKind = "missing_credential"
	KindCredentialMismatch   ErrorKind = "credential_mismatch"
	KindNoPortAvailable      ErrorKind = "no_port_available"
	KindRuntimeCreateFailed  ErrorKind = "runtime_create_failed"
	KindRuntimeKillFailed    ErrorKind = "runtime_kill_failed"
	KindUpstreamUnavailable  ErrorKind = "upstream_unavailable"
	KindInternal             ErrorKind = "internal"
)

type kinder interface {
	ErrorKind() ErrorKind
}

// KindOf walks the error chain for a classified error; unclassified errors
// report KindInternal.
func KindOf(err error) ErrorKind {
	var k kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

type UnknownImageTypeError struct {
	Type string
}

func (e *UnknownImageTypeError) Error() string {
	return fmt.Sprintf("image type %q is not defined", e.Type)
}

func (e *UnknownImageTypeError) ErrorKind() ErrorKind { return KindUnknownImageType }

type AlreadyRunningError struct {
	Type string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("an instance of image type %q is already running", e.Type)
}

func (e *AlreadyRunningError) ErrorKind() ErrorKind { return KindAlreadyRunning }

type InsufficientCapacityError struct {
	Requested int
	Available int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("only %d gpus available at this time, %d requested", e.Available, e.Requested)
}

func (e *InsufficientCapacityError) ErrorKind() ErrorKind { return KindInsufficientCapacity }

type UnknownUserError struct {
	Username string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %q does not exist on this system; contact administrators", e.Username)
}

func (e *UnknownUserError) ErrorKind() ErrorKind { return KindUnknownUser }

type NoHomeDirectoryError struct {
	Username string
}

func (e *NoHomeDirectoryError) Error() string {
	return fmt.Sprintf("user %q does not have a home directory; contact administrators", e.Username)
}

func (e *NoHomeDirectoryError) ErrorKind() ErrorKind { return KindNoHomeDirectory }

type MissingCredentialError struct {
	Type string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("image type %q runs a notebook service and requires a password", e.Type)
}

func (e *MissingCredentialError) ErrorKind() ErrorKind { return KindMissingCredential }

type CredentialMismatchError struct {
	ID string
}

func (e *CredentialMismatchError) Error() string {
	return fmt.Sprintf("incorrect password for session %s", e.ID)
}

func (e *CredentialMismatchError) ErrorKind() ErrorKind { return KindCredentialMismatch }

type NoPortAvailableError struct {
	RangeStart int
	RangeEnd   int
}

func (e *NoPortAvailableError) Error() string {
	return fmt.Sprintf("unable to allocate open port between %d and %d", e.RangeStart, e.RangeEnd)
}

func (e *NoPortAvailableError) ErrorKind() ErrorKind { return KindNoPortAvailable }

// RuntimeError wraps a failed create or kill call against the container
// runtime. The underlying cause is preserved for logs but the kind is what
// callers branch on.
type RuntimeError struct {
	Op   string // "create" or "kill"
	Kind ErrorKind
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s failed: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func (e *RuntimeError) ErrorKind() ErrorKind { return e.Kind }

// UpstreamError wraps an unreachable or failing collaborator (calendar,
// runtime listing). The reaper treats it as fatal for the current cycle.
type UpstreamError struct {
	Upstream string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) ErrorKind() ErrorKind { return KindUpstreamUnavailable }
