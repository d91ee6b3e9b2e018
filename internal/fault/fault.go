// Package fault holds the named failure reasons every operation can return.
// Adapters render a fault as its message and surface the code alongside it.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeNotConnected      = "E_NOT_CONNECTED"
	CodeTargetUnavailable = "E_TARGET_UNAVAILABLE"
	CodeUnknownBehavior   = "E_UNKNOWN_BEHAVIOR"
	CodeNoRecipe          = "E_NO_RECIPE"
	CodeNoStationNearby   = "E_NO_STATION_NEARBY"
	// Navigator-level only; action operations convert it into best-effort continuation.
	CodePathTimeout = "E_PATH_TIMEOUT"
	// Adapter argument validation.
	CodeBadRequest = "E_BAD_REQUEST"
)

var knownCodes = map[string]struct{}{
	CodeNotConnected:      {},
	CodeTargetUnavailable: {},
	CodeUnknownBehavior:   {},
	CodeNoRecipe:          {},
	CodeNoStationNearby:   {},
	CodePathTimeout:       {},
	CodeBadRequest:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a failure with a stable code. Two errors match under errors.Is
// when their codes are equal, so callers can compare against the sentinels.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotConnected      = &Error{Code: CodeNotConnected, Message: "not connected to a world session"}
	ErrTargetUnavailable = &Error{Code: CodeTargetUnavailable, Message: "target unavailable"}
	ErrUnknownBehavior   = &Error{Code: CodeUnknownBehavior, Message: "unknown behavior"}
	ErrNoRecipe          = &Error{Code: CodeNoRecipe, Message: "no recipe"}
	ErrNoStationNearby   = &Error{Code: CodeNoStationNearby, Message: "no crafting station nearby"}
	ErrBadRequest        = &Error{Code: CodeBadRequest, Message: "bad request"}
)

func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func TargetUnavailable(format string, args ...any) *Error {
	return New(CodeTargetUnavailable, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return New(CodeBadRequest, format, args...)
}

// UnknownBehavior names the valid behaviors so the caller can correct itself.
func UnknownBehavior(name string, valid []string) *Error {
	return New(CodeUnknownBehavior, "unknown behavior %q (valid: %s)", name, strings.Join(valid, ", "))
}

// CodeOf returns the code of the first fault in err's chain, or "" if none.
func CodeOf(err error) string {
	var f *Error
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}
