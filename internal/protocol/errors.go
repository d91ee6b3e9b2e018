package protocol

import "minepilot.ai/internal/fault"

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownOp       = "E_UNKNOWN_OP"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownOp:       {},
	ErrInternal:        {},
}

// IsKnownCode accepts the gateway's own codes and every fault code, which
// the gateway reuses for game-level failures.
func IsKnownCode(code string) bool {
	if fault.IsKnownCode(code) {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ResultError converts a failed RESULT into an error. Game-level codes come
// back as fault errors so callers can match them.
func ResultError(r ResultMsg) error {
	msg := r.Message
	if msg == "" {
		msg = r.Code
	}
	if r.Code != "" && fault.IsKnownCode(r.Code) {
		return fault.New(r.Code, "%s", msg)
	}
	if r.Code == "" {
		return fault.New(ErrInternal, "gateway: %s", msg)
	}
	return fault.New(r.Code, "gateway: %s", msg)
}
