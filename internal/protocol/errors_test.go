package protocol

import (
	"errors"
	"testing"

	"minepilot.ai/internal/fault"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrUnknownOp,
		ErrInternal,
		fault.CodeNotConnected,
		fault.CodeTargetUnavailable,
		fault.CodeNoRecipe,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestResultErrorKeepsFaultCodes(t *testing.T) {
	err := ResultError(ResultMsg{ReqID: "1", Code: fault.CodeTargetUnavailable, Message: "entity 4 is gone"})
	if !errors.Is(err, fault.ErrTargetUnavailable) {
		t.Fatalf("expected target unavailable, got %v", err)
	}
	if err.Error() != "entity 4 is gone" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	err = ResultError(ResultMsg{ReqID: "2", Code: ErrUnknownOp, Message: "fly"})
	if fault.CodeOf(err) != ErrUnknownOp {
		t.Fatalf("expected %s, got %q", ErrUnknownOp, fault.CodeOf(err))
	}
	if err.Error() != "gateway: fly" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
