package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := ErrSlotNotFound.WithContext(map[string]interface{}{"slot_id": "slot-x"})

	if !stderrors.Is(err, ErrSlotNotFound) {
		t.Fatal("expected copy with context to match predefined error")
	}
	if stderrors.Is(err, ErrSessionNotFound) {
		t.Fatal("expected different codes not to match")
	}
}

func TestAppError_UnwrapAndGet(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := fmt.Errorf("save session: %w", ErrStorage.WithError(cause))

	appErr, ok := GetAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError in chain")
	}
	if appErr.Code != "STORAGE" {
		t.Errorf("expected STORAGE code, got %s", appErr.Code)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if got := appErr.Error(); got != "STORAGE: storage error: disk full" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestIsAppError(t *testing.T) {
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("plain error must not be an AppError")
	}
	if !IsAppError(Wrap(fmt.Errorf("x"), "CODE", "msg")) {
		t.Error("wrapped error must be an AppError")
	}
}
