package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// Domain error kinds. Handlers map these to HTTP statuses; callers are
// expected to treat ErrorGameNotActive and idempotent re-submissions as
// success-equivalent.
var (
	ErrorGameNotFound    = errors.New("game not found")
	ErrorGameNotActive   = errors.New("game is not active")
	ErrorInvalidQuantity = errors.New("order quantity must be a non-negative number")
	ErrorRoleNotFound    = errors.New("role not found in this game")
)

// SettlementError wraps any failure raised while a weekly settlement was in
// flight. The settlement flag is always released before this is returned, so
// the caller may simply retry.
type SettlementError struct {
	GameId string
	Cause  error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed for game %s: %v", e.GameId, e.Cause)
}

func (e *SettlementError) Unwrap() error { return e.Cause }

func NewSettlementError(gameId string, cause error) error {
	if cause == nil {
		return nil
	}
	return &SettlementError{GameId: gameId, Cause: cause}
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
