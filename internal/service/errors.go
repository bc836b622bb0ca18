package service

import (
	"errors"
	"fmt"
)

// Validation failures are rejected before anything is persisted.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidRecipient = fmt.Errorf("%w: recipient is not a reachable participant", ErrValidation)
)

// Authorization failures of the edit/delete gate.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrNotMessageOwner    = fmt.Errorf("%w: only the message sender can perform this action", ErrForbidden)
	ErrEditWindowClosed   = fmt.Errorf("%w: the edit window for this message has closed", ErrForbidden)
	ErrAssistantImmutable = fmt.Errorf("%w: assistant messages cannot be changed", ErrForbidden)
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrSendFailed wraps store failures during a send.
	ErrSendFailed = errors.New("message could not be sent")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
