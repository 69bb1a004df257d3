package notify

import "errors"

// Sentinel errors for notification delivery.
var (
	ErrUnknownProvider = errors.New("unknown email provider")
	ErrNoRecipient     = errors.New("recipient has no email address")
	ErrRender          = errors.New("render notification")
	ErrRejected        = errors.New("mail provider rejected message")
)
