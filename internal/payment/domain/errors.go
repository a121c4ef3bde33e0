package domain

import "errors"

var (
	// ErrSignatureMismatch means a redirect tag failed verification; the
	// request is rejected before any order mutation.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrProviderUnavailable covers network failures, timeouts, non-2xx
	// responses and malformed bodies from the payment provider.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrUnknownEventKind marks webhook event types outside the closed
	// union. The order is left untouched.
	ErrUnknownEventKind = errors.New("unknown webhook event kind")

	// ErrCorrelationNotFound means no local order maps to the external
	// order number, e.g. the event belongs to another installation
	// sharing the provider account.
	ErrCorrelationNotFound = errors.New("external payment correlation not found")
)
