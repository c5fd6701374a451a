// Package domain holds the types and sentinel errors shared across the
// gateway's subscription, bus, heartbeat, and WebSocket packages.
package domain

import "errors"

var (
	ErrUpstreamSubscribeFailed = errors.New("upstream subscribe failed")
	ErrUnknownAction           = errors.New("unknown action")
	ErrInvalidSubject          = errors.New("invalid subject")
	ErrInvalidSubjects         = errors.New("invalid subjects")
	ErrInvalidPayload          = errors.New("invalid payload")
	ErrInvalidJSON             = errors.New("invalid json")
)

// CodeFor maps a sentinel validation error to the wire error code sent back
// to the WebSocket client in an ErrorFrame. Errors wrapped with additional
// context (e.g. bus.Manager.Start's upstream failure) still match via
// errors.Is.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return CodeInvalidJSON
	case errors.Is(err, ErrInvalidPayload):
		return CodeInvalidPayload
	case errors.Is(err, ErrInvalidSubject):
		return CodeInvalidSubject
	case errors.Is(err, ErrInvalidSubjects):
		return CodeInvalidSubjects
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, ErrUpstreamSubscribeFailed):
		return CodeNATSSubscribeFailed
	default:
		return CodeInvalidPayload
	}
}
