package pubsub

import "errors"

var (
	// ErrSubscriptionNotFound is returned when removing an unknown webhook.
	ErrSubscriptionNotFound = errors.New("webhook not found")
	// ErrUnknownEventType is returned when subscribing for an event type the
	// ledger never emits.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidEndpoint is returned for webhook endpoints that are not
	// absolute http(s) URLs.
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint, must be an absolute http(s) URL")
)
