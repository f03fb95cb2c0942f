package application

import "errors"

var (
	// ErrMissingRepoManager is returned when building a service without storage.
	ErrMissingRepoManager = errors.New("missing repository manager")
	// ErrMissingCustodian ...
	ErrMissingCustodian = errors.New("missing custodian")
	// ErrInvalidOwner is returned if the configured owner is the zero address.
	ErrInvalidOwner = errors.New("owner must be a non-zero address")
	// ErrInvalidLedgerAddress is returned if the custody account of the ledger
	// is the zero address or collides with the owner.
	ErrInvalidLedgerAddress = errors.New(
		"ledger address must be non-zero and different from owner",
	)
	// ErrUnknownDBType ...
	ErrUnknownDBType = errors.New("unknown db type")
	// ErrInvalidWebhookEvent is returned when subscribing for a topic that is
	// not an event type nor the catch-all topic.
	ErrInvalidWebhookEvent = errors.New("invalid webhook event type")
	// ErrPubSubNotInitialized is returned when attempting to manage webhooks
	// without having configured the pubsub service.
	ErrPubSubNotInitialized = errors.New("webhook manager is not initialized")
)
