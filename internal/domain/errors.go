package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Config errors
	ErrConfigMissingKey = errors.New("config: missing required key")
	ErrConfigBadType    = errors.New("config: leaf has wrong type")

	// Network / broker errors
	ErrNetworkUnreachable = errors.New("network: could not attach")
	ErrBrokerUnreachable  = errors.New("broker: could not attach")
	ErrRetriesExhausted   = errors.New("retries exhausted")

	// Router errors
	ErrInvalidTemplate  = errors.New("router: first segment of a template cannot be a variable")
	ErrDuplicateHandler = errors.New("router: a handler is already registered for this template")

	// Affordance store errors
	ErrDuplicateProperty = errors.New("affordance: property already exists")
	ErrUnknownProperty   = errors.New("affordance: property does not exist")
	ErrTypeMismatch      = errors.New("affordance: value type does not match the property's creation type")
	ErrReservedEventName = errors.New("affordance: event name traverses a reserved segment or wildcard token")
	ErrPublishFailure    = errors.New("affordance: transport publish failed")

	// Scheduler errors
	ErrTaskFailure = errors.New("scheduler: task body returned an error")

	// Core action errors
	ErrIntegrityFailure    = errors.New("core action: integrity check failed")
	ErrUnsupportedDigest   = errors.New("core action: unsupported digest algorithm")
	ErrPropertyNotSettable = errors.New("core action: property excluded from the default setter")
)
