package domain

import "context"

// Param is a single positional value extracted from a resolved action
// template, in left-to-right order of the template's variable segments.
type Param struct {
	Name  string
	Value string
}

// Runtime is the surface an action handler is given to act on the device:
// the affordance store, the identity, and a reset request — kept as an
// interface here so the router and core-action packages can depend on it
// without importing the connector package that implements it.
type Runtime interface {
	Identity() Identity

	GetProperty(name string) (any, bool)
	SetProperty(name string, value any, opts SetOptions) error

	// DefaultSetterAllowed reports whether name may be changed through the
	// built-in set/{name} core action. Properties created with
	// usesDefaultSetter=false are excluded.
	DefaultSetterAllowed(name string) bool

	EmitEvent(name string, payload any, opts PublishOptions) error
	EmitCoreEvent(name string, payload any, opts PublishOptions) error

	// Decode unpacks an inbound payload with the runtime's configured wire
	// codec — handlers use this instead of assuming a concrete encoding.
	Decode(data []byte, v any) error

	RequestReset(reason string)
}

// Handler is the signature every registered action callback implements,
// whether it's a user-declared model action or a built-in core action.
// payload is the raw (already-deserialized-to-bytes-boundary) request body;
// decoding into a concrete shape is the handler's job.
type Handler func(ctx context.Context, rt Runtime, payload []byte, params []Param) error
