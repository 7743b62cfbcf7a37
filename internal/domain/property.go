package domain

// PublishOptions controls how a single publish is performed. Zero value
// means QoS 0, not retained — the spec's default for event publishes.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// QoS1Retained is the spec's default for registration and property publishes.
func QoS1Retained() PublishOptions { return PublishOptions{QoS: 1, Retain: true} }

// Property describes a single named affordance value as seen from outside
// the affordance store — used for store snapshots, the debug surface, and
// the sqlite retained-state mirror.
type Property struct {
	Name              string
	Value             any
	UsesDefaultSetter bool
}

// SetOptions controls a single Set call beyond the value itself.
type SetOptions struct {
	PublishOptions
	UseDictDiff bool // default true: publish a structural diff for nested maps
}

// DefaultSetOptions matches the spec's property-set defaults: QoS 1,
// retained, diffed when the stored value is a nested map.
func DefaultSetOptions() SetOptions {
	return SetOptions{PublishOptions: QoS1Retained(), UseDictDiff: true}
}
