// Package domain holds the runtime's core value types: the immutable device
// identity, the affordance model (properties, events, actions), and the
// sentinel errors shared by every component.
package domain

import "fmt"

// RuntimeName is the reserved namespace segment the kernel publishes its own
// core actions and events under. It never changes at runtime.
const RuntimeName = "citylink"

// ReservedSegments are path segments user affordances may never use, to
// avoid colliding with the runtime's own namespaces.
var ReservedSegments = [...]string{"vfs", "ssa", "events", "actions", "properties", RuntimeName}

// Version carries the declared model and instance version strings.
type Version struct {
	Model    string
	Instance string
}

// Identity is the immutable (model, instance-uuid, version) triple fixed at
// boot from configuration. It determines every topic prefix the device
// publishes to or subscribes on.
type Identity struct {
	Model    string
	UUID     string
	ClientID string
	Version  Version
}

// BaseTopic returns the device's topic prefix, "<model>/<uuid>".
func (id Identity) BaseTopic() string {
	return fmt.Sprintf("%s/%s", id.Model, id.UUID)
}

// EventTopic returns the publish topic for a model-namespaced event.
func (id Identity) EventTopic(name string) string {
	return fmt.Sprintf("%s/events/%s/%s", id.BaseTopic(), id.Model, name)
}

// CoreEventTopic returns the publish topic for a runtime-namespaced event,
// e.g. the VFS report event.
func (id Identity) CoreEventTopic(name string) string {
	return fmt.Sprintf("%s/events/%s/%s", id.BaseTopic(), RuntimeName, name)
}

// PropertyTopic returns the publish topic for a model-namespaced property.
func (id Identity) PropertyTopic(name string) string {
	return fmt.Sprintf("%s/properties/%s/%s", id.BaseTopic(), id.Model, name)
}

// ModelActionTopic returns the subscription/dispatch prefix for user actions.
func (id Identity) ModelActionTopic() string {
	return fmt.Sprintf("%s/actions/%s", id.BaseTopic(), id.Model)
}

// CoreActionTopic returns the subscription/dispatch prefix for core actions.
func (id Identity) CoreActionTopic() string {
	return fmt.Sprintf("%s/actions/%s", id.BaseTopic(), RuntimeName)
}

// RegistrationTopic returns the retained registration publish topic.
func (id Identity) RegistrationTopic() string {
	return fmt.Sprintf("ssa/registration/%s", RuntimeName)
}

// LastWillTopic returns the topic the transport's last-will message is
// published to on ungraceful disconnect.
func (id Identity) LastWillTopic() string {
	return fmt.Sprintf("%s/last_will", id.BaseTopic())
}

// IsReservedSegment reports whether s collides with a runtime-reserved
// namespace segment or this identity's own model name.
func (id Identity) IsReservedSegment(s string) bool {
	if s == id.Model {
		return true
	}
	for _, r := range ReservedSegments {
		if s == r {
			return true
		}
	}
	return false
}
