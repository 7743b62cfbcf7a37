package domain

import "strings"

// ValidateEventName checks a user-declared event name against the
// reserved-segment and wildcard rules: an event name traverses topic
// segments (split on '/') and none of them may be a reserved namespace, the
// device's own model name, or an MQTT wildcard token ('+', '#').
func ValidateEventName(id Identity, name string) error {
	if name == "" {
		return ErrReservedEventName
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "+" || seg == "#" {
			return ErrReservedEventName
		}
		if id.IsReservedSegment(seg) {
			return ErrReservedEventName
		}
	}
	return nil
}
