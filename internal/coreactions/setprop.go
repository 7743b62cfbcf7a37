package coreactions

import (
	"context"
	"fmt"

	"github.com/les2feup/citylink/internal/domain"
)

// SetProp is the default property setter every device exposes at
// "set/{name}": it decodes the request body as the new value and forwards
// it to the store. A property is excluded either at creation time
// (usesDefaultSetter=false) or by the deployment's own exclusion list —
// the action itself is always registered.
func (r *Registry) SetProp(ctx context.Context, rt domain.Runtime, payload []byte, params []domain.Param) error {
	name, err := r.nameParam(params)
	if err != nil {
		return err
	}

	if _, excluded := r.excludedProps[name]; excluded {
		return fmt.Errorf("%w: %q", domain.ErrPropertyNotSettable, name)
	}
	if !rt.DefaultSetterAllowed(name) {
		return fmt.Errorf("%w: %q", domain.ErrPropertyNotSettable, name)
	}

	var value any
	if err := rt.Decode(payload, &value); err != nil {
		return fmt.Errorf("coreactions: set_prop: decode value for %q: %w", name, err)
	}

	return rt.SetProperty(name, value, domain.DefaultSetOptions())
}

func (r *Registry) nameParam(params []domain.Param) (string, error) {
	for _, p := range params {
		if p.Name == "name" {
			return p.Value, nil
		}
	}
	return "", fmt.Errorf("coreactions: missing name parameter")
}
