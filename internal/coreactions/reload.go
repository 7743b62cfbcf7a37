package coreactions

import (
	"context"

	"github.com/les2feup/citylink/internal/domain"
)

// Reload disconnects and requests a reset, returning the device to
// bootstrap — the built-in equivalent of the original firmware's
// machine.soft_reset(), exposed as an explicit action instead of only
// being a side effect of firmware_update.
func (r *Registry) Reload(ctx context.Context, rt domain.Runtime, _ []byte, _ []domain.Param) error {
	rt.RequestReset("reload")
	return nil
}
