package config

import (
	"fmt"

	"github.com/les2feup/citylink/internal/domain"
)

// Validate checks the required leaves of cfg, the Go reshaping of the
// original firmware's recursive validate_configuration(template, provided,
// path): there the template was a nested dict of expected types walked
// alongside the provided config; here the struct tags already fix the
// shape, so validation narrows to the handful of fields with no safe
// default — values only a deployer can supply correctly.
func Validate(cfg Config) error {
	if cfg.Identity.Model == "" {
		return fmt.Errorf("%w: identity.model", domain.ErrConfigMissingKey)
	}
	for _, reserved := range domain.ReservedSegments {
		if cfg.Identity.Model == reserved {
			return fmt.Errorf("config: identity.model %q collides with a reserved namespace segment", cfg.Identity.Model)
		}
	}
	if cfg.Broker.URL == "" {
		return fmt.Errorf("%w: broker.url", domain.ErrConfigMissingKey)
	}
	switch cfg.Serializer.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: serializer.codec must be \"json\" or \"msgpack\", got %q", domain.ErrConfigBadType, cfg.Serializer.Codec)
	}
	if cfg.VFS.Root == "" {
		return fmt.Errorf("%w: vfs.root", domain.ErrConfigMissingKey)
	}
	if cfg.Broker.RetryMax < 0 {
		return fmt.Errorf("%w: broker.retry_max must be >= 0", domain.ErrConfigBadType)
	}
	return nil
}
