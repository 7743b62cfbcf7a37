// Package bootstrap loads the user payload delivered over the network and
// persisted on the device (internal/coreactions.FirmwareUpdate writes it to
// user/app.so) into the already-running runtime process. The original
// firmware re-executed user/app.py, interpreted fresh at every boot; Go has
// no runtime interpreter, so the idiomatic equivalent is plugin.Open, which
// loads a .so built with `go build -buildmode=plugin` and looks up a single
// exported symbol.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"

	"github.com/les2feup/citylink/internal/connector"
)

// SetupFunc is the symbol name every user plugin must export: a function
// taking the runtime handle and returning an error if setup failed.
const SetupFunc = "Setup"

// Load attempts to load and run the user plugin at <vfsRoot>/user/app.so.
// If the file is absent — first boot, or a device that never received a
// firmware_update — Load returns (false, nil): the runtime starts in
// registration-only mode, with no model affordances beyond the built-in
// core action set.
func Load(vfsRoot string, rt *connector.Runtime) (ran bool, err error) {
	path := filepath.Join(vfsRoot, "user", "app.so")

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		slog.Info("bootstrap: no user plugin present, starting registration-only", "path", path)
		return false, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return false, fmt.Errorf("bootstrap: open plugin %s: %w", path, err)
	}

	sym, err := p.Lookup(SetupFunc)
	if err != nil {
		return false, fmt.Errorf("bootstrap: plugin %s has no %s symbol: %w", path, SetupFunc, err)
	}

	setup, ok := sym.(func(*connector.Runtime) error)
	if !ok {
		return false, fmt.Errorf("bootstrap: plugin %s's %s has the wrong signature", path, SetupFunc)
	}

	if err := setup(rt); err != nil {
		return false, fmt.Errorf("bootstrap: user Setup failed: %w", err)
	}

	slog.Info("bootstrap: user plugin loaded", "path", path)
	return true, nil
}
