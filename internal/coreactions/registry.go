package coreactions

import "github.com/les2feup/citylink/internal/router"

// Registry holds the built-in core actions and the filesystem root they
// operate under.
type Registry struct {
	vfsRoot string
	// excludedProps lists property names the default set/{name} core action
	// refuses to change, even though SetProperty would otherwise accept
	// them — e.g. properties a model wants computed internally only.
	excludedProps map[string]struct{}
}

// New builds a Registry rooted at vfsRoot (the device's writable
// filesystem area) with the given set of properties excluded from the
// default setter.
func New(vfsRoot string, excludedProps []string) *Registry {
	excluded := make(map[string]struct{}, len(excludedProps))
	for _, name := range excludedProps {
		excluded[name] = struct{}{}
	}
	return &Registry{vfsRoot: vfsRoot, excludedProps: excluded}
}

// Register binds every built-in core action onto r's dedicated router —
// the connector resolves core-action topics against this router, kept
// entirely separate from the affordance store's model-action router.
func (r *Registry) Register(cr *router.Router) error {
	if err := cr.Register("firmware_update", r.FirmwareUpdate); err != nil {
		return err
	}
	if err := cr.Register("vfs/list", r.VFSList); err != nil {
		return err
	}
	if err := cr.Register("vfs/read", r.VFSRead); err != nil {
		return err
	}
	if err := cr.Register("vfs/write", r.VFSWrite); err != nil {
		return err
	}
	if err := cr.Register("vfs/delete", r.VFSDelete); err != nil {
		return err
	}
	if err := cr.Register("set/{name}", r.SetProp); err != nil {
		return err
	}
	if err := cr.Register("reload", r.Reload); err != nil {
		return err
	}
	return nil
}
