package geyser

import (
	"fmt"
	"plugin"
)

// CreatePluginSymbol is the function a plugin shared object must export.
const CreatePluginSymbol = "CreatePlugin"

// Load opens a plugin built with -buildmode=plugin and calls its
// CreatePlugin entry point. Ownership of the returned Plugin passes to the
// caller; the shared object itself can never be unloaded.
func Load(path string) (Plugin, error) {
	so, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}

	sym, err := so.Lookup(CreatePluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("lookup %s in %s: %w", CreatePluginSymbol, path, err)
	}

	create, ok := sym.(func() Plugin)
	if !ok {
		return nil, fmt.Errorf("%s in %s has type %T, want func() geyser.Plugin", CreatePluginSymbol, path, sym)
	}

	p := create()
	if p == nil {
		return nil, fmt.Errorf("%s in %s returned nil", CreatePluginSymbol, path)
	}
	return p, nil
}
