//go:build linux && cgo

package rbh

import (
	"fmt"
	"plugin"
)

// FactorySymbol is the well-known symbol a backend plugin exports: a
// variable of type rbh.Factory.
const FactorySymbol = "BackendFactory"

// openPlugin loads the shared library serving scheme and resolves its
// factory symbol. The Go runtime never unloads plugins, which gives the
// required pin-for-process-lifetime semantics for free.
func openPlugin(scheme string) (Factory, error) {
	name := fmt.Sprintf("librbh-%s.so", scheme)

	p, err := plugin.Open(name)
	if err != nil {
		return nil, NewBackendUnavailableError(scheme, err.Error())
	}

	sym, err := p.Lookup(FactorySymbol)
	if err != nil {
		return nil, NewBackendUnavailableError(scheme, err.Error())
	}

	f, ok := sym.(*Factory)
	if !ok || *f == nil {
		return nil, NewBackendUnavailableError(scheme,
			fmt.Sprintf("%s is not a backend factory", FactorySymbol))
	}
	return *f, nil
}
