package kernel

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/sandbox"
)

// binder is implemented by places offering a read-only handle to hosted code
type binder interface {
	Binding() map[string]interface{}
}

func (a *Application) binding(name place.Name) interface{} {
	if b, ok := a.places[name].(binder); ok {
		return b.Binding()
	}
	return nil
}

// buildSandbox assembles a fresh binding set and installs it, replacing the
// previous one. The application descriptor carries handles and introspection
// only; no loader is reachable from hosted code.
func (a *Application) buildSandbox() *sandbox.Sandbox {
	sb := &sandbox.Sandbox{
		Application: sandbox.Application{
			Worker:     sandbox.Worker{ID: a.worker},
			Server:     a.server,
			Resources:  a.binding(place.Resources),
			Schemas:    a.binding(place.Schemas),
			Scheduler:  a.binding(place.Scheduler),
			Introspect: a.registry.Introspect,
		},
		Config: a.config,
		API:    a.registry.Tree(),
		Lib:    place.TreeOf(a.places[place.Lib]),
		DB:     place.TreeOf(a.places[place.DB]),
		Domain: place.TreeOf(a.places[place.Domain]),
	}

	if err := a.runtime.Bind(sb); err != nil {
		a.log.Error("Failed to bind sandbox", zap.Error(err))
	}

	a.mu.Lock()
	a.sandbox = sb
	a.mu.Unlock()
	return sb
}
