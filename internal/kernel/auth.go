package kernel

import (
	"go.uber.org/zap"
)

const (
	authNamespace = "auth"
	authProvider  = "provider"
)

// bootstrapAuth installs the auth provider once. A provider already
// published under api.auth.provider is adopted; otherwise one is built from
// session configuration and published back. Without an auth namespace the
// deployment has no authentication.
func (a *Application) bootstrapAuth() {
	if _, ok := a.registry.Namespace(authNamespace); !ok {
		a.log.Debug("No auth interface; authentication disabled")
		return
	}

	if p, ok := a.registry.Published(authNamespace, authProvider); ok {
		a.mu.Lock()
		a.auth = p
		a.mu.Unlock()
		a.log.Info("Adopted published auth provider")
		return
	}

	p := a.newAuth(a.config.Session)
	a.mu.Lock()
	a.auth = p
	a.mu.Unlock()
	a.registry.Publish(authNamespace, authProvider, p)
	a.log.Info("Auth provider installed", zap.Duration("session_ttl", a.config.Session.TTL))
}
