// Package http exposes the interface registry over HTTP: RPC calls,
// introspection, static files and health.
package http
