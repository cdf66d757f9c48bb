// Package config loads runtime configuration from environment variables.
//
// Configuration Sources:
//   - Environment variables (envconfig tags)
//   - Defaults from struct tags, mirrored by Default()
//
// Sections:
//   - Server: listener host, port and protocol
//   - Application: application root, deployment kind, worker id
//   - Watch: hot reload switch and debounce timeout
//   - Sandbox: per-call timeout and call stack bound for hosted code
//   - Session: settings for the default authentication provider
//   - Static: compression, ignore globs and size bound for file places
//   - Logging, RateLimit
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
