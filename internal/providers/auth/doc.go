// Package auth provides the default authentication provider installed by
// the kernel when the api place publishes an auth namespace without one.
// Accounts and sessions are held in memory; passwords are bcrypt hashed and
// sessions expire after the configured TTL.
package auth
