// Package module implements the lib, db and domain places.
//
// Every .js file under a place directory is a module expression evaluated
// in the sandbox. A module's key is its path relative to the place without
// the extension, so lib/utils/math.js is reachable as lib.utils.math.
// Modules exposing start are queued through the lifecycle Deferrer; modules
// exposing stop are stopped when replaced, deleted or shut down.
package module
