// Package files implements the static and resources places: an in-memory
// cache of every file under the place directory, keyed by URL path, with
// MIME type, entity tag and an optional pre-compressed copy.
package files
