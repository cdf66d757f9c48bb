// Package watcher turns fsnotify notifications under the application root
// into a channel of debounced change and delete events.
//
// Create and write become Change; remove and rename become Delete. Repeated
// activity on one path within the timeout collapses into a single event
// carrying the latest operation. Hidden directories are not watched.
package watcher
