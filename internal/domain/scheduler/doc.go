// Package scheduler implements the scheduler place.
//
// A task names a sandbox reference to call periodically:
//
//	{ "name": "cleanup", "every": "1h 30m", "run": "domain.jobs.cleanup", "args": {} }
//
// every is a space-separated list of Go durations that are summed. A run
// that takes longer than the period delays the next tick rather than
// overlapping. Task files (*.json, one task or an array) follow the hot
// reload path; hosted code uses application.scheduler.
package scheduler
