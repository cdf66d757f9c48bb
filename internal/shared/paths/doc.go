// Package paths maps filesystem paths under an application root onto places.
//
// An application root contains one directory per place:
//
//	application/
//	  schemas/   static/   resources/   api/
//	  lib/       db/       domain/      scheduler/
//
// Every hot-reload event and every loader works with absolute paths; this
// package turns them into place names and module keys.
package paths
