// Package sandbox hosts application modules inside a goja JavaScript VM.
//
// A Runtime owns one VM per worker and serializes every entry into it.
// Hosted code never sees require, process, module or exports; timers are
// inert and every evaluation or call is interrupted after Config.Timeout.
//
// Bind installs a Sandbox binding set:
//
//	application  worker, server, resources, schemas, scheduler, introspect
//	config       the active configuration
//	api          interface namespaces published by the api place
//	lib, db, domain
//	             live views of the module places
//	console      routed to the structured logger
//
// Module sources are single expressions evaluated in strict mode:
//
//	({
//	  start() { console.log('ready') },
//	  add: (a, b) => a + b,
//	})
//
// Thrown objects with a string code property surface as *types.Error.
package sandbox
