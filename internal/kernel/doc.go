// Package kernel is the application kernel of one worker.
//
// An Application owns the eight places (schemas, static, resources, api,
// lib, db, domain, scheduler), the sandbox runtime and the interface
// registry. Init brings places up in dependency order with every branch
// attempted and reported; Route applies hot-reload events to the owning
// place; Shutdown stops modules in reverse load order and closes the
// listener, watcher and logger.
//
// Typical use:
//
//	app, _ := kernel.New(kernel.Options{Config: cfg, Logger: log, Watcher: w})
//	report := app.Init(ctx, cfg.Application.Kind)
//	for _, o := range report.Failed() {
//		log.Warn("branch failed", zap.String("branch", o.Branch), zap.Error(o.Err))
//	}
//	defer app.Shutdown(context.Background())
package kernel
