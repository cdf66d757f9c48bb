package kernel

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/watcher"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
)

// startReload launches the dispatcher once; it consumes watcher events
// until the watcher closes.
func (a *Application) startReload() {
	a.reloadOnce.Do(func() {
		if a.watcher == nil {
			close(a.reloadDone)
			return
		}
		go func() {
			defer close(a.reloadDone)
			events := a.watcher.Events()
			for {
				select {
				case <-a.ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					a.Route(a.ctx, ev)
				}
			}
		}()
	})
}

// stopReload closes the watcher and waits for the dispatcher to drain
func (a *Application) stopReload() {
	started := true
	a.reloadOnce.Do(func() {
		started = false
		close(a.reloadDone)
	})
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Error("Failed to close watcher", zap.Error(err))
		}
	}
	a.cancel()
	if started {
		<-a.reloadDone
	}
}

// Route applies one filesystem event to the place owning its path. Paths
// outside any place are ignored; a path that vanished before it could be
// examined is dropped. Directories reload through Load, files through
// Change; deletions go to Delete.
func (a *Application) Route(ctx context.Context, ev watcher.Event) {
	if !filepath.IsAbs(ev.Path) {
		abs, err := filepath.Abs(ev.Path)
		if err != nil {
			return
		}
		ev.Path = abs
	}
	name, ok := paths.PlaceOf(a.root, ev.Path)
	if !ok {
		return
	}
	p, ok := a.places.Lookup(name)
	if !ok {
		return
	}
	if p.Name() == place.Scheduler && a.Kind() != KindScheduler {
		return
	}

	var err error
	switch ev.Op {
	case watcher.Change:
		info, statErr := os.Stat(ev.Path)
		if statErr != nil {
			return
		}
		if info.IsDir() {
			err = p.Load(ctx, ev.Path)
			break
		}
		c, ok := p.(place.Changer)
		if !ok {
			return
		}
		a.logReload("File changed", name, ev.Path)
		err = c.Change(ctx, ev.Path)
	case watcher.Delete:
		d, ok := p.(place.Deleter)
		if !ok {
			return
		}
		a.logReload("File deleted", name, ev.Path)
		err = d.Delete(ctx, ev.Path)
	default:
		return
	}

	a.metrics.RecordReload(name, ev.Op.String())
	if err != nil {
		a.log.Error("Reload failed",
			zap.String("place", name),
			zap.String("path", ev.Path),
			zap.Error(err),
		)
	}
}

// logReload logs only on worker 1 so a multi-worker deployment reports each
// change once.
func (a *Application) logReload(msg, name, path string) {
	if a.worker != 1 {
		return
	}
	rel, ok := paths.Relative(a.root, path)
	if !ok {
		rel = path
	}
	a.log.Info(msg, zap.String("place", name), zap.String("path", rel))
}
