package kernel

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
)

// Outcome is the result of one startup step
type Outcome struct {
	Branch   string
	Err      error
	Duration time.Duration
}

// Report collects every startup outcome. Init never fails; callers inspect
// the report instead.
type Report struct {
	Outcomes []Outcome
	Duration time.Duration
}

// Err returns the error recorded for a branch
func (r Report) Err(branch string) error {
	for _, o := range r.Outcomes {
		if o.Branch == branch {
			return o.Err
		}
	}
	return nil
}

// Ran reports whether a branch was attempted
func (r Report) Ran(branch string) bool {
	for _, o := range r.Outcomes {
		if o.Branch == branch {
			return true
		}
	}
	return false
}

// Failed returns the outcomes that carry an error
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// fanout lists the concurrent startup branches; places inside one branch
// load sequentially.
var fanout = [][]place.Name{
	{place.Schemas},
	{place.Static},
	{place.Resources},
	{place.Lib, place.DB, place.Domain},
}

// stopOrder is the inverse of the module load chain
var stopOrder = []place.Name{place.Domain, place.DB, place.Lib}

// Init brings the application up for the given deployment kind:
//
//  1. record kind and start the reload dispatcher
//  2. build the sandbox
//  3. load schemas, static, resources and lib -> db -> domain concurrently
//  4. run queued start hooks
//  5. load api
//  6. load scheduler when kind is "scheduler"
//  7. bootstrap auth
//  8. clear the start queue and become Ready
//
// Failures are isolated per step, logged and returned in the Report.
func (a *Application) Init(ctx context.Context, kind string) Report {
	start := time.Now()
	a.kind.Store(kind)
	a.state.Store(int32(Initializing))
	a.startReload()

	a.buildSandbox()

	report := Report{}
	report.Outcomes = append(report.Outcomes, a.loadPlaces(ctx)...)

	a.runStarts(ctx)

	report.Outcomes = append(report.Outcomes, a.load(ctx, place.API))
	if kind == KindScheduler {
		report.Outcomes = append(report.Outcomes, a.load(ctx, place.Scheduler))
	}

	a.bootstrapAuth()

	// hooks deferred after runStarts, by api modules or early reloads, run here
	a.mu.Lock()
	late := a.starts
	a.starts = nil
	a.state.Store(int32(Ready))
	a.mu.Unlock()
	for _, h := range late {
		a.runStart(ctx, h)
	}

	report.Duration = time.Since(start)
	a.log.Info("Application initialized",
		zap.String("kind", kind),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// loadPlaces runs the startup fan-out and waits for every branch. Branch
// goroutines never return errors, so no branch cancels another.
func (a *Application) loadPlaces(ctx context.Context) []Outcome {
	results := make([][]Outcome, len(fanout))
	var g errgroup.Group
	for i, chain := range fanout {
		i, chain := i, chain
		g.Go(func() error {
			for _, name := range chain {
				results[i] = append(results[i], a.load(ctx, name))
			}
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []Outcome
	for _, r := range results {
		outcomes = append(outcomes, r...)
	}
	return outcomes
}

// load loads a whole place, converting panics into errors
func (a *Application) load(ctx context.Context, name place.Name) (out Outcome) {
	out.Branch = string(name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%s: panic: %v", name, r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			a.log.Error("Place failed to load", zap.String("place", string(name)), zap.Error(out.Err))
		}
	}()

	p, ok := a.places[name]
	if !ok || p == nil {
		return out
	}
	out.Err = p.Load(ctx, "")
	return out
}

// Defer queues a start hook until the application is Ready; once Ready the
// hook runs immediately. Hook failures are logged, never returned.
func (a *Application) Defer(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	if a.State() != Ready {
		a.starts = append(a.starts, startHook{name: name, fn: fn})
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.runStart(a.ctx, startHook{name: name, fn: fn})
}

func (a *Application) runStarts(ctx context.Context) {
	a.mu.Lock()
	hooks := a.starts
	a.starts = nil
	a.mu.Unlock()

	for _, h := range hooks {
		a.runStart(ctx, h)
	}
}

func (a *Application) runStart(ctx context.Context, h startHook) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = h.fn(ctx)
	}()

	a.metrics.RecordStartHook(err)
	if err != nil {
		a.log.Error("Start hook failed",
			zap.String("module", h.name),
			zap.Error(err),
			zap.Stack("stack"),
		)
	}
}

// Shutdown stops the application once: scheduler timers, then domain, db
// and lib modules, then the listener and watcher, and the logger last.
// Every failure is logged and shutdown continues.
func (a *Application) Shutdown(ctx context.Context) {
	if !a.finalization.CompareAndSwap(false, true) {
		return
	}
	a.log.Info("Shutting down application")

	if c, ok := a.places[place.Scheduler].(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Error("Failed to stop scheduler", zap.Error(err))
		}
	}

	for _, name := range stopOrder {
		a.stopPlace(ctx, name)
	}

	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()
	if listener != nil {
		if err := listener.Close(); err != nil {
			a.log.Error("Failed to close listener", zap.Error(err))
		}
	}

	a.stopReload()
	if err := a.runtime.Close(); err != nil {
		a.log.Error("Failed to close sandbox runtime", zap.Error(err))
	}

	a.log.Info("Application stopped")
	_ = a.log.Close()
}

func (a *Application) stopPlace(ctx context.Context, name place.Name) {
	s, ok := a.places[name].(place.Stoppable)
	if !ok {
		return
	}
	for _, stopper := range s.Stoppers() {
		err := safeStop(ctx, stopper)
		a.metrics.RecordModuleStop(string(name), err)
		if err != nil {
			a.log.Error("Module stop failed",
				zap.String("place", string(name)),
				zap.String("module", stopper.Module),
				zap.Error(err),
			)
		}
	}
}

func safeStop(ctx context.Context, s place.Stopper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.Stop == nil {
		return nil
	}
	return s.Stop(ctx)
}
