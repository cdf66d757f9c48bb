package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

// Runtime wraps one goja VM. Every entry point takes the runtime lock, so
// hosted code of one worker executes on a single logical thread.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	log    *logging.Logger
	mu     sync.Mutex

	sandbox *Sandbox
	views   map[*place.Tree]*goja.Object
}

// New creates a sandboxed runtime
func New(config Config, log *logging.Logger) *Runtime {
	if log == nil {
		log = logging.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	r := &Runtime{
		vm:     vm,
		config: config,
		log:    log,
		views:  make(map[*place.Tree]*goja.Object),
	}
	r.setupGlobals()
	return r
}

// Bind installs the binding set, replacing any previous one wholesale.
func (r *Runtime) Bind(sb *Sandbox) error {
	if sb == nil {
		return errors.New("sandbox: nil binding set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return ErrClosed
	}

	r.views = make(map[*place.Tree]*goja.Object)
	r.sandbox = sb

	app := r.vm.NewObject()
	set := func(key string, value interface{}) {
		_ = app.Set(key, value)
	}
	set("worker", sb.Application.Worker)
	set("server", sb.Application.Server)
	set("resources", sb.Application.Resources)
	set("schemas", sb.Application.Schemas)
	set("scheduler", sb.Application.Scheduler)
	set("introspect", r.introspect(sb.Application.Introspect))

	globals := map[string]interface{}{
		"application": app,
		"config":      sb.Config,
		"api":         r.view(sb.API),
		"lib":         r.view(sb.Lib),
		"db":          r.view(sb.DB),
		"domain":      r.view(sb.Domain),
	}
	for name, value := range globals {
		if err := r.vm.Set(name, value); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	return nil
}

// Eval evaluates a module expression and returns its value. The source is a
// single expression such as an object literal or a function.
func (r *Runtime) Eval(ctx context.Context, name, src string) (goja.Value, error) {
	code := strings.TrimSpace(src)
	code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	if code == "" {
		return nil, fmt.Errorf("%s: empty module", name)
	}
	wrapped := "(function () {\n'use strict';\nreturn (\n" + code + "\n);\n})()"

	prog, err := goja.Compile(name, wrapped, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return nil, ErrClosed
	}

	release := r.guard(ctx)
	val, err := r.vm.RunProgram(prog)
	release()
	if err != nil {
		return nil, r.failure(name, err)
	}
	return val, nil
}

// Call invokes fn with this bound to the given Go or goja value. Promises
// returned by async functions are settled before returning.
func (r *Runtime) Call(ctx context.Context, fn goja.Value, this interface{}, args ...interface{}) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return nil, ErrClosed
	}
	return r.call(ctx, "call", fn, this, args)
}

// CallPath resolves a dotted reference such as domain.jobs.cleanup and calls it.
func (r *Runtime) CallPath(ctx context.Context, path string, args ...interface{}) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return nil, ErrClosed
	}
	fn, ok := r.resolve(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return r.call(ctx, path, fn, nil, args)
}

// Resolve looks up a dotted reference against the installed globals
func (r *Runtime) Resolve(path string) (goja.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return nil, false
	}
	return r.resolve(path)
}

// Member reads a property of an object value; missing properties are nil.
func (r *Runtime) Member(v goja.Value, name string) goja.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := v.(*goja.Object)
	if !ok || r.vm == nil {
		return nil
	}
	prop := obj.Get(name)
	if prop == nil || goja.IsUndefined(prop) {
		return nil
	}
	return prop
}

// Keys returns own enumerable keys of an object value
func (r *Runtime) Keys(v goja.Value) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := v.(*goja.Object)
	if !ok || r.vm == nil {
		return nil
	}
	return obj.Keys()
}

// Source returns the string form of a value; for functions this is their source.
func (r *Runtime) Source(v goja.Value) string {
	if v == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return v.String()
}

// Export converts a goja value to Go
func (r *Runtime) Export(v goja.Value) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return exportValue(v)
}

// Callable reports whether v can be invoked
func Callable(v goja.Value) bool {
	if v == nil {
		return false
	}
	_, ok := goja.AssertFunction(v)
	return ok
}

// Close releases the VM
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	r.sandbox = nil
	r.views = nil
	return nil
}

func (r *Runtime) call(ctx context.Context, name string, fn goja.Value, this interface{}, args []interface{}) (interface{}, error) {
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("%s: not a function", name)
	}

	thisValue := goja.Undefined()
	if this != nil {
		thisValue = r.vm.ToValue(this)
	}
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = r.vm.ToValue(arg)
	}

	release := r.guard(ctx)
	val, err := callable(thisValue, values...)
	release()
	if err != nil {
		return nil, r.failure(name, err)
	}
	return r.settle(name, val)
}

// settle unwraps promises returned by async functions
func (r *Runtime) settle(name string, val goja.Value) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	p, ok := val.Export().(*goja.Promise)
	if !ok {
		return exportValue(val), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return exportValue(p.Result()), nil
	case goja.PromiseStateRejected:
		return nil, r.thrown(name, p.Result())
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrPending)
	}
}

// guard arms the interrupt for one entry into the VM. The returned release
// waits for the watchdog to exit before clearing a late interrupt.
func (r *Runtime) guard(ctx context.Context) func() {
	if ctx == nil {
		ctx = context.Background()
	}
	vm := r.vm
	timer := time.NewTimer(r.config.Timeout)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		timer.Stop()
		close(done)
		<-exited
		vm.ClearInterrupt()
	}
}

func (r *Runtime) resolve(path string) (goja.Value, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] == "" {
		return nil, false
	}
	val := r.vm.Get(segments[0])
	for _, seg := range segments[1:] {
		obj, ok := val.(*goja.Object)
		if !ok {
			return nil, false
		}
		val = obj.Get(seg)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, false
	}
	return val, true
}

// failure translates VM errors into Go errors
func (r *Runtime) failure(name string, err error) error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("%s: %w", name, cause)
		}
		return fmt.Errorf("%s: interrupted: %v", name, interrupted.Value())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return r.thrown(name, ex.Value())
	}
	return fmt.Errorf("%s: %w", name, err)
}

// thrown converts a thrown JS value; objects carrying a string code become
// structured errors.
func (r *Runtime) thrown(name string, v goja.Value) error {
	if obj, ok := v.(*goja.Object); ok {
		if e, ok := obj.Export().(error); ok {
			var typed *types.Error
			if errors.As(e, &typed) {
				return typed
			}
		}
		code := obj.Get("code")
		if code != nil && !goja.IsUndefined(code) && !goja.IsNull(code) {
			msg := ""
			if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
				msg = m.String()
			}
			return &types.Error{Code: code.String(), Message: msg}
		}
	}
	if v == nil {
		return fmt.Errorf("%s: exception", name)
	}
	return fmt.Errorf("%s: %s", name, v.String())
}

// throw raises err inside the VM as an Error carrying a code property
func (r *Runtime) throw(err error) {
	obj := r.vm.NewGoError(err)
	_ = obj.Set("code", types.CodeOf(err))
	panic(obj)
}

func (r *Runtime) introspect(fn Introspector) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if fn == nil {
			return r.vm.NewObject()
		}
		var names []string
		if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			obj, ok := arg.(*goja.Object)
			if !ok || obj.ClassName() != "Array" || r.vm.ExportTo(arg, &names) != nil {
				r.throw(types.NewError(types.CodeParams, "introspect expects an array of interface names"))
			}
		}
		result, err := fn(names)
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(result)
	}
}

// setupGlobals removes host escape hatches and installs console and timers
func (r *Runtime) setupGlobals() {
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = r.vm.Set(name, goja.Undefined())
	}

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "setImmediate", "clearTimeout", "clearInterval", "clearImmediate"} {
		_ = r.vm.Set(name, noop)
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, r.makeConsoleFunc(level))
	}
	_ = r.vm.Set("console", console)
}

// makeConsoleFunc routes a console method to the logger
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")
		field := zap.String("source", "console")

		switch level {
		case "error":
			r.log.Error(msg, field)
		case "warn":
			r.log.Warn(msg, field)
		case "debug":
			r.log.Debug(msg, field)
		default:
			r.log.Info(msg, field)
		}
		return goja.Undefined()
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
