package kernel

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/api"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/module"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/scheduler"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/schema"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/watcher"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/providers/auth"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/sandbox"
)

// Deployment kinds
const (
	KindServer    = "server"
	KindScheduler = "scheduler"
)

// State of the lifecycle
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Watcher is the source of hot-reload events
type Watcher interface {
	Events() <-chan watcher.Event
	Close() error
}

// AuthFactory constructs an auth provider from session configuration
type AuthFactory func(cfg config.SessionConfig) interface{}

// Places overrides individual places; nil fields get the concrete default.
type Places struct {
	Schemas   place.Place
	Static    place.Place
	Resources place.Place
	API       place.Place
	Lib       place.Place
	DB        place.Place
	Domain    place.Place
	Scheduler place.Place
}

// Options configure an Application
type Options struct {
	Root     string // application root; each place is a directory under it
	Worker   int
	Server   sandbox.Server
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
	Watcher  Watcher
	Runtime  *sandbox.Runtime
	Registry *api.Registry
	Places   Places
	NewAuth  AuthFactory
}

type startHook struct {
	name string
	fn   func(ctx context.Context) error
}

// Application is the root context of one worker: it owns the places, the
// sandbox and the lifecycle flags.
type Application struct {
	root     string
	worker   int
	server   sandbox.Server
	config   *config.Config
	log      *logging.Logger
	metrics  *monitoring.Metrics
	watcher  Watcher
	runtime  *sandbox.Runtime
	registry *api.Registry
	places   place.Table
	newAuth  AuthFactory

	kind         atomic.Value // string
	state        atomic.Int32
	finalization atomic.Bool

	mu       sync.Mutex
	starts   []startHook
	sandbox  *sandbox.Sandbox
	auth     interface{}
	listener io.Closer

	ctx        context.Context
	cancel     context.CancelFunc
	reloadOnce sync.Once
	reloadDone chan struct{}
}

// New creates an Application. Missing collaborators get defaults built from
// the configuration.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	worker := opts.Worker
	if worker < 1 {
		worker = cfg.Application.Worker
	}
	root := opts.Root
	if root == "" {
		root = cfg.Application.Root
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	server := opts.Server
	if server == (sandbox.Server{}) {
		server = sandbox.Server{Host: cfg.Server.Host, Port: cfg.Server.Port, Protocol: cfg.Server.Protocol}
	}

	runtime := opts.Runtime
	if runtime == nil {
		runtime = sandbox.New(sandbox.ConfigFrom(cfg.Sandbox), log.Worker(worker))
	}
	registry := opts.Registry
	if registry == nil {
		registry = api.NewRegistry(opts.Metrics)
	}
	newAuth := opts.NewAuth
	if newAuth == nil {
		newAuth = func(c config.SessionConfig) interface{} { return auth.NewProvider(c) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		root:       root,
		worker:     worker,
		server:     server,
		config:     cfg,
		log:        log.Worker(worker),
		metrics:    opts.Metrics,
		watcher:    opts.Watcher,
		runtime:    runtime,
		registry:   registry,
		newAuth:    newAuth,
		ctx:        ctx,
		cancel:     cancel,
		reloadDone: make(chan struct{}),
	}
	a.kind.Store("")
	a.places = a.defaultPlaces(opts.Places)
	return a, nil
}

func (a *Application) defaultPlaces(o Places) place.Table {
	dir := func(name place.Name) string { return filepath.Join(a.root, string(name)) }
	static := files.OptionsFrom(a.config.Static)
	resources := static
	resources.Gzip = false

	pick := func(override place.Place, build func() place.Place) place.Place {
		if override != nil {
			return override
		}
		return build()
	}

	return place.Table{
		place.Schemas: pick(o.Schemas, func() place.Place {
			return schema.New(dir(place.Schemas), a.log, a.metrics)
		}),
		place.Static: pick(o.Static, func() place.Place {
			return files.New(place.Static, dir(place.Static), static, a.log, a.metrics)
		}),
		place.Resources: pick(o.Resources, func() place.Place {
			return files.New(place.Resources, dir(place.Resources), resources, a.log, a.metrics)
		}),
		place.API: pick(o.API, func() place.Place {
			return api.NewPlace(dir(place.API), a.runtime, a.registry, a.log, a.metrics)
		}),
		place.Lib: pick(o.Lib, func() place.Place {
			return module.New(place.Lib, dir(place.Lib), a.runtime, a.Defer, a.log, a.metrics)
		}),
		place.DB: pick(o.DB, func() place.Place {
			return module.New(place.DB, dir(place.DB), a.runtime, a.Defer, a.log, a.metrics)
		}),
		place.Domain: pick(o.Domain, func() place.Place {
			return module.New(place.Domain, dir(place.Domain), a.runtime, a.Defer, a.log, a.metrics)
		}),
		place.Scheduler: pick(o.Scheduler, func() place.Place {
			return scheduler.New(dir(place.Scheduler), a.runtime, a.log, a.metrics)
		}),
	}
}

// Root returns the application root directory
func (a *Application) Root() string { return a.root }

// Worker returns the worker identity
func (a *Application) Worker() int { return a.worker }

// Kind returns the deployment kind recorded by Init
func (a *Application) Kind() string { return a.kind.Load().(string) }

// State returns the lifecycle state
func (a *Application) State() State { return State(a.state.Load()) }

// Initializing reports whether Init is in progress
func (a *Application) Initializing() bool { return a.State() == Initializing }

// Finalizing reports whether Shutdown has started
func (a *Application) Finalizing() bool { return a.finalization.Load() }

// Config returns the active configuration
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger
func (a *Application) Logger() *logging.Logger { return a.log }

// Runtime returns the sandbox runtime
func (a *Application) Runtime() *sandbox.Runtime { return a.runtime }

// Registry returns the interface registry
func (a *Application) Registry() *api.Registry { return a.registry }

// Places returns the place table
func (a *Application) Places() place.Table { return a.places }

// Place returns one place
func (a *Application) Place(name place.Name) place.Place { return a.places[name] }

// Sandbox returns the current binding set, nil before Init
func (a *Application) Sandbox() *sandbox.Sandbox {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sandbox
}

// Auth returns the active auth provider, nil when the deployment has none
func (a *Application) Auth() interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auth
}

// AttachListener registers the network listener closed during Shutdown
func (a *Application) AttachListener(l io.Closer) {
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
}
