package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
)

var (
	ErrTimeout  = errors.New("sandbox execution timeout exceeded")
	ErrNotFound = errors.New("sandbox reference not found")
	ErrClosed   = errors.New("sandbox runtime is closed")
	ErrPending  = errors.New("sandbox promise did not settle")
)

// Config bounds hosted code execution
type Config struct {
	Timeout      time.Duration // per Eval/Call
	MaxCallStack int
}

// DefaultConfig returns the default sandbox limits
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		MaxCallStack: 1024,
	}
}

// ConfigFrom maps the application configuration section
func ConfigFrom(cfg config.SandboxConfig) Config {
	c := DefaultConfig()
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxCallStack > 0 {
		c.MaxCallStack = cfg.MaxCallStack
	}
	return c
}

// Worker identifies the process hosting the sandbox
type Worker struct {
	ID int `json:"id"`
}

// Server describes the network listener
type Server struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// Introspector produces method signatures for the named interfaces
type Introspector func(names []string) (map[string]interface{}, error)

// Application is the descriptor hosted code sees as `application`.
// It carries handles and introspection only; loaders never appear here.
type Application struct {
	Worker     Worker
	Server     Server
	Resources  interface{}
	Schemas    interface{}
	Scheduler  interface{}
	Introspect Introspector
}

// Sandbox is the binding set injected into hosted modules
type Sandbox struct {
	Application Application
	Config      interface{}
	API         *place.Tree
	Lib         *place.Tree
	DB          *place.Tree
	Domain      *place.Tree
}

// Globals lists the names Bind installs
var Globals = []string{"application", "config", "api", "lib", "db", "domain", "console"}
