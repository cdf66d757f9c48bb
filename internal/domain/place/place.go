package place

import (
	"context"
)

// Name identifies a place. A place name is also the name of its directory
// under the application root.
type Name string

const (
	Schemas   Name = "schemas"
	Static    Name = "static"
	Resources Name = "resources"
	API       Name = "api"
	Lib       Name = "lib"
	DB        Name = "db"
	Domain    Name = "domain"
	Scheduler Name = "scheduler"
)

// Names lists every place in load order of the startup fan-out.
var Names = []Name{Schemas, Static, Resources, API, Lib, DB, Domain, Scheduler}

// Place is an independently loadable subsystem.
type Place interface {
	Name() Name
	// Load (re)loads everything under path; an empty path means the place root.
	Load(ctx context.Context, path string) error
}

// Changer applies an incremental reload of a single file.
type Changer interface {
	Change(ctx context.Context, path string) error
}

// Deleter forgets whatever was loaded from a removed path.
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Stopper is a stop hook exposed by one loaded module.
type Stopper struct {
	Module string
	Stop   func(ctx context.Context) error
}

// Stoppable places expose stop hooks of their loaded modules.
type Stoppable interface {
	Stoppers() []Stopper
}

// Treed places publish their loaded entities as a live tree.
type Treed interface {
	Tree() *Tree
}

// Table is the fixed mapping from place name to place.
type Table map[Name]Place

// Lookup resolves a directory name to a place. Names that are not places
// resolve to nothing.
func (t Table) Lookup(name string) (Place, bool) {
	p, ok := t[Name(name)]
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}

// TreeOf returns the live tree of p, or an empty tree when p does not publish one.
func TreeOf(p Place) *Tree {
	if t, ok := p.(Treed); ok {
		if tree := t.Tree(); tree != nil {
			return tree
		}
	}
	return NewTree()
}
