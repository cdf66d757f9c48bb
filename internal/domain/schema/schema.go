package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

// Extensions lists the supported document formats
var Extensions = []string{".json", ".yaml", ".yml", ".toml"}

// Place loads schema documents. A schema's name is its path relative to the
// place without the extension, dot-joined.
type Place struct {
	root    string
	log     *logging.Logger
	metrics *monitoring.Metrics
	tree    *place.Tree

	mu    sync.RWMutex
	files map[string][]string // file -> segments
}

// New creates the schemas place
func New(root string, log *logging.Logger, metrics *monitoring.Metrics) *Place {
	if log == nil {
		log = logging.NewNop()
	}
	return &Place{
		root:    root,
		log:     log.Place(string(place.Schemas)),
		metrics: metrics,
		tree:    place.NewTree(),
		files:   make(map[string][]string),
	}
}

// Name implements place.Place
func (p *Place) Name() place.Name { return place.Schemas }

// Tree implements place.Treed
func (p *Place) Tree() *place.Tree { return p.tree }

// Load parses every document under path
func (p *Place) Load(ctx context.Context, path string) error {
	start := time.Now()
	if path == "" {
		path = p.root
	}

	files, err := paths.Collect(ctx, path, paths.Ext(Extensions...))
	if err == nil {
		var errs []error
		for _, file := range files {
			if err := p.loadFile(file); err != nil {
				errs = append(errs, err)
			}
		}
		err = errors.Join(errs...)
	}

	p.metrics.RecordPlaceLoad(string(place.Schemas), err, time.Since(start))
	return err
}

// Change reparses one document
func (p *Place) Change(ctx context.Context, path string) error {
	if !paths.Ext(Extensions...)(path, nil) {
		return nil
	}
	return p.loadFile(path)
}

// Delete forgets documents at or under path
func (p *Place) Delete(ctx context.Context, path string) error {
	prefix := path + string(filepath.Separator)
	p.mu.Lock()
	defer p.mu.Unlock()
	for file, segments := range p.files {
		if file == path || strings.HasPrefix(file, prefix) {
			p.tree.Delete(segments...)
			delete(p.files, file)
		}
	}
	return nil
}

// Get returns a schema by dotted name
func (p *Place) Get(name string) (map[string]interface{}, bool) {
	v, ok := p.tree.Get(strings.Split(name, ".")...)
	if !ok {
		return nil, false
	}
	doc, ok := v.(map[string]interface{})
	return doc, ok
}

// Names returns loaded schema names
func (p *Place) Names() []string {
	var names []string
	p.tree.Walk(func(path []string, _ interface{}) {
		names = append(names, paths.Key(path))
	})
	return names
}

// Binding is the read-only handle hosted code sees as application.schemas
func (p *Place) Binding() map[string]interface{} {
	return map[string]interface{}{
		"get": func(name string) interface{} {
			if doc, ok := p.Get(name); ok {
				return doc
			}
			return nil
		},
		"names": p.Names,
	}
}

func (p *Place) loadFile(file string) error {
	segments, err := paths.Segments(p.root, file, filepath.Ext(file))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	doc, err := Decode(filepath.Ext(file), data)
	if err != nil {
		p.log.Error("Invalid schema", zap.String("schema", paths.Key(segments)), zap.Error(err))
		return fmt.Errorf("%s: %w", file, err)
	}

	p.mu.Lock()
	p.files[file] = segments
	p.mu.Unlock()
	p.tree.Set(doc, segments...)
	return nil
}

// Decode parses a document by extension. Documents must be objects.
func Decode(ext string, data []byte) (map[string]interface{}, error) {
	var (
		v   interface{}
		err error
	)
	switch strings.ToLower(ext) {
	case ".json":
		err = sonic.Unmarshal(data, &v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &v)
	case ".toml":
		var doc map[string]interface{}
		err = toml.Unmarshal(data, &doc)
		v = doc
	default:
		return nil, types.NewError(types.CodeSchema, "unsupported schema format %q", ext)
	}
	if err != nil {
		return nil, types.NewError(types.CodeSchema, "parse failed: %v", err)
	}

	doc, ok := v.(map[string]interface{})
	if !ok || doc == nil {
		return nil, types.NewError(types.CodeSchema, "schema must be an object")
	}
	return doc, nil
}
