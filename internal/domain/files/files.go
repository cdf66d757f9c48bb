package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/utils"
)

// minGzipSize is the smallest body worth compressing
const minGzipSize = 512

// File is a cached file
type File struct {
	Path    string // URL path, always starting with "/"
	Data    []byte
	Gzip    []byte // nil when not compressible or not smaller
	MIME    string
	ETag    string
	ModTime time.Time
}

// Options configure a files place
type Options struct {
	Gzip    bool
	Ignore  []string
	MaxSize int64
}

// OptionsFrom maps the static configuration section
func OptionsFrom(cfg config.StaticConfig) Options {
	return Options{Gzip: cfg.Gzip, Ignore: cfg.Ignore, MaxSize: cfg.MaxSize}
}

// Place caches every file under its root in memory
type Place struct {
	name    place.Name
	root    string
	opts    Options
	hasher  *utils.Hasher
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.RWMutex
	files map[string]*File // by URL path
}

// New creates a files place; name is place.Static or place.Resources
func New(name place.Name, root string, opts Options, log *logging.Logger, metrics *monitoring.Metrics) *Place {
	if log == nil {
		log = logging.NewNop()
	}
	return &Place{
		name:    name,
		root:    root,
		opts:    opts,
		hasher:  utils.DefaultHasher(),
		log:     log.Place(string(name)),
		metrics: metrics,
		files:   make(map[string]*File),
	}
}

// Name implements place.Place
func (p *Place) Name() place.Name { return p.name }

// Load caches every file under path. Loading the root replaces the cache.
func (p *Place) Load(ctx context.Context, dir string) error {
	start := time.Now()
	full := dir == "" || filepath.Clean(dir) == filepath.Clean(p.root)
	if dir == "" {
		dir = p.root
	}

	files, err := paths.Collect(ctx, dir, func(file string, _ fs.DirEntry) bool {
		return !p.ignored(file)
	})
	if err != nil {
		p.metrics.RecordPlaceLoad(string(p.name), err, time.Since(start))
		return err
	}

	loaded := make(map[string]*File, len(files))
	var errs []error
	for _, file := range files {
		f, err := p.read(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f != nil {
			loaded[f.Path] = f
		}
	}

	p.mu.Lock()
	if full {
		p.files = loaded
	} else {
		for key, f := range loaded {
			p.files[key] = f
		}
	}
	p.mu.Unlock()

	err = errors.Join(errs...)
	p.metrics.RecordPlaceLoad(string(p.name), err, time.Since(start))
	return err
}

// Change recaches one file
func (p *Place) Change(ctx context.Context, file string) error {
	if p.ignored(file) {
		return nil
	}
	f, err := p.read(file)
	if err != nil {
		return err
	}
	if f == nil {
		// grew past MaxSize; stale contents must not be served
		if key, ok := p.urlPath(file); ok {
			p.mu.Lock()
			delete(p.files, key)
			p.mu.Unlock()
		}
		return nil
	}
	p.mu.Lock()
	p.files[f.Path] = f
	p.mu.Unlock()
	return nil
}

// Delete drops the file at path, or every file under a removed directory
func (p *Place) Delete(ctx context.Context, file string) error {
	key, ok := p.urlPath(file)
	if !ok {
		return nil
	}
	prefix := key + "/"

	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.files {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(p.files, k)
		}
	}
	return nil
}

// Lookup finds a file by URL path. Directories resolve to their index.html.
func (p *Place) Lookup(urlPath string) (*File, bool) {
	clean := path.Clean("/" + urlPath)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if f, ok := p.files[clean]; ok {
		return f, true
	}
	if f, ok := p.files[path.Join(clean, "index.html")]; ok {
		return f, true
	}
	return nil, false
}

// List returns cached URL paths, sorted
func (p *Place) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.files))
	for k := range p.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Binding is the read-only handle hosted code sees as application.resources
func (p *Place) Binding() map[string]interface{} {
	return map[string]interface{}{
		"get": func(name string) interface{} {
			if f, ok := p.Lookup(name); ok {
				return string(f.Data)
			}
			return nil
		},
		"mime": func(name string) string {
			if f, ok := p.Lookup(name); ok {
				return f.MIME
			}
			return ""
		},
		"list": p.List,
	}
}

func (p *Place) read(file string) (*File, error) {
	key, ok := p.urlPath(file)
	if !ok {
		return nil, nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	if p.opts.MaxSize > 0 && info.Size() > p.opts.MaxSize {
		p.log.Warn("File exceeds cache limit", zap.String("file", key), zap.Int64("size", info.Size()))
		return nil, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	f := &File{
		Path:    key,
		Data:    data,
		MIME:    detectMIME(file, data),
		ETag:    p.hasher.ETag(data),
		ModTime: info.ModTime(),
	}
	if p.opts.Gzip && compressible(f.MIME) && len(data) >= minGzipSize {
		if gz, err := compress(data); err == nil && len(gz) < len(data) {
			f.Gzip = gz
		}
	}
	return f, nil
}

func (p *Place) urlPath(file string) (string, bool) {
	rel, ok := paths.Relative(p.root, file)
	if !ok {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

func (p *Place) ignored(file string) bool {
	rel, ok := paths.Relative(p.root, file)
	if !ok {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range p.opts.Ignore {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}

func detectMIME(file string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}

func compressible(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	for _, kind := range []string{"json", "javascript", "xml", "svg", "wasm"} {
		if strings.Contains(mimeType, kind) {
			return true
		}
	}
	return false
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
