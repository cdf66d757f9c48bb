package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
)

// Op is the kind of change reported for a path
type Op int

const (
	Change Op = iota + 1
	Delete
)

func (o Op) String() string {
	switch o {
	case Change:
		return "change"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a debounced filesystem notification
type Event struct {
	Op   Op
	Path string
}

type pending struct {
	op       Op
	deadline time.Time
	seq      uint64
}

// Watcher watches a directory tree and emits debounced events from a single
// goroutine, so events for one path arrive in order.
type Watcher struct {
	fs      *fsnotify.Watcher
	timeout time.Duration
	log     *logging.Logger
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	pending map[string]*pending
	seq     uint64
}

// New watches root recursively. Events for a path are held until no further
// activity is seen on it for timeout.
func New(root string, timeout time.Duration, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:      fw,
		timeout: timeout,
		log:     log,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		pending: make(map[string]*pending),
	}
	if err := w.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Events returns the event stream. It is closed after Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching; pending events are discarded
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		<-w.stopped
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	defer close(w.events)

	tick := w.timeout / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev, time.Now())
			if w.timeout <= 0 && !w.emit(w.flush(time.Now())) {
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error", zap.Error(err))
		case now := <-ticker.C:
			if !w.emit(w.flush(now)) {
				return
			}
		}
	}
}

// handle records a raw notification; newly created directories join the watch
func (w *Watcher) handle(ev fsnotify.Event, now time.Time) {
	var op Op
	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = Delete
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		op = Change
		if ev.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.addRecursive(ev.Name); err != nil {
					w.log.Warn("Failed to watch directory", zap.String("path", ev.Name), zap.Error(err))
				}
			}
		}
	default:
		return
	}

	w.seq++
	if p, ok := w.pending[ev.Name]; ok {
		p.op = op
		p.deadline = now.Add(w.timeout)
		return
	}
	w.pending[ev.Name] = &pending{op: op, deadline: now.Add(w.timeout), seq: w.seq}
}

// flush returns settled events in first-seen order
func (w *Watcher) flush(now time.Time) []Event {
	type ready struct {
		event Event
		seq   uint64
	}
	var out []ready
	for path, p := range w.pending {
		if now.Before(p.deadline) {
			continue
		}
		out = append(out, ready{Event{Op: p.op, Path: path}, p.seq})
		delete(w.pending, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })

	events := make([]Event, len(out))
	for i, r := range out {
		events[i] = r.event
	}
	return events
}

func (w *Watcher) emit(events []Event) bool {
	for _, ev := range events {
		select {
		case w.events <- ev:
		case <-w.done:
			return false
		}
	}
	return true
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	var mu sync.Mutex
	var errs []error
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}
