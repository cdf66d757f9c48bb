package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
)

// ErrClosed is returned by Add after Close
var ErrClosed = errors.New("scheduler is closed")

// Runner executes a dotted sandbox reference
type Runner interface {
	CallPath(ctx context.Context, path string, args ...interface{}) (interface{}, error)
}

type entry struct {
	task Task
	done chan struct{}
	once sync.Once
}

func (e *entry) cancel() {
	e.once.Do(func() { close(e.done) })
}

// Scheduler is the scheduler place. Tasks come from hosted code through
// Add or from task files under the place directory.
type Scheduler struct {
	root    string
	runner  Runner
	log     *logging.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*entry
	closed bool
}

// New creates a scheduler
func New(root string, runner Runner, log *logging.Logger, metrics *monitoring.Metrics) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		root:    root,
		runner:  runner,
		log:     log.Place(string(place.Scheduler)),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*entry),
	}
}

// Name implements place.Place
func (s *Scheduler) Name() place.Name { return place.Scheduler }

// Add validates and starts a task, returning its id
func (s *Scheduler) Add(task Task) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	task.ID = uuid.NewString()
	e := &entry{task: task, done: make(chan struct{})}
	s.tasks[task.ID] = e

	s.wg.Add(1)
	go s.loop(e)

	s.log.Info("Task scheduled", zap.String("task", task.Name), zap.String("id", task.ID), zap.Duration("every", task.Period))
	return task.ID, nil
}

// Remove cancels a task by id. It does not wait for a running call.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if ok {
		e.cancel()
	}
	return ok
}

// Stop cancels every task with the given name and returns how many
func (s *Scheduler) Stop(name string) int {
	return s.removeWhere(func(t Task) bool { return t.Name == name })
}

// List returns scheduled tasks ordered by name
func (s *Scheduler) List() []Task {
	s.mu.Lock()
	tasks := make([]Task, 0, len(s.tasks))
	for _, e := range s.tasks {
		tasks = append(tasks, e.task)
	}
	s.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Name != tasks[j].Name {
			return tasks[i].Name < tasks[j].Name
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Close halts every timer and waits for running calls to finish
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, e := range s.tasks {
		e.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// Load reads task files under path (the place root when empty)
func (s *Scheduler) Load(ctx context.Context, path string) error {
	start := time.Now()
	if path == "" {
		path = s.root
	}

	files, err := paths.Collect(ctx, path, paths.Ext(".json"))
	if err == nil {
		var errs []error
		for _, file := range files {
			if err := s.loadFile(file); err != nil {
				errs = append(errs, err)
			}
		}
		err = errors.Join(errs...)
	}

	s.metrics.RecordPlaceLoad(string(place.Scheduler), err, time.Since(start))
	return err
}

// Change replaces the tasks declared by one file
func (s *Scheduler) Change(ctx context.Context, path string) error {
	if !paths.Ext(".json")(path, nil) {
		return nil
	}
	return s.loadFile(path)
}

// Delete cancels tasks declared by files at or under path
func (s *Scheduler) Delete(ctx context.Context, path string) error {
	prefix := path + string(filepath.Separator)
	s.removeWhere(func(t Task) bool {
		return t.Source != "" && (t.Source == path || strings.HasPrefix(t.Source, prefix))
	})
	return nil
}

// Binding is the handle hosted code sees as application.scheduler
func (s *Scheduler) Binding() map[string]interface{} {
	return map[string]interface{}{
		"add": func(spec map[string]interface{}) (string, error) {
			task, err := TaskFrom(spec)
			if err != nil {
				return "", err
			}
			return s.Add(task)
		},
		"remove": s.Remove,
		"stop":   s.Stop,
		"list":   s.List,
	}
}

func (s *Scheduler) loadFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var specs []map[string]interface{}
	if err := sonic.Unmarshal(data, &specs); err != nil {
		var single map[string]interface{}
		if err := sonic.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		specs = []map[string]interface{}{single}
	}

	tasks := make([]Task, 0, len(specs))
	for _, spec := range specs {
		task, err := TaskFrom(spec)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		task.Source = file
		tasks = append(tasks, task)
	}

	s.removeWhere(func(t Task) bool { return t.Source == file })
	for _, task := range tasks {
		if _, err := s.Add(task); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) removeWhere(match func(Task) bool) int {
	s.mu.Lock()
	var removed []*entry
	for id, e := range s.tasks {
		if match(e.task) {
			removed = append(removed, e)
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	for _, e := range removed {
		e.cancel()
	}
	return len(removed)
}

// loop runs one task. Calls are made inline, so a slow run delays the next
// tick instead of overlapping it.
func (s *Scheduler) loop(e *entry) {
	defer s.wg.Done()
	ticker := time.NewTicker(e.task.Period)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.run(e)
		}
	}
}

func (s *Scheduler) run(e *entry) {
	select {
	case <-e.done:
		return
	default:
	}

	args := []interface{}{}
	if e.task.Args != nil {
		args = append(args, e.task.Args)
	}
	if _, err := s.runner.CallPath(s.ctx, e.task.Run, args...); err != nil {
		s.log.Error("Task failed", zap.String("task", e.task.Name), zap.String("run", e.task.Run), zap.Error(err))
	}
}
