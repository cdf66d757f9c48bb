package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

// Task is a periodic call of hosted code
type Task struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Every  string        `json:"every"`
	Args   interface{}   `json:"args,omitempty"`
	Run    string        `json:"run"`
	Period time.Duration `json:"-"`
	Source string        `json:"source,omitempty"` // task file, when loaded from disk
}

// ParseEvery sums a space-separated list of durations such as "1h 30m"
func ParseEvery(every string) (time.Duration, error) {
	fields := strings.Fields(every)
	if len(fields) == 0 {
		return 0, types.NewError(types.CodeTask, "every is required")
	}
	var total time.Duration
	for _, field := range fields {
		d, err := time.ParseDuration(field)
		if err != nil {
			return 0, types.NewError(types.CodeTask, "invalid period %q", field)
		}
		total += d
	}
	if total <= 0 {
		return 0, types.NewError(types.CodeTask, "period must be positive, got %s", every)
	}
	return total, nil
}

// Validate checks required fields and computes Period
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return types.NewError(types.CodeTask, "task name is required")
	}
	if strings.TrimSpace(t.Run) == "" {
		return types.NewError(types.CodeTask, "task %s: run is required", t.Name)
	}
	period, err := ParseEvery(t.Every)
	if err != nil {
		return err
	}
	t.Period = period
	return nil
}

// TaskFrom builds a task from a decoded object
func TaskFrom(spec map[string]interface{}) (Task, error) {
	var t Task
	for key, target := range map[string]*string{"name": &t.Name, "every": &t.Every, "run": &t.Run} {
		if v, ok := spec[key]; ok && v != nil {
			s, ok := v.(string)
			if !ok {
				return t, types.NewError(types.CodeTask, "%s must be a string", key)
			}
			*target = s
		}
	}
	t.Args = spec["args"]
	return t, t.Validate()
}

func (t Task) String() string {
	return fmt.Sprintf("%s(every %s -> %s)", t.Name, t.Every, t.Run)
}
