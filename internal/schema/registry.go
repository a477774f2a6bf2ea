// Package schema holds the task schema registry: the declarative map of
// compliance tasks, their due-date policies and prerequisites.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/gosuda/careline/internal/domain"
)

//go:embed default.yaml
var defaultSchema []byte

// ErrInvalidSchema wraps every registry validation failure.
var ErrInvalidSchema = errors.New("schema: invalid registry") //nolint:gochecknoglobals // sentinel error

// CycleError reports task ids that participate in a dependency cycle.
type CycleError struct {
	IDs []string
}

func (e CycleError) Error() string {
	return "schema: dependency cycle among tasks: " + strings.Join(e.IDs, ", ")
}

func (e CycleError) Unwrap() error {
	return ErrInvalidSchema
}

// Registry is an immutable, validated set of task definitions.
// A nil *Registry is valid and means no schema is available.
type Registry struct {
	defs  map[string]domain.TaskDefinition
	order []string
}

// New validates defs and builds a registry.
func New(defs []domain.TaskDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]domain.TaskDefinition, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("schema.New: empty task id: %w", ErrInvalidSchema)
		}
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("schema.New: duplicate task id %q: %w", d.ID, ErrInvalidSchema)
		}
		d.DependsOn = slices.Clone(d.DependsOn)
		r.defs[d.ID] = d
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("schema.New: %w", err)
	}

	order, err := r.topoOrder()
	if err != nil {
		return nil, fmt.Errorf("schema.New: %w", err)
	}
	r.order = order

	return r, nil
}

// Parse decodes a YAML registry keyed by task id.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]domain.TaskDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("schema.Parse: %w", err)
	}

	defs := make([]domain.TaskDefinition, 0, len(raw))
	for id, d := range raw {
		d.ID = id
		defs = append(defs, d)
	}

	return New(defs)
}

// LoadFile reads a YAML registry from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema.LoadFile: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema.LoadFile %s: %w", path, err)
	}
	return r, nil
}

// Default returns the embedded default registry.
func Default() (*Registry, error) {
	return Parse(defaultSchema)
}

// Load returns the registry at path, or the embedded default when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Len returns the number of task definitions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (domain.TaskDefinition, bool) {
	if r == nil {
		return domain.TaskDefinition{}, false
	}
	d, ok := r.defs[id]
	return d, ok
}

// Has reports whether id is defined.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Order returns task ids in dependency order: every task appears after its
// prerequisites and after the task its due date is derived from. Ties are
// broken by id so the order is deterministic.
func (r *Registry) Order() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.order)
}

// Definitions returns all definitions in Order.
func (r *Registry) Definitions() []domain.TaskDefinition {
	if r == nil {
		return nil
	}
	out := make([]domain.TaskDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// Dependents returns ids of tasks that list id as a prerequisite.
func (r *Registry) Dependents(id string) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, tid := range r.order {
		if slices.Contains(r.defs[tid].DependsOn, id) {
			out = append(out, tid)
		}
	}
	return out
}

func (r *Registry) validate() error {
	for _, id := range r.sortedIDs() {
		d := r.defs[id]
		for _, dep := range d.DependsOn {
			if dep == id {
				return fmt.Errorf("task %q depends on itself: %w", id, ErrInvalidSchema)
			}
			if _, ok := r.defs[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q: %w", id, dep, ErrInvalidSchema)
			}
		}
		if d.Due.Type == domain.PolicyAfterTaskComplete {
			if d.Due.Task == "" {
				return fmt.Errorf("task %q: afterTaskComplete policy needs a task: %w", id, ErrInvalidSchema)
			}
			if _, ok := r.defs[d.Due.Task]; !ok {
				return fmt.Errorf("task %q: due date references unknown task %q: %w", id, d.Due.Task, ErrInvalidSchema)
			}
			if d.Due.Task == id {
				return fmt.Errorf("task %q: due date references itself: %w", id, ErrInvalidSchema)
			}
		}
		if !d.Due.Type.Valid() {
			// Tolerated: the evaluator keeps the previous due date for these.
			log.Warn().Str("task_id", id).Str("policy", string(d.Due.Type)).
				Msg("schema: unknown due-date policy; due date will not be computed")
		}
		if d.LegacyDateField != "" && d.LegacyField == "" {
			return fmt.Errorf("task %q: legacyDateField without legacyField: %w", id, ErrInvalidSchema)
		}
	}
	return nil
}

// prerequisites are the tasks whose state must be final before id is synced.
func (r *Registry) prerequisites(id string) []string {
	d := r.defs[id]
	var pre []string
	for _, dep := range d.DependsOn {
		if !slices.Contains(pre, dep) {
			pre = append(pre, dep)
		}
	}
	if d.Due.Type == domain.PolicyAfterTaskComplete && d.Due.Task != "" && !slices.Contains(pre, d.Due.Task) {
		pre = append(pre, d.Due.Task)
	}
	return pre
}

// topoOrder is Kahn's algorithm with an id-sorted ready set.
func (r *Registry) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(r.defs))
	for id := range r.defs {
		indegree[id] = len(r.prerequisites(id))
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(r.defs))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, id := range r.sortedIDs() {
			if !slices.Contains(r.prerequisites(id), current) {
				continue
			}
			indegree[id]--
			if indegree[id] == 0 {
				ready = append(ready, id)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(r.defs) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, CycleError{IDs: stuck}
	}

	return order, nil
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
