// Package migration advances archive entries written by older releases to
// the schema of the running program.
//
// Schemas are numbered by the major component of the file format version.
// A file is migrated by the exact chain of single-version steps from its
// schema to the current one, or not at all.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

// ApplyFunc transforms entries of one schema into the next one. It may
// modify the passed slice and entries in place.
type ApplyFunc func(ctx context.Context, entries []archive.Entry) ([]archive.Entry, error)

// Step migrates entries from schema From to To = From+1.
type Step struct {
	From  uint32
	To    uint32
	Name  string
	Apply ApplyFunc
}

func (s Step) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%d->%d (%s)", s.From, s.To, s.Name)
	}
	return fmt.Sprintf("%d->%d", s.From, s.To)
}

// Engine holds the steps towards the current schema.
type Engine struct {
	current uint32
	steps   map[uint32]Step
}

// New returns engine migrating to current schema. Steps must be consecutive,
// unique by source schema and must not go beyond current.
func New(current uint32, steps ...Step) (*Engine, error) {
	if current == 0 {
		return nil, errors.New("zero current schema")
	}

	e := &Engine{current: current, steps: make(map[uint32]Step, len(steps))}
	for _, s := range steps {
		switch {
		case s.Apply == nil:
			return nil, fmt.Errorf("step %s: missing apply function", s)
		case s.From == 0:
			return nil, fmt.Errorf("step %s: zero source schema", s)
		case s.To != s.From+1:
			return nil, fmt.Errorf("step %s: schemas are not consecutive", s)
		case s.To > current:
			return nil, fmt.Errorf("step %s: target is newer than current schema %d", s, current)
		}
		if prev, ok := e.steps[s.From]; ok {
			return nil, fmt.Errorf("steps %s and %s have the same source", prev, s)
		}
		e.steps[s.From] = s
	}
	return e, nil
}

// MustNew is like New but panics on error.
func MustNew(current uint32, steps ...Step) *Engine {
	e, err := New(current, steps...)
	if err != nil {
		panic(err)
	}
	return e
}

// Current returns the schema entries are migrated to.
func (e *Engine) Current() uint32 { return e.current }

// Steps returns all registered steps in ascending order.
func (e *Engine) Steps() []Step {
	res := make([]Step, 0, len(e.steps))
	for _, s := range e.steps {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].From < res[j].From })
	return res
}

// Plan returns the steps migrating schema from to the current one, in order
// of application. The plan is empty for the current schema. Returns
// fileerr.ErrVersionIncompatible if the chain has a gap or from is newer
// than the current schema.
func (e *Engine) Plan(from uint32) ([]Step, error) {
	switch {
	case from == 0:
		return nil, fileerr.New(fileerr.KindVersionIncompatible, "zero schema version")
	case from > e.current:
		return nil, fileerr.Newf(fileerr.KindVersionIncompatible,
			"file schema %d is newer than supported %d", from, e.current)
	}

	plan := make([]Step, 0, e.current-from)
	for v := from; v < e.current; v++ {
		s, ok := e.steps[v]
		if !ok {
			return nil, fileerr.Newf(fileerr.KindVersionIncompatible,
				"no migration from schema %d to %d", v, v+1)
		}
		plan = append(plan, s)
	}
	return plan, nil
}

// Apply migrates entries of schema from to the current schema. Any failure
// of a step, including a panic or context cancellation, results in
// fileerr.ErrMigrationFailed. On error the contents of entries are undefined
// and must be discarded by the caller.
func (e *Engine) Apply(ctx context.Context, from uint32, entries []archive.Entry) ([]archive.Entry, error) {
	plan, err := e.Plan(from)
	if err != nil {
		return nil, err
	}
	return Run(ctx, plan, entries)
}

// Run applies the steps in order.
func Run(ctx context.Context, plan []Step, entries []archive.Entry) ([]archive.Entry, error) {
	var err error
	for _, s := range plan {
		if err = ctx.Err(); err != nil {
			return nil, fileerr.Newf(fileerr.KindMigrationFailed, "step %s: %w", s, err)
		}
		if entries, err = runStep(ctx, s, entries); err != nil {
			return nil, fileerr.Newf(fileerr.KindMigrationFailed, "step %s: %w", s, err)
		}
	}
	return entries, nil
}

func runStep(ctx context.Context, s Step, entries []archive.Entry) (res []archive.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Apply(ctx, entries)
}
