package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/stretchr/testify/require"
)

// appendStep returns a step which appends its name to the "trail" entry.
func appendStep(from uint32, trail *[]string) Step {
	s := Step{From: from, To: from + 1}
	s.Name = s.String()
	s.Apply = func(_ context.Context, entries []archive.Entry) ([]archive.Entry, error) {
		*trail = append(*trail, s.Name)
		return append(entries, archive.Text("step-"+s.Name, nil)), nil
	}
	return s
}

func TestNew(t *testing.T) {
	var trail []string
	noop := func(_ context.Context, e []archive.Entry) ([]archive.Entry, error) { return e, nil }

	for name, steps := range map[string][]Step{
		"no apply":        {{From: 1, To: 2}},
		"zero source":     {{From: 0, To: 1, Apply: noop}},
		"not consecutive": {{From: 1, To: 3, Apply: noop}},
		"beyond current":  {appendStep(3, &trail)},
		"duplicate":       {appendStep(1, &trail), appendStep(1, &trail)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(3, steps...)
			require.Error(t, err)
		})
	}

	_, err := New(0)
	require.Error(t, err)

	require.Panics(t, func() { MustNew(0) })
}

func TestPlan(t *testing.T) {
	var trail []string
	e := MustNew(3, appendStep(2, &trail), appendStep(1, &trail))
	require.EqualValues(t, 3, e.Current())

	steps := e.Steps()
	require.Len(t, steps, 2)
	require.EqualValues(t, 1, steps[0].From)
	require.EqualValues(t, 2, steps[1].From)

	plan, err := e.Plan(1)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	for i := range plan {
		require.Equal(t, steps[i].String(), plan[i].String())
	}

	plan, err = e.Plan(3)
	require.NoError(t, err)
	require.Empty(t, plan)

	for _, from := range []uint32{0, 4, 100} {
		_, err = e.Plan(from)
		require.ErrorIs(t, err, fileerr.ErrVersionIncompatible, from)
	}

	t.Run("gap", func(t *testing.T) {
		e := MustNew(3, appendStep(2, &trail))

		_, err := e.Plan(1)
		require.ErrorIs(t, err, fileerr.ErrVersionIncompatible)

		_, err = e.Apply(context.Background(), 1, nil)
		require.ErrorIs(t, err, fileerr.ErrVersionIncompatible)
		require.Empty(t, trail)
	})
}

func TestApply(t *testing.T) {
	var trail []string
	e := MustNew(3, appendStep(1, &trail), appendStep(2, &trail))

	res, err := e.Apply(context.Background(), 1, []archive.Entry{archive.Text("ledger.json", []byte("{}"))})
	require.NoError(t, err)
	require.Equal(t, []string{"1->2", "2->3"}, trail)
	require.Len(t, res, 3)
	require.Equal(t, "step-2->3", res[2].Name)

	trail = nil
	_, err = e.Apply(context.Background(), 4, nil)
	require.ErrorIs(t, err, fileerr.ErrVersionIncompatible)
	require.Empty(t, trail)
}

func TestApplyFailure(t *testing.T) {
	var trail []string
	ok := appendStep(1, &trail)

	for name, apply := range map[string]ApplyFunc{
		"error": func(context.Context, []archive.Entry) ([]archive.Entry, error) {
			return nil, errors.New("unexpected ledger layout")
		},
		"panic": func(context.Context, []archive.Entry) ([]archive.Entry, error) {
			panic("index out of range")
		},
		"classified": func(context.Context, []archive.Entry) ([]archive.Entry, error) {
			return nil, fileerr.New(fileerr.KindCorruptArchive, "broken")
		},
	} {
		t.Run(name, func(t *testing.T) {
			trail = nil
			e := MustNew(3, ok, Step{From: 2, To: 3, Apply: apply})

			res, err := e.Apply(context.Background(), 1, nil)
			require.ErrorIs(t, err, fileerr.ErrMigrationFailed)
			require.Equal(t, fileerr.KindMigrationFailed, fileerr.KindOf(err))
			require.Nil(t, res)
			require.Equal(t, []string{"1->2"}, trail)
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		trail = nil
		ctx, cancel := context.WithCancel(context.Background())
		e := MustNew(3, Step{From: 1, To: 2, Apply: func(_ context.Context, e []archive.Entry) ([]archive.Entry, error) {
			cancel()
			return e, nil
		}}, appendStep(2, &trail))

		_, err := e.Apply(ctx, 1, nil)
		require.ErrorIs(t, err, fileerr.ErrMigrationFailed)
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, trail)
	})
}

func TestParseVersion(t *testing.T) {
	for s, exp := range map[string]uint32{
		"1.0.0":        1,
		"3.0.0":        3,
		"3.2.17":       3,
		"12.0.0-beta1": 12,
	} {
		v, err := ParseVersion(s)
		require.NoError(t, err, s)
		require.Equal(t, exp, v, s)
	}

	for _, s := range []string{"", "v3.0.0", "3", "three", "3.0.0.0"} {
		_, err := ParseVersion(s)
		require.Error(t, err, s)
	}

	require.Equal(t, "3.0.0", FormatVersion(3))
}
