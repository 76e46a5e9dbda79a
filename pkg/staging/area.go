// Package staging manages per-company scratch directories of editing
// sessions and finds the ones left behind by crashed processes.
//
// Every area is a directory named by a random UUID under the staging root. It
// holds a small bbolt database with the session marker, opened exclusively for
// the whole session, and the latest autosave of the company. The exclusive
// lock tells live sessions from abandoned ones: it is released by the kernel
// when the owning process dies.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/argo-books/argo-core/pkg/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const autosavePrefix = "autosave"

// ErrReleased is returned by operations on a released area.
var ErrReleased = errors.New("staging area is released")

// Area is a staging directory of one company editing session. Area must be
// released with Release on every exit path.
type Area struct {
	cfg *cfg

	id      uuid.UUID
	dir     string
	company string

	mtx      sync.Mutex
	marker   *marker
	released bool
}

// Acquire creates new staging area for the company file under root.
func Acquire(root, companyPath string, opts ...Option) (*Area, error) {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	if err := util.MkdirAllX(root, 0o700); err != nil {
		return nil, fmt.Errorf("could not create staging root: %w", err)
	}

	id := uuid.New()
	dir := filepath.Join(root, id.String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create staging area: %w", err)
	}

	m, err := openMarker(filepath.Join(dir, markerFile), false, c.timeout)
	if err == nil {
		now := c.now()
		err = m.put(
			companyKey, []byte(companyPath),
			createdKey, encodeTime(now),
			modifiedKey, encodeTime(now),
			dirtyKey, []byte{0},
			autosaveNameKey, []byte(autosavePrefix+filepath.Ext(companyPath)),
		)
		if err != nil {
			_ = m.close()
		}
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("could not init session marker: %w", err)
	}

	c.metrics.IncStagingAreas()
	c.log.Debug("staging area acquired", zap.Stringer("id", id), zap.String("company", companyPath))

	return &Area{
		cfg:     c,
		id:      id,
		dir:     dir,
		company: companyPath,
		marker:  m,
	}, nil
}

// ID returns unique identifier of the area.
func (a *Area) ID() uuid.UUID { return a.id }

// Dir returns the area directory.
func (a *Area) Dir() string { return a.dir }

// CompanyPath returns the company file the area was acquired for.
func (a *Area) CompanyPath() string { return a.company }

// AutosavePath returns the path the autosave snapshot is written to.
func (a *Area) AutosavePath() string {
	return filepath.Join(a.dir, autosavePrefix+filepath.Ext(a.company))
}

// MarkDirty records that the session has unsaved changes.
func (a *Area) MarkDirty() error {
	return a.setDirty(true)
}

// MarkClean records that all changes are saved to the company file.
func (a *Area) MarkClean() error {
	return a.setDirty(false)
}

func (a *Area) setDirty(dirty bool) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.released {
		return ErrReleased
	}
	return a.marker.setDirty(dirty, a.cfg.now())
}

// Autosave calls save with AutosavePath and marks the session dirty once the
// snapshot is written. The marker is left untouched if save fails.
func (a *Area) Autosave(ctx context.Context, save func(ctx context.Context, path string) error) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.released {
		return ErrReleased
	}

	if err := save(ctx, a.AutosavePath()); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	now := a.cfg.now()
	if err := a.marker.put(autosavedKey, encodeTime(now), dirtyKey, []byte{1}, modifiedKey, encodeTime(now)); err != nil {
		return fmt.Errorf("update session marker: %w", err)
	}

	a.cfg.log.Debug("company autosaved", zap.Stringer("id", a.id))
	return nil
}

// Release closes the marker and removes the area with all its contents. The
// directory is removed even if closing fails. Repeated calls are no-op.
func (a *Area) Release() error {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.released {
		return nil
	}
	a.released = true
	a.cfg.metrics.DecStagingAreas()

	var errs []error
	if err := a.marker.close(); err != nil {
		errs = append(errs, fmt.Errorf("close session marker: %w", err))
	}
	if err := os.RemoveAll(a.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove staging area: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		a.cfg.log.Warn("could not release staging area", zap.Stringer("id", a.id), zap.Error(err))
	} else {
		a.cfg.log.Debug("staging area released", zap.Stringer("id", a.id))
	}
	return err
}
