package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// RecoverableSnapshot describes an abandoned staging area with unsaved
// changes.
type RecoverableSnapshot struct {
	ID  uuid.UUID
	Dir string
	// CompanyPath is the company file the session edited.
	CompanyPath string
	// AutosaveName is the name of the autosave file in Dir.
	AutosaveName string
	// AutosavePath is the full path of the autosave file.
	AutosavePath string
	// AutosaveSize is the length of the autosave file.
	AutosaveSize int64

	CreatedAt   time.Time
	ModifiedAt  time.Time
	AutosavedAt time.Time
}

// Scan lists staging areas under root left with unsaved changes and an
// autosave, most recently modified first. Areas of live sessions, clean
// areas and foreign directories are skipped. Scan never modifies anything.
// Missing root is not an error.
func Scan(root string, opts ...Option) ([]RecoverableSnapshot, error) {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read staging root: %w", err)
	}

	var res []RecoverableSnapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}

		l := c.log.With(zap.Stringer("id", id))

		s, ok, err := inspect(filepath.Join(root, e.Name()), c.timeout)
		switch {
		case errors.Is(err, bbolt.ErrTimeout):
			l.Debug("staging area is in use, skip")
			continue
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			l.Warn("could not inspect staging area, skip", zap.Error(err))
			continue
		case !ok:
			continue
		}

		s.ID = id
		res = append(res, s)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ModifiedAt.After(res[j].ModifiedAt) })
	return res, nil
}

func inspect(dir string, timeout time.Duration) (RecoverableSnapshot, bool, error) {
	m, err := openMarker(filepath.Join(dir, markerFile), true, timeout)
	if err != nil {
		return RecoverableSnapshot{}, false, err
	}

	s, dirty, err := m.state()
	if cErr := m.close(); err == nil && cErr != nil {
		err = fmt.Errorf("close session marker: %w", cErr)
	}
	if err != nil || !dirty || s.AutosaveName == "" {
		return RecoverableSnapshot{}, false, err
	}

	s.Dir = dir
	s.AutosavePath = filepath.Join(dir, s.AutosaveName)

	fi, err := os.Stat(s.AutosavePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return RecoverableSnapshot{}, false, nil
		}
		return RecoverableSnapshot{}, false, err
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		return RecoverableSnapshot{}, false, nil
	}
	s.AutosaveSize = fi.Size()
	return s, true, nil
}

// Discard removes an abandoned staging area after its snapshot was recovered
// or declined. Areas of live sessions are not removed.
func Discard(s RecoverableSnapshot, opts ...Option) error {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	m, err := openMarker(filepath.Join(s.Dir, markerFile), false, c.timeout)
	if err != nil {
		return fmt.Errorf("lock staging area: %w", err)
	}
	if err := m.close(); err != nil {
		return fmt.Errorf("close session marker: %w", err)
	}

	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("remove staging area: %w", err)
	}
	c.log.Debug("staging area discarded", zap.Stringer("id", s.ID))
	return nil
}
