package companyfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/migration"
	"github.com/argo-books/argo-core/pkg/util"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// backupTimeFormat is used in names of pre-migration backups.
const backupTimeFormat = "20060102T150405.000000000Z"

type backupInfo struct {
	path string
	size int64
	hash uint64
}

// migrate runs the migration plan of f over its entries. A byte-identical
// copy of the file is made before the first step and kept afterwards. If a
// step fails, the original file is verified against the copy and restored
// from it when it differs. Failure to restore is reported as
// fileerr.ErrRestoreFailed.
func (m *Manager[S]) migrate(ctx context.Context, path string, f *openedFile, entries []archive.Entry) ([]archive.Entry, error) {
	l := m.log.With(
		zap.String("path", path),
		zap.Uint32("from", f.schema),
		zap.Uint32("to", m.migrations.Current()))

	backup, err := m.backup(ctx, path, f)
	if err != nil {
		return nil, fmt.Errorf("pre-migration backup: %w", err)
	}
	l = l.With(zap.String("backup", backup.path))
	l.Info("migrating company file")

	res, err := migration.Run(ctx, f.plan, entries)
	if err == nil {
		m.metrics.IncMigrations(f.schema)
		l.Info("company file migrated")
		return res, nil
	}

	m.metrics.IncRollbacks()

	restored, rErr := m.rollback(path, backup)
	if rErr != nil {
		l.Error("could not restore company file from pre-migration backup, data may be lost",
			zap.NamedError("migration_error", err), zap.Error(rErr))
		return nil, fileerr.Newf(fileerr.KindRestoreFailed,
			"%w; restore from backup %s: %w", err, backup.path, rErr)
	}

	l.Warn("migration failed, company file rolled back", zap.Bool("restored", restored), zap.Error(err))
	return nil, err
}

// backup copies the opened file to the backup directory and verifies the
// copy. An existing backup of the same schema with identical contents is
// reused, so reopening a file which was never saved does not pile up copies.
func (m *Manager[S]) backup(ctx context.Context, path string, f *openedFile) (backupInfo, error) {
	dir := m.backupDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := util.MkdirAllX(dir, 0o700); err != nil {
		return backupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}

	h := xxhash.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, f.size)); err != nil {
		return backupInfo{}, fmt.Errorf("hash original: %w", err)
	}
	prefix := fmt.Sprintf("%s.v%d-", filepath.Base(path), f.schema)
	b := backupInfo{size: f.size, hash: h.Sum64()}

	if p, ok := findBackup(dir, prefix, b); ok {
		m.log.Debug("reusing pre-migration backup", zap.String("path", path), zap.String("backup", p))
		b.path = p
		return b, nil
	}

	b.path = filepath.Join(dir, prefix+m.now().UTC().Format(backupTimeFormat)+".bak")
	err := m.writer.write(ctx, b.path, func(w io.Writer) error {
		_, err := io.Copy(w, io.NewSectionReader(f, 0, f.size))
		return err
	})
	if err != nil {
		return backupInfo{}, err
	}

	sum, size, err := hashFile(b.path)
	if err != nil {
		return backupInfo{}, fmt.Errorf("verify backup: %w", err)
	}
	if sum != b.hash || size != b.size {
		return backupInfo{}, fileerr.Newf(fileerr.KindIO, "backup %s differs from the original", b.path)
	}
	return b, nil
}

// findBackup looks for a backup in dir named with prefix whose contents match
// b. Unreadable candidates are skipped.
func findBackup(dir, prefix string, b backupInfo) (string, bool) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, de := range des {
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".bak") {
			continue
		}
		if fi, err := de.Info(); err != nil || fi.Size() != b.size {
			continue
		}
		p := filepath.Join(dir, name)
		if sum, size, err := hashFile(p); err == nil && sum == b.hash && size == b.size {
			return p, true
		}
	}
	return "", false
}

// rollback makes sure the file at path is identical to the backup. Reports
// whether the file had to be restored.
func (m *Manager[S]) rollback(path string, b backupInfo) (bool, error) {
	sum, size, err := hashFile(path)
	if err == nil && sum == b.hash && size == b.size {
		return false, nil
	}

	_, err = m.writer.copyFile(context.Background(), b.path, path)
	m.forget(path)
	if err != nil {
		return true, err
	}

	sum, size, err = hashFile(path)
	if err != nil {
		return true, fmt.Errorf("verify restored file: %w", err)
	}
	if sum != b.hash || size != b.size {
		return true, errors.New("restored file differs from the backup")
	}
	return true, nil
}

func hashFile(path string) (uint64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, err
	}
	return h.Sum64(), n, nil
}
