package companyfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/migration"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

// OpenCompany reads the snapshot from path. The footer is checked first:
// files without a migration path to the current schema fail with
// fileerr.ErrVersionIncompatible and wrong or missing passwords of
// encrypted files fail with fileerr.ErrInvalidPassword before the payload is
// read. Entries of older schemas are migrated, see Manager.migrate. The
// file itself is never modified, so an older file is migrated again on every
// open until it is saved; its pre-migration backup is made once and reused.
// Password of an unencrypted file is ignored.
func (m *Manager[S]) OpenCompany(ctx context.Context, path string, password []byte) (_ S, err error) {
	defer m.finish(opOpen, path, time.Now(), &err)

	var zero S

	entries, err := m.openEntries(ctx, path, password)
	if err != nil {
		return zero, err
	}
	if err = ctx.Err(); err != nil {
		return zero, err
	}

	res, err := m.ser.Deserialize(entries)
	if err != nil {
		return zero, fileerr.Wrap(fileerr.KindCorruptArchive, fmt.Errorf("deserialize company: %w", err))
	}
	return res, nil
}

// openedFile is a company file with decoded footer.
type openedFile struct {
	*os.File
	size   int64
	meta   footer.Metadata
	schema uint32
	plan   []migration.Step
}

func (m *Manager[S]) openFile(path string) (*openedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	of, err := m.inspect(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return of, nil
}

func (m *Manager[S]) inspect(f *os.File) (*openedFile, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	meta, err := footer.ReadFrom(f, fi.Size())
	if err != nil {
		return nil, err
	}

	schema, err := migration.ParseVersion(meta.FormatVersion)
	if err != nil {
		return nil, err
	}

	var plan []migration.Step
	if meta.Kind != footer.KindBackup {
		if plan, err = m.migrations.Plan(schema); err != nil {
			return nil, err
		}
	} else if schema > m.migrations.Current() {
		return nil, fileerr.Newf(fileerr.KindVersionIncompatible,
			"backup schema %d is newer than supported %d", schema, m.migrations.Current())
	}

	return &openedFile{File: f, size: fi.Size(), meta: meta, schema: schema, plan: plan}, nil
}

func (m *Manager[S]) openEntries(ctx context.Context, path string, password []byte) ([]archive.Entry, error) {
	f, err := m.openFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	if len(f.plan) > 0 {
		// file must not be replaced between the backup and the rollback
		unlock, err := m.locks.lock(ctx, path)
		if err != nil {
			return nil, err
		}
		defer unlock()

		_ = f.Close()
		if f, err = m.openFile(path); err != nil {
			return nil, err
		}
	}

	entries, err := m.readEntries(ctx, f, password)
	if err != nil {
		return nil, err
	}
	if len(f.plan) == 0 {
		return entries, nil
	}
	return m.migrate(ctx, path, f, entries)
}

// readEntries checks the password and decodes the payload.
func (m *Manager[S]) readEntries(ctx context.Context, f *openedFile, password []byte) ([]archive.Entry, error) {
	keys, err := unlockKeys(f.meta, password)
	if err != nil {
		return nil, err
	}
	defer keys.Zero()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := readPayload(ctx, f, f.meta, keys)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveFileSize(opOpen, f.size)
	return entries, nil
}

// readPayload decodes entries from the payload of r described by meta.
func readPayload(ctx context.Context, r io.ReaderAt, meta footer.Metadata, keys kdf.Keys) ([]archive.Entry, error) {
	var src io.Reader = ctxReader{ctx: ctx, r: io.NewSectionReader(r, 0, int64(meta.PayloadSize))}

	if meta.Encrypted {
		dec, err := encryption.NewReader(src, encryptionParams(meta, keys))
		if err != nil {
			return nil, fileerr.Wrap(fileerr.KindCorruptFooter, err)
		}
		src = dec
	}

	c := compression.Config{Scheme: meta.Compression}
	cr, err := c.Reader(src)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	entries, err := archive.NewReader(cr).ReadAll()
	if err != nil {
		return nil, err
	}

	// authenticate whatever the decompressor did not need
	if _, err := io.Copy(io.Discard, src); err != nil {
		return nil, fileerr.Wrap(fileerr.KindIO, err)
	}
	return entries, nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
