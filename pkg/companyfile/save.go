package companyfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/migration"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"go.uber.org/zap"
)

// SaveCompany writes the snapshot to path, encrypted if password is not
// empty. Fresh salt and nonce are generated on every encrypting save. The
// existing file is replaced atomically and only if the whole new file has
// been written and synced. Cancellation of ctx is observed before the
// replacement only. Concurrent saves of the same path are serialized.
func (m *Manager[S]) SaveCompany(ctx context.Context, snapshot S, path string, password []byte, opts ...SaveOption) (err error) {
	defer m.finish(opSave, path, time.Now(), &err)

	entries, err := m.ser.Serialize(snapshot)
	if err != nil {
		return fileerr.Wrap(fileerr.KindInvalidEntry, fmt.Errorf("serialize company: %w", err))
	}

	return m.saveEntries(ctx, entries, path, password, opts)
}

// SaveCompanyAsync submits SaveCompany to the worker pool and returns
// immediately. done is called with the result of the save. The snapshot must
// not be modified until done is called.
func (m *Manager[S]) SaveCompanyAsync(ctx context.Context, snapshot S, path string, password []byte, done func(error), opts ...SaveOption) error {
	task := func() {
		err := m.SaveCompany(ctx, snapshot, path, password, opts...)
		if done != nil {
			done(err)
		}
	}

	if m.pool == nil {
		go task()
		return nil
	}
	if err := m.pool.Submit(task); err != nil {
		return fmt.Errorf("submit save of %s: %w", path, err)
	}
	return nil
}

func (m *Manager[S]) saveEntries(ctx context.Context, entries []archive.Entry, path string, password []byte, opts []SaveOption) error {
	var sc saveCfg
	for i := range opts {
		opts[i](&sc)
	}
	if sc.kind == "" {
		sc.kind = KindOfPath(path)
	}

	unlock, err := m.locks.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := m.now().UTC()
	meta := footer.Metadata{
		FormatVersion: migration.FormatVersion(m.migrations.Current()),
		Kind:          sc.kind,
		Compression:   m.compression.Scheme,
		Roster:        sc.roster,
		CreatedAt:     sc.created.UTC(),
		ModifiedAt:    now,
	}
	if sc.created.IsZero() {
		meta.CreatedAt = m.createdAt(path, now)
	}

	var keys kdf.Keys
	if len(password) > 0 {
		if keys, err = m.seal(&meta, password); err != nil {
			return err
		}
		defer keys.Zero()
	}

	var size int64
	err = m.writer.write(ctx, path, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		if err := m.writePayload(cw, entries, meta, keys); err != nil {
			return err
		}

		meta.PayloadSize = uint64(cw.n)
		n, err := footer.Write(w, meta)
		size = cw.n + int64(n)
		return err
	})
	m.forget(path)
	if err != nil {
		return err
	}

	m.metrics.ObserveFileSize(opSave, size)
	m.log.Debug("company file saved",
		zap.String("path", path),
		zap.Int("entries", len(entries)),
		zap.Int64("size", size),
		zap.Bool("encrypted", meta.Encrypted))
	return nil
}

// createdAt returns creation time of the existing file or now.
func (m *Manager[S]) createdAt(path string, now time.Time) time.Time {
	meta, err := m.cachedFooter(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Debug("could not read footer of the replaced file", zap.String("path", path), zap.Error(err))
		}
		return now
	}
	return meta.CreatedAt
}

// seal fills encryption parameters of meta and derives keys.
func (m *Manager[S]) seal(meta *footer.Metadata, password []byte) (kdf.Keys, error) {
	params, err := kdf.NewParams(m.kdf, m.rand)
	if err != nil {
		return kdf.Keys{}, err
	}
	nonce, err := encryption.NewNonce(m.cipher, m.rand)
	if err != nil {
		return kdf.Keys{}, err
	}
	keys, err := kdf.DeriveKeys(password, params)
	if err != nil {
		return kdf.Keys{}, fmt.Errorf("derive keys: %w", err)
	}

	meta.Encrypted = true
	meta.Encryption = footer.Encryption{
		Cipher:    m.cipher,
		ChunkSize: m.chunkSize,
		KDF:       params,
		Nonce:     nonce,
		Verifier:  keys.Verifier(),
	}
	return keys, nil
}

// writePayload writes archived, compressed and, if meta says so, encrypted
// entries to w.
func (m *Manager[S]) writePayload(w io.Writer, entries []archive.Entry, meta footer.Metadata, keys kdf.Keys) error {
	var (
		dst = w
		enc io.WriteCloser
		err error
	)
	if meta.Encrypted {
		if enc, err = encryption.NewWriter(w, encryptionParams(meta, keys)); err != nil {
			return err
		}
		dst = enc
	}

	cmp, err := m.compression.Writer(dst)
	if err != nil {
		return err
	}

	aw := archive.NewWriter(cmp)
	for i := range entries {
		if err = aw.Add(entries[i]); err != nil {
			break
		}
	}
	if err == nil {
		err = aw.Close()
	}
	if cErr := cmp.Close(); err == nil && cErr != nil {
		err = fmt.Errorf("finish compression: %w", cErr)
	}
	if err == nil && enc != nil {
		if err = enc.Close(); err != nil {
			err = fmt.Errorf("finish encryption: %w", err)
		}
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
