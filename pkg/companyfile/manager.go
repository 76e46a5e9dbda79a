package companyfile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/migration"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Operation names used in errors, logs and metrics.
const (
	opSave           = "save"
	opOpen           = "open"
	opVerifyPassword = "verify password"
	opInfo           = "info"
	opBackup         = "backup"
	opRestore        = "restore"
)

// Serializer converts company snapshots to archive entries and back. The
// contents of entries are opaque to the Manager.
type Serializer[S any] interface {
	Serialize(S) ([]archive.Entry, error)
	Deserialize([]archive.Entry) (S, error)
}

// RawSerializer passes entries as is. It is useful for tools working with
// files of any schema.
type RawSerializer struct{}

// Serialize implements Serializer.
func (RawSerializer) Serialize(e []archive.Entry) ([]archive.Entry, error) { return e, nil }

// Deserialize implements Serializer.
func (RawSerializer) Deserialize(e []archive.Entry) ([]archive.Entry, error) { return e, nil }

// cachedInfo is a footer of the file of the given size and modification
// time.
type cachedInfo struct {
	size    int64
	modTime int64
	meta    footer.Metadata
}

// Manager saves and opens company files. All methods are safe for
// concurrent use.
type Manager[S any] struct {
	*cfg

	ser    Serializer[S]
	locks  *pathLocker
	writer atomicWriter
	info   *lru.Cache[string, cachedInfo]
}

// New creates Manager converting snapshots with ser.
func New[S any](ser Serializer[S], opts ...Option) (*Manager[S], error) {
	if ser == nil {
		return nil, errors.New("missing serializer")
	}

	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	if c.migrations == nil {
		c.migrations = migration.MustNew(DefaultSchema)
	}
	if _, err := encryption.NonceSize(c.cipher); err != nil {
		return nil, err
	}
	if c.chunkSize > encryption.MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds %d", c.chunkSize, encryption.MaxChunkSize)
	}
	if _, err := kdf.NewParams(c.kdf, zeroReader{}); err != nil {
		return nil, err
	}
	if err := c.compression.Init(); err != nil {
		return nil, fmt.Errorf("init compression: %w", err)
	}

	info, err := lru.New[string, cachedInfo](c.infoCacheSize)
	if err != nil {
		_ = c.compression.Close()
		return nil, fmt.Errorf("init footer cache: %w", err)
	}

	return &Manager[S]{
		cfg:    c,
		ser:    ser,
		locks:  newPathLocker(),
		writer: atomicWriter{perm: c.perm, noSync: c.noSync},
		info:   info,
	}, nil
}

// Close releases compression resources. The worker pool is owned by the
// caller and is not released.
func (m *Manager[S]) Close() error {
	return m.compression.Close()
}

// Schema returns the schema files are migrated to on open and written with
// on save.
func (m *Manager[S]) Schema() uint32 {
	return m.migrations.Current()
}

// finish annotates the error of an operation and records metrics. It is
// deferred with a pointer to the named error result.
func (m *Manager[S]) finish(op, path string, start time.Time, err *error) {
	m.metrics.AddOperationDuration(op, time.Since(start))
	if *err == nil {
		return
	}

	*err = fileerr.WithOp(op, path, *err)
	kind := fileerr.KindOf(*err)
	m.metrics.IncFailures(op, kind.String())

	if kind == fileerr.KindRestoreFailed {
		return // logged with details where it happened
	}
	m.log.Debug("company file operation failed",
		zap.String("op", op), zap.String("path", path), zap.Stringer("kind", kind), zap.Error(*err))
}

// Info returns the footer of the file without reading the payload or
// requiring the password. Results are cached until the file changes and
// must not be modified.
func (m *Manager[S]) Info(path string) (_ footer.Metadata, err error) {
	defer m.finish(opInfo, path, time.Now(), &err)
	return m.cachedFooter(path)
}

func (m *Manager[S]) cachedFooter(path string) (footer.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return footer.Metadata{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return footer.Metadata{}, err
	}

	key := lockKey(path)
	if c, ok := m.info.Get(key); ok && c.size == fi.Size() && c.modTime == fi.ModTime().UnixNano() {
		return c.meta, nil
	}

	meta, err := footer.ReadFrom(f, fi.Size())
	if err != nil {
		return footer.Metadata{}, err
	}
	m.info.Add(key, cachedInfo{size: fi.Size(), modTime: fi.ModTime().UnixNano(), meta: meta})
	return meta, nil
}

// forget drops the cached footer of the file replaced by the Manager. Size
// and modification time may stay the same after a quick rewrite.
func (m *Manager[S]) forget(path string) {
	m.info.Remove(lockKey(path))
}

// VerifyPassword checks the password against the verifier stored in the
// footer without decrypting the payload. Comparison is exact and case
// sensitive. For unencrypted files only the empty password is correct.
func (m *Manager[S]) VerifyPassword(path string, password []byte) (_ bool, err error) {
	defer m.finish(opVerifyPassword, path, time.Now(), &err)

	meta, err := m.cachedFooter(path)
	if err != nil {
		return false, err
	}
	if !meta.Encrypted {
		return len(password) == 0, nil
	}

	keys, err := unlockKeys(meta, password)
	if err != nil {
		if errors.Is(err, fileerr.ErrInvalidPassword) {
			return false, nil
		}
		return false, err
	}
	keys.Zero()
	return true, nil
}

// unlockKeys derives keys of the encrypted file and checks them against the
// stored verifier. Zero keys are returned for unencrypted files regardless
// of the password.
func unlockKeys(meta footer.Metadata, password []byte) (kdf.Keys, error) {
	if !meta.Encrypted {
		return kdf.Keys{}, nil
	}
	if len(password) == 0 {
		return kdf.Keys{}, fileerr.New(fileerr.KindInvalidPassword, "password required")
	}

	keys, err := kdf.DeriveKeys(password, meta.Encryption.KDF)
	if err != nil {
		return kdf.Keys{}, fileerr.Wrap(fileerr.KindCorruptFooter, fmt.Errorf("derive keys: %w", err))
	}
	if !keys.Check(meta.Encryption.Verifier) {
		keys.Zero()
		return kdf.Keys{}, fileerr.New(fileerr.KindInvalidPassword, "password verifier mismatch")
	}
	return keys, nil
}

func encryptionParams(meta footer.Metadata, keys kdf.Keys) encryption.Params {
	return encryption.Params{
		Cipher:         meta.Encryption.Cipher,
		Key:            keys.Encryption,
		Nonce:          meta.Encryption.Nonce,
		AssociatedData: meta.AssociatedData(),
		ChunkSize:      int(meta.Encryption.ChunkSize),
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
