package companyfile

import (
	"crypto/rand"
	"io"
	"io/fs"
	"time"

	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/migration"
	"github.com/argo-books/argo-core/pkg/staging"
	"github.com/argo-books/argo-core/pkg/util"
	"go.uber.org/zap"
)

// DefaultSchema is the company file schema of this release.
const DefaultSchema = 1

// Metrics collects metrics of Manager operations.
type Metrics interface {
	AddOperationDuration(op string, d time.Duration)
	IncFailures(op string, kind string)
	ObserveFileSize(op string, size int64)
	IncMigrations(from uint32)
	IncRollbacks()
}

type noopMetrics struct{}

func (noopMetrics) AddOperationDuration(string, time.Duration) {}
func (noopMetrics) IncFailures(string, string) {}
func (noopMetrics) ObserveFileSize(string, int64) {}
func (noopMetrics) IncMigrations(uint32) {}
func (noopMetrics) IncRollbacks() {}

type cfg struct {
	log     *zap.Logger
	metrics Metrics

	kdf         kdf.Params
	compression compression.Config
	cipher      encryption.Cipher
	chunkSize   uint32

	migrations *migration.Engine
	backupDir  string

	perm   fs.FileMode
	noSync bool

	now  func() time.Time
	rand io.Reader
	pool util.WorkerPool

	infoCacheSize int
	stagingOpts   []staging.Option
}

// Option represents Manager configuration option.
type Option func(*cfg)

func defaultCfg() *cfg {
	return &cfg{
		log:           zap.NewNop(),
		metrics:       noopMetrics{},
		kdf:           kdf.DefaultParams(),
		compression:   compression.Config{Scheme: compression.SchemeDeflate},
		cipher:        encryption.AES256GCM,
		chunkSize:     encryption.DefaultChunkSize,
		perm:          0o600,
		now:           time.Now,
		rand:          rand.Reader,
		infoCacheSize: 64,
	}
}

// WithLogger sets logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithMetrics sets metrics collector.
func WithMetrics(m Metrics) Option {
	return func(c *cfg) {
		c.metrics = m
	}
}

// WithKDF sets key derivation parameters of new encrypted files. The salt is
// generated on every save and ignored here. Empty fields take defaults of
// the algorithm.
func WithKDF(p kdf.Params) Option {
	return func(c *cfg) {
		p.Salt = nil
		c.kdf = p
	}
}

// WithCompression sets compression of new files. Zero level means the
// default of the scheme.
func WithCompression(s compression.Scheme, level int) Option {
	return func(c *cfg) {
		c.compression = compression.Config{Scheme: s, Level: level}
	}
}

// WithCipher sets AEAD of new encrypted files.
func WithCipher(v encryption.Cipher) Option {
	return func(c *cfg) {
		c.cipher = v
	}
}

// WithChunkSize sets plaintext chunk size of new encrypted files.
func WithChunkSize(sz uint32) Option {
	return func(c *cfg) {
		if sz > 0 {
			c.chunkSize = sz
		}
	}
}

// WithMigrations sets migration engine. By default files of DefaultSchema
// only are accepted.
func WithMigrations(e *migration.Engine) Option {
	return func(c *cfg) {
		c.migrations = e
	}
}

// WithBackupDir sets directory of pre-migration backups. By default backups
// are placed next to the migrated file.
func WithBackupDir(dir string) Option {
	return func(c *cfg) {
		c.backupDir = dir
	}
}

// WithPermissions sets permissions of written files.
func WithPermissions(perm fs.FileMode) Option {
	return func(c *cfg) {
		c.perm = perm
	}
}

// WithNoSync disables fsync of written files. Unsafe, for tests only.
func WithNoSync(noSync bool) Option {
	return func(c *cfg) {
		c.noSync = noSync
	}
}

// WithClock sets time source of footer timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *cfg) {
		c.now = now
	}
}

// WithRandom sets source of salts and nonces.
func WithRandom(r io.Reader) Option {
	return func(c *cfg) {
		c.rand = r
	}
}

// WithWorkerPool sets pool executing asynchronous saves. By default saves
// submitted by SaveCompanyAsync run in a new goroutine each.
func WithWorkerPool(p util.WorkerPool) Option {
	return func(c *cfg) {
		c.pool = p
	}
}

// WithInfoCacheSize sets the number of cached file footers.
func WithInfoCacheSize(n int) Option {
	return func(c *cfg) {
		if n > 0 {
			c.infoCacheSize = n
		}
	}
}

// WithStagingOptions sets options of staging areas acquired by the Manager.
func WithStagingOptions(opts ...staging.Option) Option {
	return func(c *cfg) {
		c.stagingOpts = opts
	}
}

// SaveOption represents optional parameter of a single save.
type SaveOption func(*saveCfg)

type saveCfg struct {
	roster  []string
	kind    footer.Kind
	created time.Time
}

// WithRoster sets display names stored unencrypted in the footer, e.g.
// accountants assigned to the company.
func WithRoster(names ...string) SaveOption {
	return func(c *saveCfg) {
		c.roster = names
	}
}

// WithCreatedAt overrides the creation time of the file. By default creation
// time of the replaced file is kept.
func WithCreatedAt(t time.Time) SaveOption {
	return func(c *saveCfg) {
		c.created = t
	}
}

// WithKind overrides the file kind which is derived from the file extension
// by default.
func WithKind(k footer.Kind) SaveOption {
	return func(c *saveCfg) {
		c.kind = k
	}
}
