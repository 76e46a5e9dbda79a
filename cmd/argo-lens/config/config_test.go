package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/argo-books/argo-core/cmd/argo-lens/config"
	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

const examplePath = "example/argo-lens.yaml"

func fromFile(t *testing.T, path string) *config.Config {
	c, err := config.New(config.WithConfigFile(path))
	require.NoError(t, err)
	return c
}

func emptyConfig(t *testing.T) *config.Config {
	c, err := config.New()
	require.NoError(t, err)
	return c
}

func TestCodecSection(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := config.CodecSection(emptyConfig(t))
		require.NoError(t, err)
		require.Equal(t, config.Codec{
			Compression: compression.SchemeDeflate,
			Cipher:      encryption.AES256GCM,
			KDF:         kdf.Params{Algorithm: kdf.PBKDF2SHA256},
		}, c)
	})

	exp := config.Codec{
		Compression:      compression.SchemeZstd,
		CompressionLevel: 3,
		Cipher:           encryption.XChaCha20Poly1305,
		ChunkSize:        131072,
		KDF:              kdf.Params{Algorithm: kdf.Argon2id, Iterations: 4, Memory: 65536, Threads: 2},
	}

	t.Run("file", func(t *testing.T) {
		c, err := config.CodecSection(fromFile(t, examplePath))
		require.NoError(t, err)
		require.Equal(t, exp, c)
	})

	t.Run("ENV", func(t *testing.T) {
		t.Setenv("ARGO_CODEC_COMPRESSION", "none")
		t.Setenv("ARGO_CODEC_KDF_ITERATIONS", "7")

		c, err := config.CodecSection(fromFile(t, examplePath))
		require.NoError(t, err)

		exp := exp
		exp.Compression = compression.SchemeNone
		exp.KDF.Iterations = 7
		require.Equal(t, exp, c)
	})

	t.Run("invalid", func(t *testing.T) {
		for k, v := range map[string]string{
			"ARGO_CODEC_COMPRESSION":    "lzma",
			"ARGO_CODEC_CIPHER":         "rot13",
			"ARGO_CODEC_CHUNK_SIZE":     "-1",
			"ARGO_CODEC_KDF_ALGORITHM":  "md5",
			"ARGO_CODEC_KDF_THREADS":    "1000",
			"ARGO_CODEC_KDF_ITERATIONS": "many",
		} {
			t.Run(k, func(t *testing.T) {
				t.Setenv(k, v)
				_, err := config.CodecSection(emptyConfig(t))
				require.Error(t, err)
			})
		}

		t.Run("pbkdf2 cost", func(t *testing.T) {
			t.Setenv("ARGO_CODEC_KDF_ITERATIONS", "100000000")
			_, err := config.CodecSection(emptyConfig(t))
			require.Error(t, err)
		})

		t.Run("argon2id memory", func(t *testing.T) {
			t.Setenv("ARGO_CODEC_KDF_ALGORITHM", "argon2id")
			t.Setenv("ARGO_CODEC_KDF_MEMORY", "4294967295")
			_, err := config.CodecSection(emptyConfig(t))
			require.Error(t, err)
		})
	})
}

func TestPathsSection(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	t.Run("defaults", func(t *testing.T) {
		p, err := config.PathsSection(emptyConfig(t))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, ".argo", "staging"), p.Staging)
		require.Empty(t, p.Backups)

		mt, err := config.MetricsTextfile(emptyConfig(t))
		require.NoError(t, err)
		require.Empty(t, mt)
	})

	t.Run("file", func(t *testing.T) {
		c := fromFile(t, examplePath)

		p, err := config.PathsSection(c)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, "argo", "staging"), p.Staging)
		require.Equal(t, "/var/backups/argo", p.Backups)

		mt, err := config.MetricsTextfile(c)
		require.NoError(t, err)
		require.Equal(t, "/var/lib/node_exporter/argo.prom", mt)
	})

	t.Run("ENV", func(t *testing.T) {
		t.Setenv("ARGO_PATHS_BACKUPS", "~/bak")

		p, err := config.PathsSection(fromFile(t, examplePath))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, "bak"), p.Backups)
	})
}

func TestNew(t *testing.T) {
	_, err := config.New(config.WithConfigFile("example/missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(p, []byte("codec: [\n"), 0o600))
	_, err = config.New(config.WithConfigFile(p))
	require.Error(t, err)

	c := fromFile(t, examplePath)
	require.True(t, c.IsSet("logger.level"))
	require.Equal(t, "debug", config.StringSafe(c, "logger.level"))
	require.Equal(t, "json", c.Viper().GetString("logger.format"))
}
