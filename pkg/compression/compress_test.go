package compression

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/stretchr/testify/require"
)

func allSchemes() []Scheme {
	return []Scheme{SchemeNone, SchemeDeflate, SchemeZstd}
}

func newConfig(t testing.TB, s Scheme) *Config {
	c := &Config{Scheme: s}
	require.NoError(t, c.Init())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestParseScheme(t *testing.T) {
	for _, s := range allSchemes() {
		parsed, err := ParseScheme(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	s, err := ParseScheme("")
	require.NoError(t, err)
	require.Equal(t, SchemeDeflate, s)

	_, err = ParseScheme("brotli")
	require.Error(t, err)
	require.Error(t, Scheme(42).Valid())
}

func TestRoundTrip(t *testing.T) {
	random := make([]byte, 100_000)
	_, _ = rand.Read(random)

	inputs := map[string][]byte{
		"empty":    {},
		"one byte": {42},
		"text":     bytes.Repeat([]byte(`{"total": 107.98}`), 1000),
		"random":   random,
	}

	for _, s := range allSchemes() {
		c := newConfig(t, s)
		for name, in := range inputs {
			t.Run(s.String()+"/"+name, func(t *testing.T) {
				compressed, err := c.Compress(in)
				require.NoError(t, err)

				res, err := c.Decompress(compressed)
				require.NoError(t, err)
				require.True(t, bytes.Equal(in, res))

				var buf bytes.Buffer
				w, err := c.Writer(&buf)
				require.NoError(t, err)
				_, err = w.Write(in)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				r, err := c.Reader(&buf)
				require.NoError(t, err)
				res, err = io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				require.True(t, bytes.Equal(in, res))
			})
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	var c Config
	require.NoError(t, c.Init())
	require.Equal(t, SchemeDeflate, c.Scheme)
	require.Error(t, (&Config{Scheme: 9}).Init())
}

func TestCorruptInput(t *testing.T) {
	data := bytes.Repeat([]byte("ledger entry "), 500)

	for _, s := range []Scheme{SchemeDeflate, SchemeZstd} {
		c := newConfig(t, s)
		compressed, err := c.Compress(data)
		require.NoError(t, err)

		t.Run(s.String()+"/truncated", func(t *testing.T) {
			_, err := c.Decompress(compressed[:len(compressed)/2])
			require.ErrorIs(t, err, fileerr.ErrCorruptData)
		})
		t.Run(s.String()+"/garbage", func(t *testing.T) {
			garbage := bytes.Repeat([]byte{0xff}, 64)
			_, err := c.Decompress(garbage)
			require.ErrorIs(t, err, fileerr.ErrCorruptData)
		})
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestSourceErrors(t *testing.T) {
	c := newConfig(t, SchemeDeflate)

	t.Run("unclassified", func(t *testing.T) {
		r, err := c.Reader(failingReader{errors.New("disk unplugged")})
		require.NoError(t, err)
		_, err = io.ReadAll(r)
		require.ErrorIs(t, err, fileerr.ErrIO)
		require.NotErrorIs(t, err, fileerr.ErrCorruptData)
	})
	t.Run("classified", func(t *testing.T) {
		r, err := c.Reader(failingReader{fileerr.New(fileerr.KindAuthentication, "tag mismatch")})
		require.NoError(t, err)
		_, err = io.ReadAll(r)
		require.ErrorIs(t, err, fileerr.ErrAuthentication)
	})
}
