package kdf

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// fast parameters so the suite stays quick
func testParams(t *testing.T, alg Algorithm) Params {
	tmpl := Params{Algorithm: alg, Iterations: 1000}
	if alg == Argon2id {
		tmpl = Params{Algorithm: alg, Iterations: 1, Memory: 1024, Threads: 1}
	}
	p, err := NewParams(tmpl, rand.Reader)
	require.NoError(t, err)
	return p
}

func TestNewParams(t *testing.T) {
	p, err := NewParams(Params{}, rand.Reader)
	require.NoError(t, err)
	require.Equal(t, PBKDF2SHA256, p.Algorithm)
	require.EqualValues(t, DefaultIterations, p.Iterations)
	require.Len(t, p.Salt, SaltSize)
	require.NoError(t, p.Validate())

	p2, err := NewParams(Params{}, rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, p.Salt, p2.Salt)

	a, err := NewParams(Params{Algorithm: Argon2id}, rand.Reader)
	require.NoError(t, err)
	require.EqualValues(t, DefaultArgonTime, a.Iterations)
	require.EqualValues(t, DefaultArgonMemory, a.Memory)
	require.EqualValues(t, DefaultArgonThreads, a.Threads)

	_, err = NewParams(Params{Algorithm: "md5"}, rand.Reader)
	require.Error(t, err)

	_, err = NewParams(Params{}, bytes.NewReader(nil))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	p := testParams(t, PBKDF2SHA256)

	short := p
	short.Salt = p.Salt[:8]
	require.Error(t, short.Validate())

	zero := p
	zero.Iterations = 0
	require.Error(t, zero.Validate())

	argon := testParams(t, Argon2id)
	argon.Threads = 0
	require.Error(t, argon.Validate())

	for name, change := range map[string]func(*Params){
		"pbkdf2 iterations": func(p *Params) { p.Iterations = MaxIterations + 1 },
		"argon2id time":     func(p *Params) { p.Algorithm, p.Memory, p.Threads, p.Iterations = Argon2id, 1024, 1, MaxArgonTime + 1 },
		"argon2id memory":   func(p *Params) { p.Algorithm, p.Memory, p.Threads, p.Iterations = Argon2id, 1 << 31, 1, 1 },
		"argon2id threads":  func(p *Params) { p.Algorithm, p.Memory, p.Threads, p.Iterations = Argon2id, 1024, MaxArgonThreads + 1, 1 },
	} {
		t.Run(name, func(t *testing.T) {
			bad := p
			change(&bad)
			require.Error(t, bad.Validate())

			_, err := Derive([]byte("password"), bad)
			require.Error(t, err)
		})
	}

	_, err := NewParams(Params{Iterations: MaxIterations + 1}, rand.Reader)
	require.Error(t, err)

	limit := p
	limit.Iterations = MaxIterations
	require.NoError(t, limit.Validate())
}

func TestDerive(t *testing.T) {
	for _, alg := range []Algorithm{PBKDF2SHA256, Argon2id} {
		t.Run(string(alg), func(t *testing.T) {
			p := testParams(t, alg)

			k1, err := Derive([]byte("Sesame123!"), p)
			require.NoError(t, err)
			require.Len(t, k1, KeySize)

			k2, err := Derive([]byte("Sesame123!"), p)
			require.NoError(t, err)
			require.Equal(t, k1, k2, "derivation must be deterministic")

			k3, err := Derive([]byte("sesame123!"), p)
			require.NoError(t, err)
			require.NotEqual(t, k1, k3)

			other := testParams(t, alg)
			k4, err := Derive([]byte("Sesame123!"), other)
			require.NoError(t, err)
			require.NotEqual(t, k1, k4, "salt must affect the key")

			_, err = Derive(nil, p)
			require.ErrorIs(t, err, ErrEmptyPassword)
		})
	}
}

func TestKeys(t *testing.T) {
	p := testParams(t, PBKDF2SHA256)

	keys, err := DeriveKeys([]byte("Sesame123!"), p)
	require.NoError(t, err)
	require.NotEqual(t, keys.Encryption, keys.Verification)

	verifier := keys.Verifier()
	require.True(t, keys.Check(verifier))
	require.NotEqual(t, keys.Encryption, verifier)

	wrong, err := DeriveKeys([]byte("sesame123!"), p)
	require.NoError(t, err)
	require.False(t, wrong.Check(verifier))

	keys.Zero()
	require.Equal(t, make([]byte, KeySize), keys.Encryption)
	require.Equal(t, make([]byte, KeySize), keys.Verification)
}
