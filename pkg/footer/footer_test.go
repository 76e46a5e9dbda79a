package footer

import (
	"bytes"
	"crypto/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/stretchr/testify/require"
)

func testMetadata(t testing.TB, encrypted bool) Metadata {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	m := Metadata{
		FormatVersion: "3.0.0",
		Kind:          KindCompany,
		Compression:   compression.SchemeZstd,
		Roster:        []string{"Ada Lovelace", "Grace Hopper"},
		CreatedAt:     created,
		ModifiedAt:    created.Add(time.Hour),
	}
	if !encrypted {
		return m
	}

	params, err := kdf.NewParams(kdf.Params{Iterations: 1000}, rand.Reader)
	require.NoError(t, err)
	nonce, err := encryption.NewNonce(encryption.AES256GCM, rand.Reader)
	require.NoError(t, err)

	m.Encrypted = true
	m.Encryption = Encryption{
		Cipher:    encryption.AES256GCM,
		ChunkSize: encryption.DefaultChunkSize,
		KDF:       params,
		Nonce:     nonce,
		Verifier:  bytes.Repeat([]byte{0xAB}, 32),
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		m := testMetadata(t, encrypted)
		payload := []byte("not really a payload but it does not matter here")

		file, err := Append(payload, m)
		require.NoError(t, err)

		res, resPayload, err := Read(file)
		require.NoError(t, err)
		require.Equal(t, payload, resPayload)

		require.Equal(t, SchemaCurrent, res.Schema)
		require.Equal(t, uint64(len(payload)), res.PayloadSize)
		require.Equal(t, int64(len(file)-len(payload)), res.TotalLength())

		m.Schema = SchemaCurrent
		m.PayloadSize = res.PayloadSize
		m.FooterLength = res.FooterLength
		require.Equal(t, m, res)
		require.Equal(t, m.AssociatedData(), res.AssociatedData())
	}
}

func TestEmptyPayload(t *testing.T) {
	file, err := Append(nil, testMetadata(t, false))
	require.NoError(t, err)

	m, payload, err := Read(file)
	require.NoError(t, err)
	require.Empty(t, payload)
	require.Zero(t, m.PayloadSize)
}

func TestMarshalRejectsInvalid(t *testing.T) {
	m := testMetadata(t, false)
	m.FormatVersion = "three"
	_, err := Marshal(m)
	require.Error(t, err)

	m = testMetadata(t, true)
	m.Encryption.Nonce = m.Encryption.Nonce[1:]
	_, err = Marshal(m)
	require.Error(t, err)

	m = testMetadata(t, false)
	m.Encryption.Cipher = encryption.AES256GCM
	_, err = Marshal(m)
	require.Error(t, err)
}

func TestLegacySchema(t *testing.T) {
	const body = `schema: 1
version: 1.4.2
is_encrypted: true
salt: AAECAwQFBgcICQoLDA0ODw==
iv: AAECAwQFBgcICQoL
password_hash: q6urq6urq6urq6urq6urqw==
accountants: [Ada Lovelace]
created: 2019-05-01T10:00:00Z
modified: 2019-06-01T10:00:00Z
`
	payload := bytes.Repeat([]byte{7}, 100)
	file := append(append(bytes.Clone(payload), body...), Marker(uint32(len(body)))...)

	m, resPayload, err := Read(file)
	require.NoError(t, err)
	require.Equal(t, payload, resPayload)

	require.Equal(t, SchemaLegacy, m.Schema)
	require.Equal(t, "1.4.2", m.FormatVersion)
	require.Equal(t, KindCompany, m.Kind)
	require.Equal(t, compression.SchemeDeflate, m.Compression)
	require.True(t, m.Encrypted)
	require.Equal(t, encryption.AES256GCM, m.Encryption.Cipher)
	require.EqualValues(t, encryption.DefaultChunkSize, m.Encryption.ChunkSize)
	require.Equal(t, kdf.PBKDF2SHA256, m.Encryption.KDF.Algorithm)
	require.EqualValues(t, kdf.LegacyIterations, m.Encryption.KDF.Iterations)
	require.Len(t, m.Encryption.Salt(), 16)
	require.Len(t, m.Encryption.Nonce, 12)
	require.Equal(t, []string{"Ada Lovelace"}, m.Roster)
	require.EqualValues(t, len(payload), m.PayloadSize)

	t.Run("upgrade on write", func(t *testing.T) {
		body, err := Marshal(m)
		require.NoError(t, err)

		res, err := Unmarshal(body)
		require.NoError(t, err)
		require.Equal(t, SchemaCurrent, res.Schema)
		require.Equal(t, m.Encryption, res.Encryption)
	})
}

func TestNewerSchema(t *testing.T) {
	body := "schema: 3\nformat_version: 9.0.0\nsomething_new: true\n"
	file := append([]byte(body), Marker(uint32(len(body)))...)

	_, _, err := Read(file)
	require.ErrorIs(t, err, fileerr.ErrVersionIncompatible)
}

func TestCorruptFooter(t *testing.T) {
	m := testMetadata(t, true)
	payload := []byte("payload")
	file, err := Append(payload, m)
	require.NoError(t, err)

	body := file[len(payload) : len(file)-MarkerSize]

	withBody := func(b string) []byte {
		return append(append(bytes.Clone(payload), b...), Marker(uint32(len(b)))...)
	}

	for name, data := range map[string][]byte{
		"empty":          nil,
		"short":          []byte("AFTR"),
		"no marker":      append(bytes.Clone(file[:len(file)-MarkerSize]), "XXXX\x00\x00\x00\x01"...),
		"zero length":    append(bytes.Clone(file[:len(file)-MarkerSize]), Marker(0)...),
		"length too big": append(bytes.Clone(file[:len(file)-MarkerSize]), Marker(uint32(len(file)))...),
		"over limit":     append(bytes.Clone(file[:len(file)-MarkerSize]), Marker(MaxLength+1)...),
		"truncated head": file[1:],
		"extra payload":  append([]byte{0}, file...),
		"not yaml":       withBody("{{{"),
		"no schema":      withBody("format_version: 3.0.0\n"),
		"unknown field":  withBody(string(body) + "surprise: 1\n"),
		"bad base64":     withBody(strings.Replace(string(body), "nonce: ", "nonce: '!!'", 1)),
		"bad kind":       withBody(strings.Replace(string(body), "kind: company", "kind: invoice", 1)),
		"bad scheme":     withBody(strings.Replace(string(body), "compression: zstd", "compression: lzma", 1)),
		"no encryption":  withBody(strings.Replace(string(body), "encrypted: true", "encrypted: false", 1)),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Read(data)
			require.ErrorIs(t, err, fileerr.ErrCorruptFooter)
		})
	}
}

func TestKDFLimits(t *testing.T) {
	payload := []byte("payload")

	for _, tc := range []struct {
		name     string
		params   kdf.Params
		from, to string
	}{
		{
			name:   "pbkdf2 iterations",
			params: kdf.Params{Algorithm: kdf.PBKDF2SHA256, Iterations: 1000},
			from:   "iterations: 1000\n",
			to:     "iterations: 4000000000\n",
		},
		{
			name:   "argon2id memory",
			params: kdf.Params{Algorithm: kdf.Argon2id, Iterations: 1, Memory: 1024, Threads: 1},
			from:   "memory: 1024\n",
			to:     "memory: 2147483648\n",
		},
		{
			name:   "argon2id time",
			params: kdf.Params{Algorithm: kdf.Argon2id, Iterations: 1, Memory: 1024, Threads: 1},
			from:   "iterations: 1\n",
			to:     "iterations: 100000\n",
		},
		{
			name:   "argon2id threads",
			params: kdf.Params{Algorithm: kdf.Argon2id, Iterations: 1, Memory: 1024, Threads: 1},
			from:   "threads: 1\n",
			to:     "threads: 255\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := testMetadata(t, true)
			params, err := kdf.NewParams(tc.params, rand.Reader)
			require.NoError(t, err)
			m.Encryption.KDF = params

			file, err := Append(payload, m)
			require.NoError(t, err)

			body := string(file[len(payload) : len(file)-MarkerSize])
			require.Contains(t, body, tc.from)
			body = strings.Replace(body, tc.from, tc.to, 1)
			crafted := append(append(bytes.Clone(payload), body...), Marker(uint32(len(body)))...)

			_, _, err = Read(crafted)
			require.ErrorIs(t, err, fileerr.ErrCorruptFooter)

			_, err = ReadFrom(bytes.NewReader(crafted), int64(len(crafted)))
			require.ErrorIs(t, err, fileerr.ErrCorruptFooter)
		})
	}

	m := testMetadata(t, true)
	m.Encryption.KDF.Iterations = kdf.MaxIterations + 1
	_, err := Marshal(m)
	require.Error(t, err)
}

func TestAssociatedData(t *testing.T) {
	m := testMetadata(t, true)
	ad := m.AssociatedData()

	for name, change := range map[string]func(*Metadata){
		"version":    func(m *Metadata) { m.FormatVersion = "3.0.1" },
		"kind":       func(m *Metadata) { m.Kind = KindTemplate },
		"scheme":     func(m *Metadata) { m.Compression = compression.SchemeDeflate },
		"cipher":     func(m *Metadata) { m.Encryption.Cipher = encryption.XChaCha20Poly1305 },
		"chunk":      func(m *Metadata) { m.Encryption.ChunkSize++ },
		"iterations": func(m *Metadata) { m.Encryption.KDF.Iterations++ },
		"salt":       func(m *Metadata) { m.Encryption.KDF.Salt = bytes.Repeat([]byte{1}, kdf.SaltSize) },
		"roster":     func(m *Metadata) { m.Roster = m.Roster[:1] },
		"created":    func(m *Metadata) { m.CreatedAt = m.CreatedAt.Add(time.Second) },
	} {
		c := m
		c.Roster = append([]string(nil), m.Roster...)
		change(&c)
		require.NotEqual(t, ad, c.AssociatedData(), name)
	}

	c := m
	c.PayloadSize = 12345
	c.FooterLength = 99
	require.Equal(t, ad, c.AssociatedData())
}

type countingReaderAt struct {
	r    *bytes.Reader
	read int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.r.ReadAt(p, off)
	c.read += n
	return n, err
}

func TestReadFromDoesNotTouchPayload(t *testing.T) {
	payload := make([]byte, 8<<20)
	file, err := Append(payload, testMetadata(t, true))
	require.NoError(t, err)

	r := &countingReaderAt{r: bytes.NewReader(file)}
	m, err := ReadFrom(r, int64(len(file)))
	require.NoError(t, err)
	require.EqualValues(t, len(payload), m.PayloadSize)
	require.EqualValues(t, m.TotalLength(), r.read)
}

func BenchmarkReadFrom(b *testing.B) {
	for _, size := range []int{1 << 10, 64 << 20} {
		file, err := Append(make([]byte, size), testMetadata(b, true))
		require.NoError(b, err)
		r := bytes.NewReader(file)

		b.Run(strconv.Itoa(size>>10)+"KiB", func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				if _, err := ReadFrom(r, int64(len(file))); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
