package footer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/kdf"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"gopkg.in/yaml.v3"
)

// Footer schema numbers.
const (
	// SchemaLegacy is the loosely-typed footer of early releases. It is
	// readable and upgraded to the current schema on decode.
	SchemaLegacy = 1
	// SchemaCurrent is written by Marshal.
	SchemaCurrent = 2
)

type schemaProbe struct {
	Schema int `yaml:"schema"`
}

type wireV2 struct {
	Schema        int             `yaml:"schema"`
	FormatVersion string          `yaml:"format_version"`
	Kind          string          `yaml:"kind"`
	Compression   string          `yaml:"compression"`
	Encrypted     bool            `yaml:"encrypted"`
	Encryption    *wireEncryption `yaml:"encryption,omitempty"`
	Roster        []string        `yaml:"roster,flow,omitempty"`
	CreatedAt     time.Time       `yaml:"created_at"`
	ModifiedAt    time.Time       `yaml:"modified_at"`
	PayloadSize   uint64          `yaml:"payload_size"`
}

type wireEncryption struct {
	Cipher     string `yaml:"cipher"`
	ChunkSize  uint32 `yaml:"chunk_size"`
	KDF        string `yaml:"kdf"`
	Iterations uint32 `yaml:"iterations"`
	Memory     uint32 `yaml:"memory,omitempty"`
	Threads    uint8  `yaml:"threads,omitempty"`
	Salt       string `yaml:"salt"`
	Nonce      string `yaml:"nonce"`
	Verifier   string `yaml:"verifier"`
}

// wireV1 is the legacy footer bag.
type wireV1 struct {
	Schema       int       `yaml:"schema"`
	Version      string    `yaml:"version"`
	IsEncrypted  bool      `yaml:"is_encrypted"`
	Salt         string    `yaml:"salt,omitempty"`
	IV           string    `yaml:"iv,omitempty"`
	PasswordHash string    `yaml:"password_hash,omitempty"`
	Accountants  []string  `yaml:"accountants,omitempty"`
	Created      time.Time `yaml:"created"`
	Modified     time.Time `yaml:"modified"`
}

var b64 = base64.StdEncoding

// Marshal serializes m into a footer body of the current schema.
func Marshal(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid footer: %w", err)
	}

	w := wireV2{
		Schema:        SchemaCurrent,
		FormatVersion: m.FormatVersion,
		Kind:          string(m.Kind),
		Compression:   m.Compression.String(),
		Encrypted:     m.Encrypted,
		Roster:        m.Roster,
		CreatedAt:     m.CreatedAt.UTC(),
		ModifiedAt:    m.ModifiedAt.UTC(),
		PayloadSize:   m.PayloadSize,
	}
	if m.Encrypted {
		e := m.Encryption
		w.Encryption = &wireEncryption{
			Cipher:     string(e.Cipher),
			ChunkSize:  e.ChunkSize,
			KDF:        string(e.KDF.Algorithm),
			Iterations: e.KDF.Iterations,
			Memory:     e.KDF.Memory,
			Threads:    e.KDF.Threads,
			Salt:       b64.EncodeToString(e.KDF.Salt),
			Nonce:      b64.EncodeToString(e.Nonce),
			Verifier:   b64.EncodeToString(e.Verifier),
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("encode footer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode footer: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeStrict(body []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// Unmarshal decodes a footer body of any supported schema. Bodies of a newer
// schema fail with fileerr.ErrVersionIncompatible, every other problem with
// fileerr.ErrCorruptFooter.
func Unmarshal(body []byte) (Metadata, error) {
	var probe schemaProbe
	if err := yaml.Unmarshal(body, &probe); err != nil {
		return Metadata{}, fileerr.Newf(fileerr.KindCorruptFooter, "decode footer: %w", err)
	}

	var (
		m   Metadata
		err error
	)
	switch {
	case probe.Schema == SchemaLegacy:
		m, err = decodeV1(body)
	case probe.Schema == SchemaCurrent:
		m, err = decodeV2(body)
	case probe.Schema > SchemaCurrent:
		return Metadata{}, fileerr.Newf(fileerr.KindVersionIncompatible,
			"footer schema %d is newer than supported %d", probe.Schema, SchemaCurrent)
	default:
		return Metadata{}, fileerr.Newf(fileerr.KindCorruptFooter, "invalid footer schema %d", probe.Schema)
	}
	if err != nil {
		return Metadata{}, fileerr.Newf(fileerr.KindCorruptFooter, "decode footer schema %d: %w", probe.Schema, err)
	}

	if err := m.Validate(); err != nil {
		return Metadata{}, fileerr.Newf(fileerr.KindCorruptFooter, "invalid footer: %w", err)
	}
	return m, nil
}

func decodeV2(body []byte) (Metadata, error) {
	var w wireV2
	if err := decodeStrict(body, &w); err != nil {
		return Metadata{}, err
	}

	if w.Compression == "" {
		return Metadata{}, errors.New("missing compression scheme")
	}
	scheme, err := compression.ParseScheme(w.Compression)
	if err != nil {
		return Metadata{}, err
	}

	m := Metadata{
		Schema:        SchemaCurrent,
		FormatVersion: w.FormatVersion,
		Kind:          Kind(w.Kind),
		Compression:   scheme,
		Encrypted:     w.Encrypted,
		Roster:        w.Roster,
		CreatedAt:     w.CreatedAt.UTC(),
		ModifiedAt:    w.ModifiedAt.UTC(),
		PayloadSize:   w.PayloadSize,
	}

	if w.Encrypted != (w.Encryption != nil) {
		return Metadata{}, errors.New("encryption flag does not match encryption section")
	}
	if w.Encryption == nil {
		return m, nil
	}

	e := w.Encryption
	m.Encryption = Encryption{
		Cipher:    encryption.Cipher(e.Cipher),
		ChunkSize: e.ChunkSize,
		KDF: kdf.Params{
			Algorithm:  kdf.Algorithm(e.KDF),
			Iterations: e.Iterations,
			Memory:     e.Memory,
			Threads:    e.Threads,
		},
	}
	if m.Encryption.KDF.Salt, err = b64.DecodeString(e.Salt); err != nil {
		return Metadata{}, fmt.Errorf("salt: %w", err)
	}
	if m.Encryption.Nonce, err = b64.DecodeString(e.Nonce); err != nil {
		return Metadata{}, fmt.Errorf("nonce: %w", err)
	}
	if m.Encryption.Verifier, err = b64.DecodeString(e.Verifier); err != nil {
		return Metadata{}, fmt.Errorf("verifier: %w", err)
	}
	return m, nil
}

// decodeV1 upgrades the legacy bag. Early releases always used deflate,
// AES-256-GCM with default chunking and PBKDF2 with kdf.LegacyIterations,
// and had no payload size, which is filled in by the reader.
func decodeV1(body []byte) (Metadata, error) {
	var w wireV1
	if err := decodeStrict(body, &w); err != nil {
		return Metadata{}, err
	}

	m := Metadata{
		Schema:        SchemaLegacy,
		FormatVersion: w.Version,
		Kind:          KindCompany,
		Compression:   compression.SchemeDeflate,
		Encrypted:     w.IsEncrypted,
		Roster:        w.Accountants,
		CreatedAt:     w.Created.UTC(),
		ModifiedAt:    w.Modified.UTC(),
	}
	if !w.IsEncrypted {
		if w.Salt != "" || w.IV != "" || w.PasswordHash != "" {
			return Metadata{}, errors.New("encryption parameters of a plain file")
		}
		return m, nil
	}

	var err error
	m.Encryption = Encryption{
		Cipher:    encryption.AES256GCM,
		ChunkSize: encryption.DefaultChunkSize,
		KDF:       kdf.Params{Algorithm: kdf.PBKDF2SHA256, Iterations: kdf.LegacyIterations},
	}
	if m.Encryption.KDF.Salt, err = b64.DecodeString(w.Salt); err != nil {
		return Metadata{}, fmt.Errorf("salt: %w", err)
	}
	if m.Encryption.Nonce, err = b64.DecodeString(w.IV); err != nil {
		return Metadata{}, fmt.Errorf("iv: %w", err)
	}
	if m.Encryption.Verifier, err = b64.DecodeString(w.PasswordHash); err != nil {
		return Metadata{}, fmt.Errorf("password hash: %w", err)
	}
	return m, nil
}
