package footer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/kdf"
	"golang.org/x/mod/semver"
)

// Kind is a type of the file payload.
type Kind string

// File kinds.
const (
	KindCompany  Kind = "company"
	KindBackup   Kind = "backup"
	KindTemplate Kind = "template"
)

// Valid returns nil iff k is known.
func (k Kind) Valid() error {
	switch k {
	case KindCompany, KindBackup, KindTemplate:
		return nil
	}
	return fmt.Errorf("unknown file kind %q", k)
}

// Metadata is the decoded footer.
type Metadata struct {
	// Schema is the footer schema the metadata was decoded from. Marshal
	// always writes SchemaCurrent.
	Schema int

	// FormatVersion is a semantic version of the file format without the
	// leading "v", e.g. "3.0.0".
	FormatVersion string
	Kind          Kind
	Compression   compression.Scheme

	Encrypted bool
	// Encryption is set iff Encrypted is true.
	Encryption Encryption

	// Roster lists display names (e.g. assigned accountants) available
	// before authentication. It is stored in the clear.
	Roster []string

	CreatedAt  time.Time
	ModifiedAt time.Time

	// PayloadSize is the length of the payload preceding the footer.
	PayloadSize uint64
	// FooterLength is the exact length of the serialized footer body. It is
	// filled by readers from the marker.
	FooterLength uint32
}

// Encryption groups parameters of an encrypted payload.
type Encryption struct {
	Cipher    encryption.Cipher
	ChunkSize uint32
	// KDF holds the algorithm, costs and salt of the password derivation.
	KDF   kdf.Params
	Nonce []byte
	// Verifier is a hash of the derived verification key. It is neither the
	// password nor the encryption key.
	Verifier []byte
}

// Salt returns the KDF salt.
func (e Encryption) Salt() []byte { return e.KDF.Salt }

// Validate checks m for consistency.
func (m Metadata) Validate() error {
	if v := "v" + m.FormatVersion; m.FormatVersion == "" || m.FormatVersion[0] == 'v' || semver.Canonical(v) != v {
		return fmt.Errorf("invalid format version %q", m.FormatVersion)
	}
	if err := m.Kind.Valid(); err != nil {
		return err
	}
	if err := m.Compression.Valid(); err != nil {
		return err
	}

	if !m.Encrypted {
		if m.Encryption.Cipher != "" || len(m.Encryption.Nonce) != 0 || len(m.Encryption.Verifier) != 0 ||
			len(m.Encryption.KDF.Salt) != 0 {
			return errors.New("encryption parameters of a plain file")
		}
		return nil
	}

	e := m.Encryption
	size, err := encryption.NonceSize(e.Cipher)
	if err != nil {
		return err
	}
	if len(e.Nonce) != size {
		return fmt.Errorf("invalid nonce length %d", len(e.Nonce))
	}
	if e.ChunkSize == 0 || e.ChunkSize > encryption.MaxChunkSize {
		return fmt.Errorf("invalid chunk size %d", e.ChunkSize)
	}
	if len(e.Verifier) == 0 {
		return errors.New("missing password verifier")
	}
	if err := e.KDF.Validate(); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	return nil
}

// AssociatedData returns the canonical binary encoding of all footer fields
// fixed before the payload is encrypted. It is authenticated together with
// every encrypted chunk, so editing any of them breaks decryption.
func (m Metadata) AssociatedData() []byte {
	var b []byte

	putString := func(s string) {
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	}
	putBytes := func(p []byte) {
		b = binary.AppendUvarint(b, uint64(len(p)))
		b = append(b, p...)
	}

	b = append(b, "argo-footer-ad\x00"...)
	putString(m.FormatVersion)
	putString(string(m.Kind))
	b = append(b, byte(m.Compression))
	if m.Encrypted {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}

	e := m.Encryption
	putString(string(e.Cipher))
	b = binary.BigEndian.AppendUint32(b, e.ChunkSize)
	putString(string(e.KDF.Algorithm))
	b = binary.BigEndian.AppendUint32(b, e.KDF.Iterations)
	b = binary.BigEndian.AppendUint32(b, e.KDF.Memory)
	b = append(b, e.KDF.Threads)
	putBytes(e.KDF.Salt)
	putBytes(e.Nonce)
	putBytes(e.Verifier)

	b = binary.AppendUvarint(b, uint64(len(m.Roster)))
	for _, name := range m.Roster {
		putString(name)
	}

	b = binary.BigEndian.AppendUint64(b, uint64(m.CreatedAt.UnixNano()))
	b = binary.BigEndian.AppendUint64(b, uint64(m.ModifiedAt.UnixNano()))
	return b
}
