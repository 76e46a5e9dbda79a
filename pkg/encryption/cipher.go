// Package encryption implements chunked authenticated encryption of the
// company-file payload.
//
// Plaintext is split into chunks of a fixed size. Every chunk is sealed
// separately with a nonce derived from the per-file random base nonce and the
// chunk index, and with associated data extended by a final-chunk flag. Any
// modification, reordering, truncation or extension of the stream makes the
// reader fail with fileerr.ErrAuthentication instead of returning data.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is an AEAD algorithm name as stored in the footer.
type Cipher string

// Supported ciphers.
const (
	AES256GCM         Cipher = "aes-256-gcm"
	XChaCha20Poly1305 Cipher = "xchacha20-poly1305"
)

const (
	// KeySize is the key length of every supported cipher.
	KeySize = 32
	// DefaultChunkSize is the plaintext size of a chunk.
	DefaultChunkSize = 64 * 1024
	// MaxChunkSize bounds chunk size read from untrusted footers.
	MaxChunkSize = 16 * 1024 * 1024

	counterSize = 4
	flagMore    = 0
	flagFinal   = 1
)

// Params groups everything needed to encrypt or decrypt a stream.
type Params struct {
	Cipher Cipher
	// Key must be KeySize bytes long.
	Key []byte
	// Nonce is the random base nonce of the stream, NonceSize(Cipher) bytes.
	Nonce []byte
	// AssociatedData is authenticated but not encrypted.
	AssociatedData []byte
	// ChunkSize is the plaintext size of all chunks but the last one.
	// Zero means DefaultChunkSize.
	ChunkSize int
}

// NonceSize returns the base nonce length of c.
func NonceSize(c Cipher) (int, error) {
	switch c {
	case AES256GCM, "":
		return 12, nil
	case XChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	}
	return 0, fmt.Errorf("unsupported cipher %q", c)
}

// NewNonce reads a fresh base nonce for c from rnd.
func NewNonce(c Cipher, rnd io.Reader) ([]byte, error) {
	size, err := NonceSize(c)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, size)
	if _, err := io.ReadFull(rnd, nonce); err != nil {
		return nil, fmt.Errorf("could not init random nonce: %w", err)
	}
	return nonce, nil
}

func (p Params) chunkSize() int {
	if p.ChunkSize == 0 {
		return DefaultChunkSize
	}
	return p.ChunkSize
}

func (p Params) aead() (cipher.AEAD, error) {
	if len(p.Key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(p.Key))
	}
	if cs := p.chunkSize(); cs <= 0 || cs > MaxChunkSize {
		return nil, fmt.Errorf("invalid chunk size %d", cs)
	}

	var (
		a   cipher.AEAD
		err error
	)
	switch p.Cipher {
	case AES256GCM, "":
		var block cipher.Block
		block, err = aes.NewCipher(p.Key)
		if err != nil {
			return nil, err
		}
		a, err = cipher.NewGCM(block)
	case XChaCha20Poly1305:
		a, err = chacha20poly1305.NewX(p.Key)
	default:
		return nil, fmt.Errorf("unsupported cipher %q", p.Cipher)
	}
	if err != nil {
		return nil, err
	}

	if len(p.Nonce) != a.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d, expected %d", len(p.Nonce), a.NonceSize())
	}
	return a, nil
}

// errCounterOverflow is returned when the stream exceeds 2^32 chunks.
var errCounterOverflow = errors.New("too many chunks in the stream")

// chunkState derives per-chunk nonces and associated data.
type chunkState struct {
	base    []byte
	nonce   []byte
	ad      []byte
	counter uint64
}

func newChunkState(p Params) *chunkState {
	ad := make([]byte, len(p.AssociatedData)+1)
	copy(ad, p.AssociatedData)
	return &chunkState{
		base:  p.Nonce,
		nonce: make([]byte, len(p.Nonce)),
		ad:    ad,
	}
}

// next returns nonce and associated data of the next chunk.
func (s *chunkState) next(final bool) ([]byte, []byte, error) {
	if s.counter > 1<<32-1 {
		return nil, nil, errCounterOverflow
	}

	copy(s.nonce, s.base)
	var ctr [counterSize]byte
	binary.BigEndian.PutUint32(ctr[:], uint32(s.counter))
	off := len(s.nonce) - counterSize
	for i := range ctr {
		s.nonce[off+i] ^= ctr[i]
	}
	s.counter++

	if final {
		s.ad[len(s.ad)-1] = flagFinal
	} else {
		s.ad[len(s.ad)-1] = flagMore
	}
	return s.nonce, s.ad, nil
}
