// Package kdf turns user passwords into symmetric keys.
//
// Derivation is deliberately slow. The parameters used for a file are stored
// in its footer, so the defaults of this package may be raised without
// breaking files written with older values.
package kdf

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm is a password-based key derivation function.
type Algorithm string

// Supported algorithms.
const (
	PBKDF2SHA256 Algorithm = "pbkdf2-sha256"
	Argon2id     Algorithm = "argon2id"
)

const (
	// KeySize is the length of every derived key.
	KeySize = 32
	// SaltSize is the length of the salt generated by NewParams.
	SaltSize = 32
	// MinSaltSize is the shortest salt accepted by Validate.
	MinSaltSize = 16

	// DefaultIterations is the PBKDF2 iteration count for new files.
	DefaultIterations = 600_000
	// LegacyIterations is the PBKDF2 iteration count implied by footers
	// which do not record it.
	LegacyIterations = 100_000

	// DefaultArgonTime, DefaultArgonMemory (KiB) and DefaultArgonThreads are
	// argon2id parameters for new files.
	DefaultArgonTime    = 3
	DefaultArgonMemory  = 64 * 1024
	DefaultArgonThreads = 4

	// MaxIterations is the largest PBKDF2 iteration count accepted by
	// Validate.
	MaxIterations = 10 * DefaultIterations
	// MaxArgonTime, MaxArgonMemory (KiB) and MaxArgonThreads bound argon2id
	// parameters accepted by Validate.
	MaxArgonTime    = 64
	MaxArgonMemory  = 1024 * 1024
	MaxArgonThreads = 64
)

// Params groups everything needed to re-derive a key from a password.
type Params struct {
	Algorithm Algorithm
	// Iterations is the PBKDF2 iteration count or the argon2id time cost.
	Iterations uint32
	// Memory is the argon2id memory cost in KiB. Unused by PBKDF2.
	Memory uint32
	// Threads is the argon2id parallelism. Unused by PBKDF2.
	Threads uint8
	Salt    []byte
}

// ErrEmptyPassword is returned when deriving a key from an empty password.
var ErrEmptyPassword = errors.New("empty password")

// DefaultParams returns parameters for new files without a salt.
func DefaultParams() Params {
	return Params{Algorithm: PBKDF2SHA256, Iterations: DefaultIterations}
}

// NewParams returns a copy of tmpl with a fresh random salt read from rnd.
// Empty fields of tmpl are filled with defaults of its algorithm.
func NewParams(tmpl Params, rnd io.Reader) (Params, error) {
	p := tmpl
	if p.Algorithm == "" {
		p.Algorithm = PBKDF2SHA256
	}
	switch p.Algorithm {
	case PBKDF2SHA256:
		if p.Iterations == 0 {
			p.Iterations = DefaultIterations
		}
		p.Memory, p.Threads = 0, 0
	case Argon2id:
		if p.Iterations == 0 {
			p.Iterations = DefaultArgonTime
		}
		if p.Memory == 0 {
			p.Memory = DefaultArgonMemory
		}
		if p.Threads == 0 {
			p.Threads = DefaultArgonThreads
		}
	default:
		return Params{}, fmt.Errorf("unsupported kdf algorithm %q", p.Algorithm)
	}

	p.Salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rnd, p.Salt); err != nil {
		return Params{}, fmt.Errorf("could not generate salt: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that p can be used for derivation. Parameters come from
// untrusted footers, so costs above the Max* limits are rejected before any
// work is done.
func (p Params) Validate() error {
	if len(p.Salt) < MinSaltSize {
		return fmt.Errorf("salt is too short: %d bytes", len(p.Salt))
	}
	if p.Iterations == 0 {
		return errors.New("zero iteration count")
	}
	switch p.Algorithm {
	case PBKDF2SHA256:
		if p.Iterations > MaxIterations {
			return fmt.Errorf("iteration count %d exceeds %d", p.Iterations, MaxIterations)
		}
	case Argon2id:
		if p.Memory == 0 || p.Threads == 0 {
			return errors.New("zero argon2id memory or threads")
		}
		if p.Iterations > MaxArgonTime {
			return fmt.Errorf("argon2id time %d exceeds %d", p.Iterations, MaxArgonTime)
		}
		if p.Memory > MaxArgonMemory {
			return fmt.Errorf("argon2id memory %d KiB exceeds %d KiB", p.Memory, MaxArgonMemory)
		}
		if p.Threads > MaxArgonThreads {
			return fmt.Errorf("argon2id threads %d exceeds %d", p.Threads, MaxArgonThreads)
		}
	default:
		return fmt.Errorf("unsupported kdf algorithm %q", p.Algorithm)
	}
	return nil
}

// Derive derives a master key of KeySize bytes from the password. The same
// password and parameters always give the same key. The caller owns the
// result and should Zero it when done.
func Derive(password []byte, p Params) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.Algorithm {
	case Argon2id:
		return argon2.IDKey(password, p.Salt, p.Iterations, p.Memory, p.Threads, KeySize), nil
	default:
		return pbkdf2.Key(password, p.Salt, int(p.Iterations), KeySize, sha256.New), nil
	}
}

// Keys are the subkeys expanded from a master key.
type Keys struct {
	// Encryption is used for the payload AEAD.
	Encryption []byte
	// Verification is used to compute the password verifier.
	Verification []byte
}

var (
	encryptionInfo   = []byte("argo payload encryption v1")
	verificationInfo = []byte("argo password verifier v1")
	verifierLabel    = []byte("argo-password-check")
)

// Expand splits the master key into independent encryption and verification
// subkeys, so the stored verifier never reveals the encryption key.
func Expand(master []byte) (Keys, error) {
	var k Keys

	k.Encryption = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, encryptionInfo), k.Encryption); err != nil {
		return Keys{}, fmt.Errorf("expand encryption key: %w", err)
	}

	k.Verification = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, verificationInfo), k.Verification); err != nil {
		k.Zero()
		return Keys{}, fmt.Errorf("expand verification key: %w", err)
	}

	return k, nil
}

// Zero wipes both subkeys.
func (k Keys) Zero() {
	Zero(k.Encryption)
	Zero(k.Verification)
}

// Verifier returns the password verifier stored in the footer.
func (k Keys) Verifier() []byte {
	mac := hmac.New(sha256.New, k.Verification)
	mac.Write(verifierLabel)
	return mac.Sum(nil)
}

// Check compares the verifier of k with the stored one in constant time.
func (k Keys) Check(stored []byte) bool {
	return hmac.Equal(k.Verifier(), stored)
}

// DeriveKeys derives the master key and expands it. The master key is wiped
// before returning.
func DeriveKeys(password []byte, p Params) (Keys, error) {
	master, err := Derive(password, p)
	if err != nil {
		return Keys{}, err
	}
	defer Zero(master)

	return Expand(master)
}

// Zero overwrites a byte slice with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
