package config

import (
	"fmt"

	"github.com/argo-books/argo-core/pkg/compression"
	"github.com/argo-books/argo-core/pkg/encryption"
	"github.com/argo-books/argo-core/pkg/kdf"
)

const codecSection = "codec"

// Codec groups parameters of new company files from the "codec" section.
type Codec struct {
	Compression      compression.Scheme
	CompressionLevel int
	Cipher           encryption.Cipher
	ChunkSize        uint32
	// KDF has no salt, it is generated on every save.
	KDF kdf.Params
}

// CodecSection reads the "codec" section:
//
//	compression        none | deflate | zstd (deflate by default)
//	compression_level  scheme specific, 0 means default
//	cipher             aes-256-gcm | xchacha20-poly1305 (aes-256-gcm by default)
//	chunk_size         plaintext bytes per encrypted chunk
//	kdf.algorithm      pbkdf2-sha256 | argon2id (pbkdf2-sha256 by default)
//	kdf.iterations     PBKDF2 rounds or argon2id time cost
//	kdf.memory         argon2id memory in KiB
//	kdf.threads        argon2id parallelism
//
// Zero values are replaced with defaults of the codec.
func CodecSection(c *Config) (Codec, error) {
	var (
		res Codec
		err error
	)

	res.Compression = compression.SchemeDeflate
	if s := StringSafe(c, codecSection+".compression"); s != "" {
		if res.Compression, err = compression.ParseScheme(s); err != nil {
			return Codec{}, fmt.Errorf("codec.compression: %w", err)
		}
	}
	if res.CompressionLevel, err = Int(c, codecSection+".compression_level"); err != nil {
		return Codec{}, fmt.Errorf("codec.compression_level: %w", err)
	}

	res.Cipher = encryption.AES256GCM
	if s := StringSafe(c, codecSection+".cipher"); s != "" {
		res.Cipher = encryption.Cipher(s)
		if _, err = encryption.NonceSize(res.Cipher); err != nil {
			return Codec{}, fmt.Errorf("codec.cipher: %w", err)
		}
	}
	if res.ChunkSize, err = Uint32(c, codecSection+".chunk_size"); err != nil {
		return Codec{}, fmt.Errorf("codec.chunk_size: %w", err)
	}
	if res.ChunkSize > encryption.MaxChunkSize {
		return Codec{}, fmt.Errorf("codec.chunk_size: %d exceeds %d", res.ChunkSize, encryption.MaxChunkSize)
	}

	if res.KDF, err = kdfParams(c); err != nil {
		return Codec{}, err
	}
	return res, nil
}

func kdfParams(c *Config) (kdf.Params, error) {
	const sub = codecSection + ".kdf."

	var (
		p       kdf.Params
		threads uint32
		err     error
	)
	p.Algorithm = kdf.Algorithm(StringSafe(c, sub+"algorithm"))
	switch p.Algorithm {
	case "":
		p.Algorithm = kdf.PBKDF2SHA256
	case kdf.PBKDF2SHA256, kdf.Argon2id:
	default:
		return kdf.Params{}, fmt.Errorf("codec.kdf.algorithm: unsupported %q", p.Algorithm)
	}
	if p.Iterations, err = Uint32(c, sub+"iterations"); err != nil {
		return kdf.Params{}, fmt.Errorf("codec.kdf.iterations: %w", err)
	}
	if p.Memory, err = Uint32(c, sub+"memory"); err != nil {
		return kdf.Params{}, fmt.Errorf("codec.kdf.memory: %w", err)
	}
	if threads, err = Uint32(c, sub+"threads"); err != nil {
		return kdf.Params{}, fmt.Errorf("codec.kdf.threads: %w", err)
	}
	if threads > 255 {
		return kdf.Params{}, fmt.Errorf("codec.kdf.threads: %d exceeds 255", threads)
	}
	p.Threads = uint8(threads)

	switch {
	case p.Algorithm == kdf.PBKDF2SHA256 && p.Iterations > kdf.MaxIterations:
		return kdf.Params{}, fmt.Errorf("codec.kdf.iterations: %d exceeds %d", p.Iterations, kdf.MaxIterations)
	case p.Algorithm == kdf.Argon2id && p.Iterations > kdf.MaxArgonTime:
		return kdf.Params{}, fmt.Errorf("codec.kdf.iterations: %d exceeds %d", p.Iterations, kdf.MaxArgonTime)
	case p.Algorithm == kdf.Argon2id && p.Memory > kdf.MaxArgonMemory:
		return kdf.Params{}, fmt.Errorf("codec.kdf.memory: %d exceeds %d", p.Memory, kdf.MaxArgonMemory)
	case p.Algorithm == kdf.Argon2id && p.Threads > kdf.MaxArgonThreads:
		return kdf.Params{}, fmt.Errorf("codec.kdf.threads: %d exceeds %d", p.Threads, kdf.MaxArgonThreads)
	}
	return p, nil
}
