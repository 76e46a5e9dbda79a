package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Scheme is a compression algorithm of the company-file payload.
type Scheme uint8

// Supported compression schemes.
const (
	SchemeNone Scheme = iota + 1
	SchemeDeflate
	SchemeZstd
)

// DefaultLevel is a compression level used when Config.Level is zero.
const DefaultLevel = 6

func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeDeflate:
		return "deflate"
	case SchemeZstd:
		return "zstd"
	}
	return fmt.Sprintf("scheme(%d)", uint8(s))
}

// ParseScheme returns Scheme by its name.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "none":
		return SchemeNone, nil
	case "deflate", "":
		return SchemeDeflate, nil
	case "zstd":
		return SchemeZstd, nil
	}
	return 0, fmt.Errorf("unknown compression scheme %q", s)
}

// Valid returns nil iff s is a known scheme.
func (s Scheme) Valid() error {
	switch s {
	case SchemeNone, SchemeDeflate, SchemeZstd:
		return nil
	}
	return fmt.Errorf("unknown compression scheme %d", uint8(s))
}

// Config represents compression-related configuration of the codec.
//
// Zero Config compresses with deflate at DefaultLevel. Config must be
// initialized with Init before use.
type Config struct {
	Scheme Scheme
	// Level is scheme-specific: 1-9 for deflate, 1-4 (zstd.EncoderLevel) for zstd.
	Level int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Init initializes compression routines.
func (c *Config) Init() error {
	if c.Scheme == 0 {
		c.Scheme = SchemeDeflate
	}
	if err := c.Scheme.Valid(); err != nil {
		return err
	}

	if c.Scheme != SchemeZstd {
		return nil
	}

	var err error

	c.encoder, err = zstd.NewWriter(nil, c.zstdOptions()...)
	if err != nil {
		return err
	}

	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		_ = c.encoder.Close()
		return err
	}

	return nil
}

func (c *Config) zstdOptions() []zstd.EOption {
	// empty input must still produce a frame
	opts := []zstd.EOption{zstd.WithZeroFrames(true)}
	if c.Level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevel(c.Level)))
	}
	return opts
}

func (c *Config) deflateLevel() int {
	if c.Level == 0 {
		return DefaultLevel
	}
	return c.Level
}

// Writer returns a writer compressing everything written to it into w.
// Compressed stream is complete only after the writer is closed. Closing the
// returned writer does not close w.
func (c *Config) Writer(w io.Writer) (io.WriteCloser, error) {
	switch c.Scheme {
	case SchemeNone:
		return nopWriteCloser{w}, nil
	case SchemeDeflate:
		return flate.NewWriter(w, c.deflateLevel())
	case SchemeZstd:
		return zstd.NewWriter(w, c.zstdOptions()...)
	}
	return nil, c.Scheme.Valid()
}

// Reader returns a reader decompressing data from r. Malformed or truncated
// input is reported as fileerr.ErrCorruptData, failures of r itself are
// passed through (unclassified ones as fileerr.ErrIO).
func (c *Config) Reader(r io.Reader) (io.ReadCloser, error) {
	src := sourceReader{r}

	switch c.Scheme {
	case SchemeNone:
		return io.NopCloser(src), nil
	case SchemeDeflate:
		return &corruptionReader{r: flate.NewReader(src), closeFn: nil}, nil
	case SchemeZstd:
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, fileerr.Wrap(fileerr.KindCorruptData, err)
		}
		return &corruptionReader{r: d, closeFn: func() error { d.Close(); return nil }}, nil
	}
	return nil, c.Scheme.Valid()
}

// Compress compresses data in one call.
func (c *Config) Compress(data []byte) ([]byte, error) {
	switch c.Scheme {
	case SchemeNone:
		return data, nil
	case SchemeZstd:
		if c.encoder != nil {
			maxSize := c.encoder.MaxEncodedSize(len(data))
			return c.encoder.EncodeAll(data, make([]byte, 0, maxSize)), nil
		}
	}

	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data in one call.
func (c *Config) Decompress(data []byte) ([]byte, error) {
	switch c.Scheme {
	case SchemeNone:
		return data, nil
	case SchemeZstd:
		if c.decoder != nil {
			res, err := c.decoder.DecodeAll(data, nil)
			if err != nil {
				return nil, fileerr.Wrap(fileerr.KindCorruptData, err)
			}
			return res, nil
		}
	}

	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Close closes encoder and decoder, returns any error occurred.
func (c *Config) Close() error {
	var err error
	if c.encoder != nil {
		err = c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// sourceReader marks failures of the underlying reader so they are not
// mistaken for broken compressed data.
type sourceReader struct{ r io.Reader }

type sourceError struct{ err error }

func (e sourceError) Error() string { return e.err.Error() }
func (e sourceError) Unwrap() error { return e.err }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = sourceError{fileerr.Wrap(fileerr.KindIO, err)}
	}
	return n, err
}

type corruptionReader struct {
	r       io.Reader
	closeFn func() error
}

func (c *corruptionReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}

	var se sourceError
	if errors.As(err, &se) {
		return n, se.err
	}
	return n, fileerr.Wrap(fileerr.KindCorruptData, err)
}

func (c *corruptionReader) Close() error {
	if cl, ok := c.r.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			return err
		}
	}
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
