package encryption

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

type writer struct {
	w     io.Writer
	aead  cipher.AEAD
	state *chunkState

	buf    []byte
	sealed []byte
	size   int
	closed bool
}

// NewWriter returns a writer encrypting everything written to it into w. The
// stream is complete only after Close, which does not close w.
func NewWriter(w io.Writer, p Params) (io.WriteCloser, error) {
	a, err := p.aead()
	if err != nil {
		return nil, err
	}
	size := p.chunkSize()
	return &writer{
		w:      w,
		aead:   a,
		state:  newChunkState(p),
		buf:    make([]byte, 0, size),
		sealed: make([]byte, 0, size+a.Overhead()),
		size:   size,
	}, nil
}

func (x *writer) Write(p []byte) (int, error) {
	if x.closed {
		return 0, errors.New("write to closed encryption stream")
	}

	var written int
	for len(p) > 0 {
		// a full chunk is sealed only when more data follows, so the last
		// chunk always carries the final flag
		if len(x.buf) == x.size {
			if err := x.flush(false); err != nil {
				return written, err
			}
		}
		n := copy(x.buf[len(x.buf):x.size], p)
		x.buf = x.buf[:len(x.buf)+n]
		p = p[n:]
		written += n
	}
	return written, nil
}

func (x *writer) flush(final bool) error {
	nonce, ad, err := x.state.next(final)
	if err != nil {
		return err
	}
	x.sealed = x.aead.Seal(x.sealed[:0], nonce, x.buf, ad)
	x.buf = x.buf[:0]
	_, err = x.w.Write(x.sealed)
	return err
}

// Close seals the final chunk.
func (x *writer) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	return x.flush(true)
}

type reader struct {
	r     io.Reader
	aead  cipher.AEAD
	state *chunkState

	enc   []byte // one sealed chunk plus a look-ahead byte
	plain []byte
	rest  []byte
	carry bool
	done  bool
	err   error
}

// NewReader returns a reader decrypting the stream read from r.
func NewReader(r io.Reader, p Params) (io.Reader, error) {
	a, err := p.aead()
	if err != nil {
		return nil, err
	}
	size := p.chunkSize()
	return &reader{
		r:     r,
		aead:  a,
		state: newChunkState(p),
		enc:   make([]byte, size+a.Overhead()+1),
		plain: make([]byte, 0, size),
	}, nil
}

func (x *reader) Read(p []byte) (int, error) {
	for len(x.rest) == 0 {
		if x.err != nil {
			return 0, x.err
		}
		if x.done {
			return 0, io.EOF
		}
		x.err = x.readChunk()
	}

	n := copy(p, x.rest)
	x.rest = x.rest[n:]
	return n, nil
}

func (x *reader) readChunk() error {
	sealedSize := len(x.enc) - 1

	start := 0
	if x.carry {
		start = 1
	}

	n, err := io.ReadFull(x.r, x.enc[start:sealedSize])
	n += start
	final := false
	switch {
	case err == nil:
		// peek one byte to find out whether this chunk is the last one
		m, perr := io.ReadFull(x.r, x.enc[sealedSize:])
		switch {
		case m == 1:
			x.carry = true
		case errors.Is(perr, io.EOF):
			final = true
		default:
			return fileerr.Wrap(fileerr.KindIO, perr)
		}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		final = true
	default:
		return fileerr.Wrap(fileerr.KindIO, err)
	}

	if n == 0 {
		return fileerr.New(fileerr.KindAuthentication, "encrypted stream is truncated")
	}

	nonce, ad, err := x.state.next(final)
	if err != nil {
		return fileerr.Wrap(fileerr.KindAuthentication, err)
	}

	x.plain, err = x.aead.Open(x.plain[:0], nonce, x.enc[:n], ad)
	if err != nil {
		return fileerr.Newf(fileerr.KindAuthentication, "chunk %d: %w", x.state.counter-1, err)
	}

	if x.carry && !final {
		x.enc[0] = x.enc[sealedSize]
	}
	x.rest = x.plain
	x.done = final
	return nil
}

// Seal encrypts the whole plaintext at once.
func Seal(plaintext []byte, p Params) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, p)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(plaintext); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open decrypts and authenticates the whole ciphertext at once.
func Open(ciphertext []byte, p Params) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(ciphertext), p)
	if err != nil {
		return nil, err
	}
	res, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return res, nil
}
