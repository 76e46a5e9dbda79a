package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/cespare/xxhash/v2"
)

// Reader reads entries of an archive stream one by one.
type Reader struct {
	r     *bufio.Reader
	names map[string]struct{}
	count uint64

	cur  *entryReader
	err  error
	init bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), names: make(map[string]struct{})}
}

func corrupt(format string, args ...any) error {
	return fileerr.Newf(fileerr.KindCorruptArchive, format, args...)
}

// readErr classifies failures of the underlying stream. Errors already
// classified by lower layers (decryption, decompression) are kept.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corrupt("unexpected end of archive while reading %s", what)
	}
	return fileerr.Wrap(fileerr.KindCorruptArchive, fmt.Errorf("read %s: %w", what, err))
}

func (x *Reader) readHeader() error {
	var hdr [len(Magic) + 1]byte
	if _, err := io.ReadFull(x.r, hdr[:]); err != nil {
		return readErr("archive header", err)
	}
	if string(hdr[:len(Magic)]) != Magic {
		return corrupt("bad magic %q", hdr[:len(Magic)])
	}
	if v := hdr[len(Magic)]; v != FormatVersion {
		return corrupt("unsupported archive layout version %d", v)
	}
	return nil
}

// Next advances to the next entry and returns its header and a reader of its
// data. Data not consumed by the caller is skipped, and checksum of every
// entry is verified before Next proceeds. Next returns io.EOF after the last
// entry once the end record and the absence of trailing data are verified.
func (x *Reader) Next() (Header, io.Reader, error) {
	if x.err != nil {
		return Header{}, nil, x.err
	}

	h, r, err := x.next()
	if err != nil {
		x.err = err
	}
	return h, r, err
}

func (x *Reader) next() (Header, io.Reader, error) {
	if !x.init {
		x.init = true
		if err := x.readHeader(); err != nil {
			return Header{}, nil, err
		}
	}

	if x.cur != nil {
		if err := x.cur.finish(); err != nil {
			return Header{}, nil, err
		}
		x.cur = nil
	}

	kind, err := x.r.ReadByte()
	if err != nil {
		return Header{}, nil, readErr("entry kind", err)
	}
	if kind == 0 {
		return Header{}, nil, x.readEnd()
	}

	nameLen, err := binary.ReadUvarint(x.r)
	if err != nil {
		return Header{}, nil, readErr("entry name length", err)
	}
	if nameLen == 0 || nameLen > MaxNameLength {
		return Header{}, nil, corrupt("invalid entry name length %d", nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(x.r, name); err != nil {
		return Header{}, nil, readErr("entry name", err)
	}

	size, err := binary.ReadUvarint(x.r)
	if err != nil {
		return Header{}, nil, readErr("entry size", err)
	}

	h := Header{Name: string(name), Kind: Kind(kind), Size: size}
	if err := h.Validate(); err != nil {
		return Header{}, nil, corrupt("%v", err)
	}
	if _, ok := x.names[h.Name]; ok {
		return Header{}, nil, corrupt("duplicate entry %q", h.Name)
	}
	if int64(size) < 0 {
		return Header{}, nil, corrupt("entry %q is too large", h.Name)
	}
	x.names[h.Name] = struct{}{}
	x.count++

	x.cur = &entryReader{
		name: h.Name,
		src:  x.r,
		lr:   io.LimitedReader{R: x.r, N: int64(size)},
		d:    xxhash.New(),
	}
	return h, x.cur, nil
}

func (x *Reader) readEnd() error {
	count, err := binary.ReadUvarint(x.r)
	if err != nil {
		return readErr("entry count", err)
	}
	if count != x.count {
		return corrupt("archive declares %d entries, found %d", count, x.count)
	}
	if _, err := x.r.ReadByte(); err == nil {
		return corrupt("trailing data after the end of archive")
	} else if !errors.Is(err, io.EOF) {
		return readErr("archive end", err)
	}
	return io.EOF
}

// ReadAll reads all remaining entries into memory.
func (x *Reader) ReadAll() ([]Entry, error) {
	var res []Entry
	for {
		h, r, err := x.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		buf.Grow(int(min(h.Size, 1<<20)))
		if _, err := io.Copy(&buf, r); err != nil {
			return nil, err
		}
		if err := x.cur.finish(); err != nil {
			x.err = err
			return nil, err
		}
		res = append(res, Entry{Name: h.Name, Kind: h.Kind, Data: buf.Bytes()})
	}
}

// Unpack parses an archive produced by Pack.
func Unpack(data []byte) ([]Entry, error) {
	return NewReader(bytes.NewReader(data)).ReadAll()
}

type entryReader struct {
	name string
	src  io.Reader
	lr   io.LimitedReader
	d    *xxhash.Digest
	done bool
	err  error
}

func (e *entryReader) Read(p []byte) (int, error) {
	if e.done {
		if e.err != nil {
			return 0, e.err
		}
		return 0, io.EOF
	}
	if e.lr.N == 0 {
		if err := e.finish(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	n, err := e.lr.Read(p)
	e.d.Write(p[:n])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && e.lr.N == 0:
		err = nil
	case errors.Is(err, io.EOF):
		e.done = true
		e.err = corrupt("entry %q is truncated", e.name)
		err = e.err
	default:
		e.done = true
		e.err = readErr(fmt.Sprintf("entry %q", e.name), err)
		err = e.err
	}
	return n, err
}

// finish skips unread data and verifies the checksum. It is idempotent.
func (e *entryReader) finish() error {
	if e.done {
		return e.err
	}
	e.done = true

	if _, err := io.Copy(e.d, &e.lr); err != nil {
		e.err = readErr(fmt.Sprintf("entry %q", e.name), err)
		return e.err
	}
	if e.lr.N > 0 {
		e.err = corrupt("entry %q is truncated", e.name)
		return e.err
	}

	var sum [checksumSize]byte
	if _, err := io.ReadFull(e.src, sum[:]); err != nil {
		e.err = readErr(fmt.Sprintf("checksum of %q", e.name), err)
		return e.err
	}
	if binary.BigEndian.Uint64(sum[:]) != e.d.Sum64() {
		e.err = corrupt("checksum mismatch of entry %q", e.name)
	}
	return e.err
}
