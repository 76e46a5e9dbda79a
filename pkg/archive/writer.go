package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/cespare/xxhash/v2"
)

// Magic starts every archive stream.
const Magic = "ARGA"

// FormatVersion is the archive layout version written by Writer.
const FormatVersion byte = 1

const checksumSize = 8

// Writer packs entries into an underlying stream. Entries are written in the
// order they are added.
type Writer struct {
	w      io.Writer
	names   map[string]struct{}
	count   uint64
	started bool
	closed  bool
	err     error

	scratch [binary.MaxVarintLen64 + 1]byte
}

// NewWriter returns a Writer over w. The archive is complete only after Close,
// which does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, names: make(map[string]struct{})}
}

func (x *Writer) writeRaw(p []byte) error {
	if x.err != nil {
		return x.err
	}
	_, x.err = x.w.Write(p)
	return x.err
}

func (x *Writer) writeUvarint(v uint64) error {
	n := binary.PutUvarint(x.scratch[:], v)
	return x.writeRaw(x.scratch[:n])
}

func (x *Writer) writeHeader() error {
	if x.started {
		return x.err
	}
	x.started = true
	return x.writeRaw(append([]byte(Magic), FormatVersion))
}

// Add writes an in-memory entry.
func (x *Writer) Add(e Entry) error {
	return x.AddReader(Header{Name: e.Name, Kind: e.Kind, Size: uint64(len(e.Data))}, bytes.NewReader(e.Data))
}

// AddReader writes an entry whose data is read from r. Exactly h.Size bytes
// are consumed, so large attachments are never held in memory.
func (x *Writer) AddReader(h Header, r io.Reader) error {
	if x.closed {
		return errors.New("add entry to closed archive")
	}
	if err := h.Validate(); err != nil {
		return err
	}
	if _, ok := x.names[h.Name]; ok {
		return fileerr.Newf(fileerr.KindInvalidEntry, "duplicate entry %q", h.Name)
	}
	if err := x.writeHeader(); err != nil {
		return err
	}
	x.names[h.Name] = struct{}{}

	_ = x.writeRaw([]byte{byte(h.Kind)})
	_ = x.writeUvarint(uint64(len(h.Name)))
	_ = x.writeRaw([]byte(h.Name))
	if err := x.writeUvarint(h.Size); err != nil {
		return err
	}

	d := xxhash.New()
	n, err := io.Copy(io.MultiWriter(x.w, d), io.LimitReader(r, int64(h.Size)))
	if err != nil {
		x.err = err
		return fmt.Errorf("write entry %q: %w", h.Name, err)
	}
	if uint64(n) != h.Size {
		x.err = fmt.Errorf("entry %q: got %d bytes, declared %d", h.Name, n, h.Size)
		return fileerr.Wrap(fileerr.KindInvalidEntry, x.err)
	}

	var sum [checksumSize]byte
	binary.BigEndian.PutUint64(sum[:], d.Sum64())
	if err := x.writeRaw(sum[:]); err != nil {
		return err
	}

	x.count++
	return nil
}

// Close writes the end record.
func (x *Writer) Close() error {
	if x.closed {
		return x.err
	}
	x.closed = true

	if err := x.writeHeader(); err != nil {
		return err
	}
	_ = x.writeRaw([]byte{0})
	return x.writeUvarint(x.count)
}

// Pack serializes entries into a single byte slice.
func Pack(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := range entries {
		if err := w.Add(entries[i]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
