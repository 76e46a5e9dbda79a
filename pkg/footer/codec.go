package footer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

const (
	// MarkerMagic starts the fixed-size marker at the end of the file.
	MarkerMagic = "AFTR"
	// MarkerSize is the length of the marker.
	MarkerSize = len(MarkerMagic) + 4
	// MaxLength bounds the footer body length.
	MaxLength = 1 << 20
)

func corrupt(format string, args ...any) error {
	return fileerr.Newf(fileerr.KindCorruptFooter, format, args...)
}

// Marker returns the marker for a footer body of the given length.
func Marker(length uint32) []byte {
	m := make([]byte, MarkerSize)
	copy(m, MarkerMagic)
	binary.BigEndian.PutUint32(m[len(MarkerMagic):], length)
	return m
}

// ParseMarker returns the footer body length declared by the marker.
func ParseMarker(m []byte) (uint32, error) {
	if len(m) != MarkerSize || string(m[:len(MarkerMagic)]) != MarkerMagic {
		return 0, corrupt("missing footer marker")
	}
	l := binary.BigEndian.Uint32(m[len(MarkerMagic):])
	if l == 0 || l > MaxLength {
		return 0, corrupt("invalid footer length %d", l)
	}
	return l, nil
}

// Write writes the footer body of m followed by the marker. m.PayloadSize
// must already describe the payload written to w before. Returns number of
// bytes written.
func Write(w io.Writer, m Metadata) (int, error) {
	body, err := Marshal(m)
	if err != nil {
		return 0, err
	}
	if len(body) > MaxLength {
		return 0, fmt.Errorf("footer is too large: %d bytes", len(body))
	}

	n, err := w.Write(append(body, Marker(uint32(len(body)))...))
	if err != nil {
		return n, fmt.Errorf("write footer: %w", err)
	}
	return n, nil
}

// Append returns payload followed by the footer and marker.
func Append(payload []byte, m Metadata) ([]byte, error) {
	m.PayloadSize = uint64(len(payload))

	var buf bytes.Buffer
	buf.Grow(len(payload) + 1024)
	buf.Write(payload)
	if _, err := Write(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFrom decodes the footer of a file of the given size. Only the marker
// and the footer body are read. The declared lengths must be consistent with
// size exactly.
func ReadFrom(r io.ReaderAt, size int64) (Metadata, error) {
	if size < int64(MarkerSize) {
		return Metadata{}, corrupt("file of %d bytes is too short", size)
	}

	marker := make([]byte, MarkerSize)
	if _, err := r.ReadAt(marker, size-int64(MarkerSize)); err != nil {
		return Metadata{}, readErr("footer marker", err)
	}
	length, err := ParseMarker(marker)
	if err != nil {
		return Metadata{}, err
	}

	payloadSize := size - int64(MarkerSize) - int64(length)
	if payloadSize < 0 {
		return Metadata{}, corrupt("footer length %d exceeds file size %d", length, size)
	}

	body := make([]byte, length)
	if _, err := r.ReadAt(body, payloadSize); err != nil {
		return Metadata{}, readErr("footer", err)
	}

	m, err := Unmarshal(body)
	if err != nil {
		return Metadata{}, err
	}

	if m.Schema == SchemaLegacy {
		m.PayloadSize = uint64(payloadSize)
	} else if m.PayloadSize != uint64(payloadSize) {
		return Metadata{}, corrupt("footer declares %d payload bytes, file has %d", m.PayloadSize, payloadSize)
	}
	m.FooterLength = length
	return m, nil
}

// Read decodes the footer of an in-memory file and returns it with the
// payload.
func Read(file []byte) (Metadata, []byte, error) {
	m, err := ReadFrom(bytes.NewReader(file), int64(len(file)))
	if err != nil {
		return Metadata{}, nil, err
	}
	return m, file[:m.PayloadSize], nil
}

// TotalLength returns the length of the footer body plus the marker.
func (m Metadata) TotalLength() int64 {
	return int64(m.FooterLength) + int64(MarkerSize)
}

func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corrupt("%s is truncated", what)
	}
	return fileerr.Wrap(fileerr.KindIO, fmt.Errorf("read %s: %w", what, err))
}
