// Package archive packs named data units of a company snapshot into a single
// self-contained byte stream and back.
//
// Stream layout:
//
//	magic "ARGA" | format version (1 byte)
//	entry*:  kind (1 byte) | uvarint name length | name | uvarint data length | data | xxhash64(data) (8 bytes, BE)
//	end:     0x00 | uvarint entry count
//
// Entry contents are opaque: the archive never parses them.
package archive

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

// Kind is a type of archive entry.
type Kind uint8

// Entry kinds. Zero value terminates the entry list in the stream.
const (
	KindText Kind = iota + 1
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// AttachmentsPrefix is the reserved subtree for binary attachments.
const AttachmentsPrefix = "attachments/"

// MaxNameLength limits entry names.
const MaxNameLength = 4096

// Entry is a named logical unit of the archive.
type Entry struct {
	// Name is a slash-separated path unique within the archive.
	Name string
	Kind Kind
	Data []byte
}

// Text returns a text-data entry.
func Text(name string, data []byte) Entry {
	return Entry{Name: name, Kind: KindText, Data: data}
}

// Attachment returns a binary attachment entry named AttachmentsPrefix+name.
func Attachment(name string, data []byte) Entry {
	return Entry{Name: AttachmentsPrefix + name, Kind: KindBinary, Data: data}
}

// IsAttachment checks whether name belongs to the attachments subtree.
func IsAttachment(name string) bool {
	return strings.HasPrefix(name, AttachmentsPrefix)
}

// Header describes an entry without its data.
type Header struct {
	Name string
	Kind Kind
	Size uint64
}

// Validate checks name and kind of an entry. Returned errors are of
// fileerr.KindInvalidEntry.
func (h Header) Validate() error {
	if err := validateName(h.Name); err != nil {
		return fileerr.Newf(fileerr.KindInvalidEntry, "entry %q: %w", h.Name, err)
	}

	switch h.Kind {
	case KindText:
		if IsAttachment(h.Name) {
			return fileerr.Newf(fileerr.KindInvalidEntry, "text entry %q in the attachments subtree", h.Name)
		}
	case KindBinary:
		if !IsAttachment(h.Name) {
			return fileerr.Newf(fileerr.KindInvalidEntry, "binary entry %q outside of %q", h.Name, AttachmentsPrefix)
		}
	default:
		return fileerr.Newf(fileerr.KindInvalidEntry, "entry %q: unknown kind %d", h.Name, uint8(h.Kind))
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case len(name) > MaxNameLength:
		return fmt.Errorf("name is longer than %d bytes", MaxNameLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("name is not valid UTF-8")
	case strings.ContainsAny(name, "\\\x00"):
		return fmt.Errorf("name contains forbidden characters")
	}

	for _, seg := range strings.Split(name, "/") {
		switch seg {
		case "":
			return fmt.Errorf("empty path segment")
		case ".", "..":
			return fmt.Errorf("relative path segment %q", seg)
		}
	}
	return nil
}
