package staging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const markerFile = "session.db"

var (
	sessionBucket = []byte("session")

	companyKey      = []byte("company")
	createdKey      = []byte("created")
	modifiedKey     = []byte("modified")
	dirtyKey        = []byte("dirty")
	autosavedKey    = []byte("autosaved")
	autosaveNameKey = []byte("autosave_name")
)

// marker is the session state stored in the staging area.
type marker struct {
	db *bbolt.DB
}

func openMarker(path string, readOnly bool, timeout time.Duration) (*marker, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt at %s: %w", path, err)
	}
	return &marker{db: db}, nil
}

func (m *marker) put(kv ...[]byte) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return fmt.Errorf("can't create session bucket: %w", err)
		}

		for i := 0; i+1 < len(kv); i += 2 {
			if err := b.Put(kv[i], kv[i+1]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *marker) setDirty(dirty bool, t time.Time) error {
	v := []byte{0}
	if dirty {
		v[0] = 1
	}
	return m.put(dirtyKey, v, modifiedKey, encodeTime(t))
}

// state reads the whole session state.
func (m *marker) state() (RecoverableSnapshot, bool, error) {
	var (
		s     RecoverableSnapshot
		dirty bool
	)
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return fmt.Errorf("missing %s bucket", sessionBucket)
		}

		s.CompanyPath = string(b.Get(companyKey))
		s.AutosaveName = string(b.Get(autosaveNameKey))
		dirty = bytes.Equal(b.Get(dirtyKey), []byte{1})

		var err error
		if s.CreatedAt, err = decodeTime(b.Get(createdKey)); err != nil {
			return fmt.Errorf("created: %w", err)
		}
		if s.ModifiedAt, err = decodeTime(b.Get(modifiedKey)); err != nil {
			return fmt.Errorf("modified: %w", err)
		}
		if v := b.Get(autosavedKey); v != nil {
			if s.AutosavedAt, err = decodeTime(v); err != nil {
				return fmt.Errorf("autosaved: %w", err)
			}
		}
		return nil
	})
	return s, dirty, err
}

func (m *marker) close() error {
	return m.db.Close()
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(v []byte) (time.Time, error) {
	if len(v) != 8 {
		return time.Time{}, fmt.Errorf("unexpected byte len: %d instead of %d", len(v), 8)
	}
	return time.Unix(0, int64(binary.LittleEndian.Uint64(v))), nil
}
