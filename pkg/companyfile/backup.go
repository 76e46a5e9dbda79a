package companyfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/argo-books/argo-core/pkg/util"
	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	// ManifestEntry is the name of the backup container manifest.
	ManifestEntry = "manifest.json"
	// BackupCompaniesDir is the subtree of attachments holding company files.
	BackupCompaniesDir = "companies/"

	manifestVersion = 1
)

// BackupItem describes a company file in a backup container.
type BackupItem struct {
	// Name is the base name of the company file.
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	Checksum      string    `json:"xxhash64"`
	FormatVersion string    `json:"format_version"`
	Encrypted     bool      `json:"encrypted"`
	Roster        []string  `json:"roster,omitempty"`
	ModifiedAt    time.Time `json:"modified_at"`
}

type manifest struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Companies []BackupItem `json:"companies"`
}

func companyEntryName(name string) string {
	return archive.AttachmentsPrefix + BackupCompaniesDir + name
}

func checksum(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// CreateBackup writes a backup container to dst holding the given company
// files as is. Company files keep their own encryption, password protects
// the container itself.
func (m *Manager[S]) CreateBackup(ctx context.Context, dst string, sources []string, password []byte) (err error) {
	defer m.finish(opBackup, dst, time.Now(), &err)

	mf := manifest{Version: manifestVersion, CreatedAt: m.now().UTC()}
	entries := make([]archive.Entry, 0, len(sources)+1)

	for _, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		meta, _, err := footer.Read(data)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}

		name := filepath.Base(src)
		mf.Companies = append(mf.Companies, BackupItem{
			Name:          name,
			Size:          int64(len(data)),
			Checksum:      checksum(data),
			FormatVersion: meta.FormatVersion,
			Encrypted:     meta.Encrypted,
			Roster:        meta.Roster,
			ModifiedAt:    meta.ModifiedAt,
		})
		entries = append(entries, archive.Attachment(BackupCompaniesDir+name, data))
	}

	mfData, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	entries = append([]archive.Entry{archive.Text(ManifestEntry, mfData)}, entries...)

	return m.saveEntries(ctx, entries, dst, password, []SaveOption{WithKind(footer.KindBackup)})
}

// ListBackup returns descriptions of company files in the backup container.
func (m *Manager[S]) ListBackup(ctx context.Context, src string, password []byte) (_ []BackupItem, err error) {
	defer m.finish(opBackup, src, time.Now(), &err)

	mf, _, err := m.readBackup(ctx, src, password)
	if err != nil {
		return nil, err
	}
	return mf.Companies, nil
}

// RestoreBackup extracts company files of the backup container into dir and
// returns their paths. Every file is verified against the manifest and
// written atomically. Existing files are replaced.
func (m *Manager[S]) RestoreBackup(ctx context.Context, src string, password []byte, dir string) (_ []string, err error) {
	defer m.finish(opRestore, src, time.Now(), &err)

	mf, data, err := m.readBackup(ctx, src, password)
	if err != nil {
		return nil, err
	}

	if err := util.MkdirAllX(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create restore directory: %w", err)
	}

	res := make([]string, 0, len(mf.Companies))
	for _, item := range mf.Companies {
		p := filepath.Join(dir, item.Name)
		if err := m.restoreOne(ctx, p, data[item.Name]); err != nil {
			return res, fmt.Errorf("restore %s: %w", item.Name, err)
		}
		m.log.Info("company file restored from backup", zap.String("backup", src), zap.String("path", p))
		res = append(res, p)
	}
	return res, nil
}

func (m *Manager[S]) restoreOne(ctx context.Context, p string, data []byte) error {
	unlock, err := m.locks.lock(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()
	defer m.forget(p)

	return m.writer.write(ctx, p, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// readBackup decodes the container and cross-checks its manifest with the
// contained files.
func (m *Manager[S]) readBackup(ctx context.Context, src string, password []byte) (manifest, map[string][]byte, error) {
	f, err := m.openFile(src)
	if err != nil {
		return manifest{}, nil, err
	}
	defer f.Close()

	if f.meta.Kind != footer.KindBackup {
		return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive, "%s file is not a backup", f.meta.Kind)
	}

	entries, err := m.readEntries(ctx, f, password)
	if err != nil {
		return manifest{}, nil, err
	}

	var (
		mf    manifest
		found bool
		files = make(map[string][]byte)
	)
	for _, e := range entries {
		if e.Name == ManifestEntry {
			if err := json.Unmarshal(e.Data, &mf); err != nil {
				return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive, "decode manifest: %w", err)
			}
			found = true
			continue
		}

		dir, name := path.Split(e.Name)
		if dir != archive.AttachmentsPrefix+BackupCompaniesDir {
			return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive, "unexpected entry %q", e.Name)
		}
		files[name] = e.Data
	}
	if !found {
		return manifest{}, nil, fileerr.New(fileerr.KindCorruptArchive, "missing manifest")
	}
	if mf.Version != manifestVersion {
		return manifest{}, nil, fileerr.Newf(fileerr.KindVersionIncompatible, "unsupported manifest version %d", mf.Version)
	}
	if len(mf.Companies) != len(files) {
		return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive,
			"manifest lists %d companies, backup contains %d", len(mf.Companies), len(files))
	}

	for _, item := range mf.Companies {
		data, ok := files[item.Name]
		switch {
		case !ok || item.Name != filepath.Base(item.Name):
			return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive, "missing company %q", item.Name)
		case int64(len(data)) != item.Size || checksum(data) != item.Checksum:
			return manifest{}, nil, fileerr.Newf(fileerr.KindCorruptArchive, "company %q does not match the manifest", item.Name)
		}
	}
	return mf, files, nil
}
