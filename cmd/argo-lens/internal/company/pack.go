package company

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/companyfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	encryptFlag = "encrypt"
	rosterFlag  = "roster"
)

// Pack contains `pack` command definition.
var Pack = &cobra.Command{
	Use:   "pack <dir> <file>",
	Short: "Pack a directory into a company file",
	Long: `Pack a directory into a company file. Files under "attachments/" become
binary attachments, all other files become text entries. The file kind is
chosen by the extension of the output file.`,
	Args: cobra.ExactArgs(2),
	RunE: packFunc,
}

func init() {
	Pack.Flags().Bool(encryptFlag, false, "Protect the file with a password")
	Pack.Flags().StringSlice(rosterFlag, nil, "Names stored in the clear, e.g. assigned accountants")
	common.AddPasswordFileFlag(Pack)
	common.AddNoProgressFlag(Pack)
}

func packFunc(cmd *cobra.Command, args []string) error {
	encrypt, _ := cmd.Flags().GetBool(encryptFlag)
	roster, _ := cmd.Flags().GetStringSlice(rosterFlag)

	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	var password []byte
	if encrypt {
		if password, err = common.ReadPassword(cmd, "New password", true); err != nil {
			return err
		}
		defer clear(password)
		if len(password) == 0 {
			return errors.New("empty password")
		}
	}

	entries, err := readDir(cmd, args[0])
	if err != nil {
		return err
	}

	if err := m.SaveCompany(cmd.Context(), entries, args[1], password, companyfile.WithRoster(roster...)); err != nil {
		return err
	}
	cmd.Printf("%d entries packed into %s\n", len(entries), args[1])
	return nil
}

// readDir reads regular files of the directory as entries sorted by name.
func readDir(cmd *cobra.Command, dir string) ([]archive.Entry, error) {
	var (
		paths []string
		total int64
	)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		paths = append(paths, p)
		total += fi.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	p := common.StartProgress(cmd, total)
	defer p.Finish()

	entries := make([]archive.Entry, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil, err
		}

		data, err := readFile(path, p)
		if err != nil {
			return nil, err
		}

		name := filepath.ToSlash(rel)
		kind := archive.KindText
		if archive.IsAttachment(name) {
			kind = archive.KindBinary
		}
		entries = append(entries, archive.Entry{Name: name, Kind: kind, Data: data})
		common.Logger().Debug("entry packed", zap.String("name", name), zap.Stringer("kind", kind))
	}
	return entries, nil
}

func readFile(path string, p *common.Progress) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(p.Reader(f))
}
