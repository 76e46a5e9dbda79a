package company

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/pkg/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const outFlag = "out"

// Extract contains `extract` command definition.
var Extract = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract entries of a company file into a directory",
	Long:  "Extract entries of a company file into a directory. Entry names become relative paths, existing files are overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE:  extractFunc,
}

func init() {
	Extract.Flags().String(outFlag, ".", "Output directory")
	common.AddPasswordFileFlag(Extract)
	common.AddNoProgressFlag(Extract)
}

func extractFunc(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString(outFlag)

	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	password, err := common.PasswordFor(cmd, m, args[0])
	if err != nil {
		return err
	}
	defer clear(password)

	entries, err := m.OpenCompany(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	var total int64
	for i := range entries {
		total += int64(len(entries[i].Data))
	}

	p := common.StartProgress(cmd, total)
	defer p.Finish()

	for _, e := range entries {
		name := filepath.FromSlash(e.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("entry %q escapes the output directory", e.Name)
		}

		dst := filepath.Join(out, name)
		if err := util.MkdirAllX(filepath.Dir(dst), 0o700); err != nil {
			return fmt.Errorf("create directory of %s: %w", e.Name, err)
		}
		if err := writeFile(dst, p.Reader(bytes.NewReader(e.Data))); err != nil {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
		common.Logger().Debug("entry extracted", zap.String("name", e.Name), zap.String("path", dst))
	}
	return nil
}

func writeFile(p string, r io.Reader) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
