package backup

import (
	"strconv"
	"strings"
	"time"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/spf13/cobra"
)

var listCMD = &cobra.Command{
	Use:   "list <backup>",
	Short: "List company files of backup container",
	Args:  cobra.ExactArgs(1),
	RunE:  listFunc,
}

func init() {
	common.AddPasswordFileFlag(listCMD)
}

func listFunc(cmd *cobra.Command, args []string) error {
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

	items, err := m.ListBackup(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	t := common.NewTable(cmd, "Name", "Version", "Encrypted", "Roster", "Modified", "Size")
	for _, it := range items {
		t.Append([]string{
			it.Name,
			it.FormatVersion,
			strconv.FormatBool(it.Encrypted),
			strings.Join(it.Roster, ", "),
			it.ModifiedAt.Format(time.RFC3339),
			strconv.FormatInt(it.Size, 10),
		})
	}
	t.Render()
	return nil
}
