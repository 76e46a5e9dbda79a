package company

import (
	"strconv"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/spf13/cobra"
)

// List contains `list` command definition.
var List = &cobra.Command{
	Use:   "list <file>",
	Short: "List entries of a company file",
	Args:  cobra.ExactArgs(1),
	RunE:  listFunc,
}

func init() {
	common.AddPasswordFileFlag(List)
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

	entries, err := m.OpenCompany(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	t := common.NewTable(cmd, "Name", "Kind", "Size")
	for _, e := range entries {
		t.Append([]string{e.Name, e.Kind.String(), strconv.Itoa(len(e.Data))})
	}
	t.Render()
	return nil
}
