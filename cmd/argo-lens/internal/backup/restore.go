package backup

import (
	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/spf13/cobra"
)

const outFlag = "out"

var restoreCMD = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Restore company files from backup container",
	Long:  "Restore company files from backup container. Every file is verified against the manifest first, existing files are replaced.",
	Args:  cobra.ExactArgs(1),
	RunE:  restoreFunc,
}

func init() {
	restoreCMD.Flags().String(outFlag, ".", "Output directory")
	common.AddPasswordFileFlag(restoreCMD)
}

func restoreFunc(cmd *cobra.Command, args []string) error {
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

	paths, err := m.RestoreBackup(cmd.Context(), args[0], password, out)
	for _, p := range paths {
		cmd.Println("Restored", p)
	}
	return err
}
