package backup

import (
	"github.com/spf13/cobra"
)

// Root contains `backup` command definition.
var Root = &cobra.Command{
	Use:   "backup",
	Short: "Operations with backup containers",
	Long: `Operations with backup containers. A container holds company files as is,
each keeps its own encryption, and may be protected by its own password.`,
}

func init() {
	Root.AddCommand(
		createCMD,
		listCMD,
		restoreCMD,
	)
}
