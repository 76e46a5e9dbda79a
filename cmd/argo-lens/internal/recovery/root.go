package recovery

import (
	"github.com/spf13/cobra"
)

// Root contains `recover` command definition.
var Root = &cobra.Command{
	Use:   "recover",
	Short: "Operations with autosaves of abandoned editing sessions",
}

func init() {
	Root.AddCommand(
		scanCMD,
		restoreCMD,
		discardCMD,
	)
}
