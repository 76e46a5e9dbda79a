package main

import (
	"os"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/cmd/argo-lens/internal/backup"
	"github.com/argo-books/argo-core/cmd/argo-lens/internal/company"
	"github.com/argo-books/argo-core/cmd/argo-lens/internal/recovery"
	"github.com/argo-books/argo-core/cmd/internal/cmderr"
	"github.com/argo-books/argo-core/misc"
	"github.com/spf13/cobra"
)

var command = &cobra.Command{
	Use:   "argo-lens",
	Short: "Argo company file lens",
	Long: `Argo Lens provides tools to inspect, unpack and repack company files, check
their passwords, manage backup containers and recover autosaves of abandoned
editing sessions.`,
	RunE:               entryPoint,
	PersistentPreRunE:  common.Init,
	PersistentPostRunE: common.Finish,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func entryPoint(cmd *cobra.Command, _ []string) error {
	printVersion, _ := cmd.Flags().GetBool("version")
	if printVersion {
		cmd.Print(misc.BuildInfo("Argo Lens"))

		return nil
	}

	return cmd.Usage()
}

func init() {
	// use stdout as default output for cmd.Print()
	command.SetOut(os.Stdout)
	command.Flags().Bool("version", false, "Application version")
	command.PersistentFlags().StringP(common.ConfigFlag, "c", "", "Config file (default is $HOME/.config/argo-lens/config.yaml)")
	command.AddCommand(
		company.Info,
		company.List,
		company.Extract,
		company.Pack,
		company.VerifyPassword,
		recovery.Root,
		backup.Root,
	)
}

func main() {
	err := command.Execute()
	cmderr.ExitOnErr(err)
}
