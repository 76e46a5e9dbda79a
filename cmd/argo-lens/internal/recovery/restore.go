package recovery

import (
	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/pkg/companyfile"
	"github.com/argo-books/argo-core/pkg/staging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const outFlag = "out"

var restoreCMD = &cobra.Command{
	Use:   "restore <id>",
	Short: "Save the autosave as a company file and discard the session",
	Long: `Save the autosave as a company file and discard the session. By default the
company file the session edited is replaced. The password of the autosave is
kept.`,
	Args: cobra.ExactArgs(1),
	RunE: restoreFunc,
}

var discardCMD = &cobra.Command{
	Use:   "discard <id>",
	Short: "Remove the autosave of an abandoned session",
	Args:  cobra.ExactArgs(1),
	RunE:  discardFunc,
}

func init() {
	restoreCMD.Flags().String(outFlag, "", "Company file to write instead of the edited one")
	common.AddPasswordFileFlag(restoreCMD)
}

func restoreFunc(cmd *cobra.Command, args []string) error {
	s, err := find(args[0])
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString(outFlag)
	if out == "" {
		out = s.CompanyPath
	}

	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	password, err := common.PasswordFor(cmd, m, s.AutosavePath)
	if err != nil {
		return err
	}
	defer clear(password)

	entries, err := m.Recover(cmd.Context(), s, password)
	if err != nil {
		return err
	}
	meta, err := m.Info(s.AutosavePath)
	if err != nil {
		return err
	}
	if err := m.SaveCompany(cmd.Context(), entries, out, password, companyfile.WithRoster(meta.Roster...)); err != nil {
		return err
	}

	if err := staging.Discard(s, staging.WithLogger(common.Logger())); err != nil {
		common.Logger().Warn("could not discard recovered session", zap.Stringer("id", s.ID), zap.Error(err))
	}
	cmd.Printf("Autosave %s restored to %s\n", s.ID, out)
	return nil
}

func discardFunc(cmd *cobra.Command, args []string) error {
	s, err := find(args[0])
	if err != nil {
		return err
	}
	if err := staging.Discard(s, staging.WithLogger(common.Logger())); err != nil {
		return err
	}
	cmd.Printf("Autosave %s discarded\n", s.ID)
	return nil
}
