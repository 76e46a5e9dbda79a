package backup

import (
	"errors"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/spf13/cobra"
)

const encryptFlag = "encrypt"

var createCMD = &cobra.Command{
	Use:   "create <backup> <file>...",
	Short: "Create backup container of company files",
	Args:  cobra.MinimumNArgs(2),
	RunE:  createFunc,
}

func init() {
	createCMD.Flags().Bool(encryptFlag, false, "Protect the container with a password")
	common.AddPasswordFileFlag(createCMD)
}

func createFunc(cmd *cobra.Command, args []string) error {
	encrypt, _ := cmd.Flags().GetBool(encryptFlag)

	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	var password []byte
	if encrypt {
		if password, err = common.ReadPassword(cmd, "New backup password", true); err != nil {
			return err
		}
		defer clear(password)
		if len(password) == 0 {
			return errors.New("empty password")
		}
	}

	if err := m.CreateBackup(cmd.Context(), args[0], args[1:], password); err != nil {
		return err
	}
	cmd.Printf("%d company files backed up to %s\n", len(args)-1, args[0])
	return nil
}
