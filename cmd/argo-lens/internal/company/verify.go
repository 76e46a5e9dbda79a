package company

import (
	"errors"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/cmd/internal/cmderr"
	"github.com/spf13/cobra"
)

// VerifyPassword contains `verify-password` command definition.
var VerifyPassword = &cobra.Command{
	Use:   "verify-password <file>",
	Short: "Check the password of a company file",
	Long:  "Check the password against the verifier stored in the footer. The payload is not decrypted. Exits with code 8 if the password is incorrect.",
	Args:  cobra.ExactArgs(1),
	RunE:  verifyFunc,
}

func init() {
	common.AddPasswordFileFlag(VerifyPassword)
}

func verifyFunc(cmd *cobra.Command, args []string) error {
	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	password, err := common.ReadPassword(cmd, "Password", false)
	if err != nil {
		return err
	}
	defer clear(password)

	ok, err := m.VerifyPassword(args[0], password)
	if err != nil {
		return err
	}
	if !ok {
		return cmderr.ExitErr{Code: cmderr.CodePasswordIncorrect, Cause: errors.New("password is incorrect")}
	}
	cmd.Println("Password is correct.")
	return nil
}
