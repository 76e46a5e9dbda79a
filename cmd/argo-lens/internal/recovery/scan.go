package recovery

import (
	"fmt"
	"strconv"
	"time"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/pkg/staging"
	"github.com/spf13/cobra"
)

var scanCMD = &cobra.Command{
	Use:   "scan",
	Short: "List recoverable autosaves, most recent first",
	Long:  "List recoverable autosaves, most recent first. Sessions still in progress are skipped and nothing is modified.",
	Args:  cobra.NoArgs,
	RunE:  scanFunc,
}

func scanFunc(cmd *cobra.Command, _ []string) error {
	res, err := scan()
	if err != nil {
		return err
	}
	if len(res) == 0 {
		cmd.Println("No recoverable autosaves found.")
		return nil
	}

	t := common.NewTable(cmd, "ID", "Company", "Autosaved", "Size")
	for _, s := range res {
		t.Append([]string{
			s.ID.String(),
			s.CompanyPath,
			s.AutosavedAt.Format(time.RFC3339),
			strconv.FormatInt(s.AutosaveSize, 10),
		})
	}
	t.Render()
	return nil
}

func scan() ([]staging.RecoverableSnapshot, error) {
	root, err := common.StagingRoot()
	if err != nil {
		return nil, err
	}

	m, err := common.NewManager()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return m.ScanForRecoverableSnapshots(root)
}

// find returns the snapshot of the abandoned session by its ID.
func find(id string) (staging.RecoverableSnapshot, error) {
	res, err := scan()
	if err != nil {
		return staging.RecoverableSnapshot{}, err
	}
	for i := range res {
		if res[i].ID.String() == id {
			return res[i], nil
		}
	}
	return staging.RecoverableSnapshot{}, fmt.Errorf("no recoverable autosave %s", id)
}
