package company

import (
	"strconv"
	"strings"
	"time"

	common "github.com/argo-books/argo-core/cmd/argo-lens/internal"
	"github.com/argo-books/argo-core/pkg/footer"
	"github.com/spf13/cobra"
)

// Info contains `info` command definition.
var Info = &cobra.Command{
	Use:   "info <file>",
	Short: "Print company file footer",
	Long:  "Print format version, encryption parameters and roster of the file. Neither the password nor the payload is read.",
	Args:  cobra.ExactArgs(1),
	RunE:  infoFunc,
}

func infoFunc(cmd *cobra.Command, args []string) error {
	m, err := common.NewManager()
	if err != nil {
		return err
	}
	defer m.Close()

	meta, err := m.Info(args[0])
	if err != nil {
		return err
	}

	t := common.NewTable(cmd)
	for _, row := range infoRows(meta) {
		t.Append(row)
	}
	t.Render()
	return nil
}

func infoRows(meta footer.Metadata) [][]string {
	rows := [][]string{
		{"Kind", string(meta.Kind)},
		{"Format version", meta.FormatVersion},
		{"Footer schema", strconv.Itoa(meta.Schema)},
		{"Compression", meta.Compression.String()},
		{"Encrypted", strconv.FormatBool(meta.Encrypted)},
	}
	if meta.Encrypted {
		e := meta.Encryption
		rows = append(rows,
			[]string{"Cipher", string(e.Cipher)},
			[]string{"Chunk size", strconv.FormatUint(uint64(e.ChunkSize), 10)},
			[]string{"KDF", string(e.KDF.Algorithm)},
			[]string{"KDF iterations", strconv.FormatUint(uint64(e.KDF.Iterations), 10)},
		)
		if e.KDF.Memory > 0 {
			rows = append(rows,
				[]string{"KDF memory (KiB)", strconv.FormatUint(uint64(e.KDF.Memory), 10)},
				[]string{"KDF threads", strconv.Itoa(int(e.KDF.Threads))},
			)
		}
	}
	return append(rows,
		[]string{"Roster", strings.Join(meta.Roster, ", ")},
		[]string{"Created", meta.CreatedAt.Format(time.RFC3339)},
		[]string{"Modified", meta.ModifiedAt.Format(time.RFC3339)},
		[]string{"Payload size", strconv.FormatUint(meta.PayloadSize, 10)},
		[]string{"Footer size", strconv.FormatUint(uint64(meta.FooterLength), 10)},
	)
}
