package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/argo-books/argo-core/cmd/argo-lens/config"
	"github.com/argo-books/argo-core/misc"
	"github.com/argo-books/argo-core/pkg/archive"
	"github.com/argo-books/argo-core/pkg/companyfile"
	"github.com/argo-books/argo-core/pkg/metrics"
	"github.com/argo-books/argo-core/pkg/staging"
	"github.com/argo-books/argo-core/pkg/util/grace"
	"github.com/argo-books/argo-core/pkg/util/logger"
	"github.com/cheggaaa/pb"
	"github.com/mitchellh/go-homedir"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	// ConfigFlag is a persistent flag of the root command.
	ConfigFlag = "config"

	passwordFileFlag = "password-file"
	noProgressFlag   = "no-progress"

	defaultConfigPath = "~/.config/argo-lens/config.yaml"
)

// Manager works with company files of any content.
type Manager = companyfile.Manager[[]archive.Entry]

var (
	cfg      *config.Config
	log      = zap.NewNop()
	registry *prometheus.Registry
	codec    *metrics.CodecMetrics
	stop     context.CancelFunc
)

// Init reads configuration and builds the logger. It is the persistent
// pre-run of the root command.
func Init(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	if path == "" {
		if p, err := homedir.Expand(defaultConfigPath); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}

	var opts []config.Option
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	var err error
	if cfg, err = config.New(opts...); err != nil {
		return err
	}
	if log, err = logger.NewLogger(cfg.Viper()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	registry = prometheus.NewRegistry()
	codec = metrics.NewCodecMetrics(registry, misc.Version)

	var ctx context.Context
	ctx, stop = grace.NewGracefulContext(cmd.Root().Context(), log)
	cmd.SetContext(ctx)

	log.Debug("configuration loaded", zap.String("file", path))
	return nil
}

// Finish writes metrics if configured and flushes the logger. It is the
// persistent post-run of the root command.
func Finish(*cobra.Command, []string) error {
	defer func() { _ = log.Sync() }()
	if stop != nil {
		stop()
	}

	if cfg == nil {
		return nil
	}
	p, err := config.MetricsTextfile(cfg)
	if err != nil || p == "" {
		return err
	}
	if err := prometheus.WriteToTextfile(p, registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Logger returns the logger built by Init.
func Logger() *zap.Logger {
	return log
}

// NewManager creates Manager configured by the "codec" and "paths" sections.
func NewManager() (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}

	c, err := config.CodecSection(cfg)
	if err != nil {
		return nil, err
	}
	p, err := config.PathsSection(cfg)
	if err != nil {
		return nil, err
	}

	return companyfile.New[[]archive.Entry](companyfile.RawSerializer{},
		companyfile.WithLogger(log),
		companyfile.WithMetrics(codec),
		companyfile.WithCompression(c.Compression, c.CompressionLevel),
		companyfile.WithCipher(c.Cipher),
		companyfile.WithChunkSize(c.ChunkSize),
		companyfile.WithKDF(c.KDF),
		companyfile.WithBackupDir(p.Backups),
		companyfile.WithStagingOptions(staging.WithMetrics(codec)),
	)
}

// StagingRoot returns the root of staging areas.
func StagingRoot() (string, error) {
	p, err := config.PathsSection(cfg)
	if err != nil {
		return "", err
	}
	return p.Staging, nil
}

// AddPasswordFileFlag adds the flag to read the password from a file instead
// of the terminal.
func AddPasswordFileFlag(cmd *cobra.Command) {
	cmd.Flags().String(passwordFileFlag, "", "Read password from the first line of the file")
}

// ReadPassword reads the password from the --password-file or the terminal.
// New passwords are asked twice.
func ReadPassword(cmd *cobra.Command, prompt string, confirm bool) ([]byte, error) {
	if p, _ := cmd.Flags().GetString(passwordFileFlag); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read password file: %w", err)
		}
		if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
			data = data[:i]
		}
		return data, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal, use --%s", passwordFileFlag)
	}

	pw, err := readTerminal(cmd, fd, prompt)
	if err != nil || !confirm {
		return pw, err
	}

	again, err := readTerminal(cmd, fd, "Repeat "+prompt)
	if err != nil {
		return nil, err
	}
	defer clear(again)
	if !bytes.Equal(pw, again) {
		clear(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func readTerminal(cmd *cobra.Command, fd int, prompt string) ([]byte, error) {
	cmd.PrintErr(prompt + ": ")
	pw, err := term.ReadPassword(fd)
	cmd.PrintErrln()
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

// PasswordFor reads the password only if the file is encrypted.
func PasswordFor(cmd *cobra.Command, m *Manager, path string) ([]byte, error) {
	meta, err := m.Info(path)
	if err != nil {
		return nil, err
	}
	if !meta.Encrypted {
		return nil, nil
	}
	return ReadPassword(cmd, "Password", false)
}

// NewTable returns a table writing to the command output.
func NewTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(cmd.OutOrStdout())
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// AddNoProgressFlag adds the flag disabling the progress bar.
func AddNoProgressFlag(cmd *cobra.Command) {
	cmd.Flags().Bool(noProgressFlag, false, "Do not show progress bar")
}

// Progress tracks processed bytes. It is a no-op if the progress bar is
// disabled.
type Progress struct {
	bar *pb.ProgressBar
}

// StartProgress starts the progress bar of total bytes on the error output
// of the command.
func StartProgress(cmd *cobra.Command, total int64) *Progress {
	if noProgress, _ := cmd.Flags().GetBool(noProgressFlag); noProgress {
		return &Progress{}
	}

	p := pb.New64(total).SetUnits(pb.U_BYTES)
	p.Output = cmd.ErrOrStderr()
	p.Start()
	return &Progress{bar: p}
}

// Reader counts bytes read from r.
func (p *Progress) Reader(r io.Reader) io.Reader {
	if p.bar == nil {
		return r
	}
	return p.bar.NewProxyReader(r)
}

// Add counts n processed bytes.
func (p *Progress) Add(n int) {
	if p.bar != nil {
		p.bar.Add(n)
	}
}

// Finish stops the progress bar.
func (p *Progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
