package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/argo-books/argo-core/cmd/internal/cmderr"
	"github.com/stretchr/testify/require"
)

type env struct {
	t        *testing.T
	dir      string
	config   string
	password string
}

func newEnv(t *testing.T) *env {
	dir := t.TempDir()
	e := &env{
		t:        t,
		dir:      dir,
		config:   filepath.Join(dir, "config.yaml"),
		password: filepath.Join(dir, "password"),
	}

	cfg := "logger:\n  level: error\n" +
		"codec:\n  kdf:\n    iterations: 1000\n" +
		"paths:\n  staging: " + filepath.Join(dir, "staging") + "\n" +
		"metrics:\n  textfile: " + filepath.Join(dir, "argo.prom") + "\n"
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(e.password, []byte("Sesame123!\n"), 0o600))
	return e
}

func (e *env) run(args ...string) (string, error) {
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&out)
	command.SetArgs(append(args, "-c", e.config))
	err := command.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	out, err := e.run(args...)
	require.NoError(e.t, err, out)
	return out
}

func (e *env) writeTree(files map[string]string) string {
	src := filepath.Join(e.dir, "src")
	for name, data := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(e.t, os.MkdirAll(filepath.Dir(p), 0o700))
		require.NoError(e.t, os.WriteFile(p, []byte(data), 0o600))
	}
	return src
}

func TestPackExtract(t *testing.T) {
	e := newEnv(t)
	files := map[string]string{
		"ledger.json":             `{"total":"107.98"}`,
		"attachments/RCP-001.jpg": "\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00",
	}
	src := e.writeTree(files)
	company := filepath.Join(e.dir, "acme.argo")

	out := e.mustRun("pack", src, company, "--encrypt", "--password-file", e.password, "--roster", "Ada Lovelace", "--no-progress")
	require.Contains(t, out, "2 entries packed")

	out = e.mustRun("info", company)
	require.Contains(t, out, "Ada Lovelace")
	require.Contains(t, out, "aes-256-gcm")
	require.Contains(t, out, "1.0.0")

	out = e.mustRun("list", company, "--password-file", e.password)
	require.Contains(t, out, "ledger.json")
	require.Contains(t, out, "attachments/RCP-001.jpg")

	dst := filepath.Join(e.dir, "dst")
	e.mustRun("extract", company, "--out", dst, "--password-file", e.password, "--no-progress")
	for name, data := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		require.NoError(t, err)
		require.Equal(t, data, string(got))
	}

	out = e.mustRun("verify-password", company, "--password-file", e.password)
	require.Contains(t, out, "Password is correct.")

	wrong := filepath.Join(e.dir, "wrong")
	require.NoError(t, os.WriteFile(wrong, []byte("sesame123!"), 0o600))

	_, err := e.run("verify-password", company, "--password-file", wrong)
	require.Equal(t, cmderr.CodePasswordIncorrect, cmderr.ExitCode(err))

	_, err = e.run("list", company, "--password-file", wrong)
	require.Equal(t, cmderr.CodeInvalidPassword, cmderr.ExitCode(err))

	prom, err := os.ReadFile(filepath.Join(e.dir, "argo.prom"))
	require.NoError(t, err)
	require.Contains(t, string(prom), "argo_")
}

func TestBackupCommands(t *testing.T) {
	e := newEnv(t)
	src := e.writeTree(map[string]string{"ledger.json": "{}"})
	acme := filepath.Join(e.dir, "acme.argo")
	globex := filepath.Join(e.dir, "globex.argo")

	e.mustRun("pack", src, acme, "--encrypt=false", "--no-progress")
	e.mustRun("pack", src, globex, "--encrypt", "--password-file", e.password, "--no-progress")

	bk := filepath.Join(e.dir, "all.argobk")
	out := e.mustRun("backup", "create", bk, acme, globex, "--encrypt", "--password-file", e.password)
	require.Contains(t, out, "2 company files backed up")

	out = e.mustRun("backup", "list", bk, "--password-file", e.password)
	require.Contains(t, out, "acme.argo")
	require.Contains(t, out, "globex.argo")

	restored := filepath.Join(e.dir, "restored")
	e.mustRun("backup", "restore", bk, "--out", restored, "--password-file", e.password)
	for _, p := range []string{acme, globex} {
		exp, err := os.ReadFile(p)
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(restored, filepath.Base(p)))
		require.NoError(t, err)
		require.Equal(t, exp, got)
	}
}

func TestRecoverScanEmpty(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("recover", "scan")
	require.Contains(t, out, "No recoverable autosaves found.")

	_, err := e.run("recover", "discard", "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("--version")
	require.Contains(t, out, "Argo Lens")
	require.Contains(t, out, "Version:")
}
