package companyfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
)

// ErrNoSpace is returned when the file system is full. It is classified as
// fileerr.ErrIO.
var ErrNoSpace = errors.New("no space left on device")

type atomicWriter struct {
	perm   fs.FileMode
	noSync bool
}

// write fills a temporary file of the destination directory with fill and
// renames it to p. The destination is never modified in place: on any
// failure, including cancellation of ctx observed before the rename, the old
// file stays intact and the temporary one is removed.
func (w atomicWriter) write(ctx context.Context, p string, fill func(io.Writer) error) error {
	// Temporary name is 'name#i'. Concurrent writers of the same name (e.g.
	// another process) take the next index instead of corrupting each other.
	const retryCount = 5
	for i := range retryCount {
		tmpPath := p + "#" + strconv.FormatUint(uint64(i), 10)
		err := w.writeAndRename(ctx, tmpPath, p, fill)
		if !errors.Is(err, syscall.EEXIST) || i == retryCount-1 {
			return err
		}
	}

	return fmt.Errorf("couldn't write file after %d retries", retryCount)
}

func (w atomicWriter) writeAndRename(ctx context.Context, tmpPath, p string, fill func(io.Writer) error) error {
	err := w.writeFile(tmpPath, fill)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			switch {
			case errors.Is(pe.Err, syscall.ENOSPC):
				err = fileerr.Wrap(fileerr.KindIO, ErrNoSpace)
			case errors.Is(pe.Err, syscall.EEXIST):
				return syscall.EEXIST
			}
		}
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write data into file %q: %w", tmpPath, err)
	}

	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	err = os.Rename(tmpPath, p)
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename file %q->%q: %w", tmpPath, p, err)
	}

	if !w.noSync {
		syncDir(filepath.Dir(p))
	}
	return nil
}

// writeFile creates p exclusively and fills it.
func (w atomicWriter) writeFile(p string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, w.perm)
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(f, 64*1024)
	err = fill(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil && !w.noSync {
		err = f.Sync()
	}
	if err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir makes the rename durable. Not all platforms support syncing
// directories, failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// copyFile atomically copies src to dst and returns the copied bytes count.
func (w atomicWriter) copyFile(ctx context.Context, src, dst string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	err = w.write(ctx, dst, func(wr io.Writer) error {
		n, err = io.Copy(wr, f)
		return err
	})
	return n, err
}
