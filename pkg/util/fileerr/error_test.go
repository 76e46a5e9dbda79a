package fileerr_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/stretchr/testify/require"
)

func TestKindMatching(t *testing.T) {
	err := fileerr.New(fileerr.KindCorruptFooter, "bad marker")

	require.ErrorIs(t, err, fileerr.ErrCorruptFooter)
	require.NotErrorIs(t, err, fileerr.ErrCorruptArchive)
	require.Equal(t, fileerr.KindCorruptFooter, fileerr.KindOf(err))

	wrapped := fmt.Errorf("read trailer: %w", err)
	require.ErrorIs(t, wrapped, fileerr.ErrCorruptFooter)
	require.Equal(t, fileerr.KindCorruptFooter, fileerr.KindOf(wrapped))
}

func TestWrap(t *testing.T) {
	require.NoError(t, fileerr.Wrap(fileerr.KindIO, nil))

	err := fileerr.Wrap(fileerr.KindCorruptData, io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, fileerr.ErrCorruptData)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	t.Run("keeps kind", func(t *testing.T) {
		err := fileerr.Wrap(fileerr.KindIO, fileerr.ErrAuthentication)
		require.ErrorIs(t, err, fileerr.ErrAuthentication)
		require.NotErrorIs(t, err, fileerr.ErrIO)
	})
}

func TestWithOp(t *testing.T) {
	err := fileerr.WithOp("open", "/tmp/a.argo", errors.New("permission denied"))
	require.ErrorIs(t, err, fileerr.ErrIO)
	require.EqualError(t, err, "open: i/o failure (/tmp/a.argo): permission denied")

	err = fileerr.WithOp("open", "/tmp/a.argo", fileerr.New(fileerr.KindInvalidPassword, "verifier mismatch"))
	require.ErrorIs(t, err, fileerr.ErrInvalidPassword)
	require.EqualError(t, err, "open: invalid password (/tmp/a.argo): verifier mismatch")

	t.Run("canceled", func(t *testing.T) {
		for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
			err := fileerr.WithOp("save", "/tmp/a.argo", fmt.Errorf("lock: %w", cause))
			require.ErrorIs(t, err, fileerr.ErrCanceled)
			require.ErrorIs(t, err, cause)
			require.NotErrorIs(t, err, fileerr.ErrIO)
			require.Equal(t, fileerr.KindCanceled, fileerr.KindOf(err))
		}

		err := fileerr.WithOp("open", "/tmp/a.argo",
			fileerr.Newf(fileerr.KindMigrationFailed, "step 1->2: %w", context.Canceled))
		require.ErrorIs(t, err, fileerr.ErrMigrationFailed)
	})
}

func TestKindString(t *testing.T) {
	require.Equal(t, "restore failed", fileerr.KindRestoreFailed.String())
	require.Equal(t, "kind(200)", fileerr.Kind(200).String())
}
