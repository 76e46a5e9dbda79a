package grace

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/argo-books/argo-core/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewGracefulContext(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		l, lb := testutil.NewBufferedLogger(t, zap.InfoLevel)
		ctx, stop := NewGracefulContext(context.Background(), l)
		defer stop()

		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))

		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("context is not cancelled by signal")
		}
		fields := lb.AssertMessage(zap.InfoLevel, "received signal, cancelling")
		require.Equal(t, "hangup", fields["signal"])
	})

	t.Run("stop", func(t *testing.T) {
		ctx, stop := NewGracefulContext(context.Background(), zap.NewNop())
		stop()
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("parent", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := NewGracefulContext(parent, zap.NewNop())
		defer stop()

		cancel()
		<-ctx.Done()
	})
}
