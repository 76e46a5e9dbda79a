package companyfile

import (
	"context"
	"fmt"

	"github.com/argo-books/argo-core/pkg/staging"
	"go.uber.org/zap"
)

func (m *Manager[S]) stagingOptions() []staging.Option {
	return append([]staging.Option{staging.WithLogger(m.log)}, m.stagingOpts...)
}

// AcquireStaging creates staging area of an editing session of the company
// file under root. The area must be released by the caller.
func (m *Manager[S]) AcquireStaging(root, companyPath string) (*staging.Area, error) {
	return staging.Acquire(root, companyPath, m.stagingOptions()...)
}

// Autosave saves the snapshot to the autosave file of the staging area.
func (m *Manager[S]) Autosave(ctx context.Context, area *staging.Area, snapshot S, password []byte) error {
	return area.Autosave(ctx, func(ctx context.Context, p string) error {
		return m.SaveCompany(ctx, snapshot, p, password, WithKind(KindOfPath(area.CompanyPath())))
	})
}

// ScanForRecoverableSnapshots lists staging areas under root abandoned with
// unsaved changes, most recent first. Nothing is modified.
func (m *Manager[S]) ScanForRecoverableSnapshots(root string) ([]staging.RecoverableSnapshot, error) {
	res, err := staging.Scan(root, m.stagingOptions()...)
	if err != nil {
		return nil, fmt.Errorf("scan staging root: %w", err)
	}
	if len(res) > 0 {
		m.log.Info("found recoverable company snapshots", zap.String("root", root), zap.Int("count", len(res)))
	}
	return res, nil
}

// Recover opens the autosave of an abandoned session.
func (m *Manager[S]) Recover(ctx context.Context, s staging.RecoverableSnapshot, password []byte) (S, error) {
	return m.OpenCompany(ctx, s.AutosavePath, password)
}
