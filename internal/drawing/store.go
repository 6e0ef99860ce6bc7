// Package drawing keeps user-created chart annotations consistent between an
// optimistic local cache and an authoritative remote store.
package drawing

import (
	"context"

	"charting-systemv1/internal/model"
)

// LocalStore persists the per-symbol drawing cache on this machine. It must
// tolerate symbols it has never seen (Load returns an empty slice, not an
// error).
type LocalStore interface {
	Load(ctx context.Context, symbol string) ([]model.Drawing, error)
	Save(ctx context.Context, symbol string, drawings []model.Drawing) error
}

// RemoteStore is the server-side drawing API. There is no partial update:
// reconciliation always goes through Delete plus Create.
type RemoteStore interface {
	List(ctx context.Context, symbol string) ([]model.Drawing, error)
	Create(ctx context.Context, symbol string, d model.Drawing) (remoteID string, err error)
	Delete(ctx context.Context, symbol, remoteID string) error
}
