// Package device provides the anonymous per-install identifier that stands
// in for user identity without a login.
package device

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"qrcheckin/internal/kv"
)

const idKey = "qr_attendance_device_id"

// Provider returns a stable device identifier backed by the local store.
type Provider struct {
	store kv.Store
}

// NewProvider creates a provider over the given store.
func NewProvider(store kv.Store) *Provider {
	return &Provider{store: store}
}

// Identifier returns the stored identifier, generating and persisting a new
// random one on first use. Repeated calls return the same value for the
// lifetime of the store.
func (p *Provider) Identifier(ctx context.Context) (string, error) {
	id, ok, err := p.store.Get(ctx, idKey)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := p.store.Set(ctx, idKey, id); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
