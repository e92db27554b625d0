package notify

import (
	"context"
	"fmt"
	"time"
)

// AppGateway delivers the in-app channel: a database write that makes the
// notification visible in the worker's app. No external dependency, so it
// only fails on storage failure.
type AppGateway struct {
	store Store
}

// NewAppGateway creates the in-app delivery gateway over the given store.
func NewAppGateway(store Store) *AppGateway {
	return &AppGateway{store: store}
}

// Channel implements Gateway.
func (g *AppGateway) Channel() string { return ChannelApp }

// Send implements Gateway by recording the in-app delivery timestamp.
func (g *AppGateway) Send(ctx context.Context, n *Notification) error {
	if err := g.store.MarkAppDelivered(ctx, n.ID, time.Now()); err != nil {
		return fmt.Errorf("mark app delivered: %w", err)
	}
	return nil
}
