package session

import (
	"context"
	"sync"
)

// TokenStore is the durable slot holding the raw session token.
// Get returns "" with a nil error when no token is stored.
// Remove on an empty slot is not an error.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// guard serializes the client's own reads and writes of the token so that
// expiry handling can compare-and-clear without racing a concurrent login.
type guard struct {
	mu    sync.Mutex
	store TokenStore
}

func (g *guard) get(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Get(ctx)
}

func (g *guard) set(ctx context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Set(ctx, token)
}

func (g *guard) remove(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Remove(ctx)
}

// clearIf removes the token only while it still equals expected.
func (g *guard) clearIf(ctx context.Context, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.store.Get(ctx)
	if err != nil {
		return false, err
	}
	if current != expected {
		return false, nil
	}
	if err := g.store.Remove(ctx); err != nil {
		return false, err
	}
	return true, nil
}
