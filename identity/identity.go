// Package identity resolves caller tokens to a displayable modifier
// identity. The core never hardcodes a fallback user: unauthenticated
// callers resolve to the shared Anonymous identity here.
package identity

import (
	"context"
	"sync"
)

// Identity names the party a mutation is attributed to.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Anonymous is the shared, reusable identity for callers that present no
// token or an unknown one. Resolution never fails for such callers.
var Anonymous = Identity{ID: "anonymous", Name: "Anonymous User"}

// Resolver maps caller tokens to identities.
type Resolver interface {
	Resolve(ctx context.Context, token string) Identity
}

// StaticResolver resolves tokens from an in-memory table, falling back to
// Anonymous for empty or unknown tokens.
type StaticResolver struct {
	mu      sync.RWMutex
	byToken map[string]Identity
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{byToken: make(map[string]Identity)}
}

// Register associates a token with an identity.
func (r *StaticResolver) Register(token string, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = id
}

func (r *StaticResolver) Resolve(_ context.Context, token string) Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byToken[token]; ok {
		return id
	}
	return Anonymous
}
