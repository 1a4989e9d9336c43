package middleware

import "sync"

// ScopeRegistry maps a route (method plus echo path template) to the scopes
// it requires. A registered route with no scopes only needs a valid token.
// Routes that are not registered are public.
type ScopeRegistry struct {
	mu     sync.RWMutex
	routes map[string][]string
}

func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{routes: make(map[string][]string)}
}

// Require marks method+path as protected by scopes.
func (r *ScopeRegistry) Require(method, path string, scopes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeKey(method, path)] = append([]string(nil), scopes...)
}

// Lookup returns the scopes for method+path and whether the route is protected.
func (r *ScopeRegistry) Lookup(method, path string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scopes, ok := r.routes[routeKey(method, path)]
	return scopes, ok
}

func routeKey(method, path string) string {
	return method + " " + path
}
