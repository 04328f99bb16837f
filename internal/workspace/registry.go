package workspace

import (
	"context"
	"strings"
	"sync"

	"citeme/api/internal/logging"
)

// Registry creates workspaces on first use and keeps them for the life of
// the process.
type Registry struct {
	mu         sync.Mutex
	deps       Deps
	opts       Options
	workspaces map[string]*Workspace
}

func NewRegistry(deps Deps, opts Options) *Registry {
	return &Registry{
		deps:       deps,
		opts:       opts,
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the profile's workspace, hydrating it from storage the first
// time. A failed hydration is not cached.
func (r *Registry) Get(ctx context.Context, profile string) (*Workspace, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return nil, ErrProfileRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[profile]; ok {
		return ws, nil
	}
	ws := newWorkspace(profile, r.deps, r.opts)
	if err := ws.hydrate(ctx); err != nil {
		return nil, err
	}
	r.workspaces[profile] = ws
	logging.Debug("workspace: hydrated", "profile", profile)
	return ws, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
