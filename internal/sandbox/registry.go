package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
)

// teardownParallelism bounds concurrent removals in TeardownAll.
const teardownParallelism = 4

// Registry tracks the live sessions of this process so that they can be
// torn down on exit or interrupt. At most one live session may hold a
// given port pair.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ports    map[string]string // port pair key -> session name
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ports:    make(map[string]string),
	}
}

// Register adds s. It fails when the name or port pair is already held.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.Name]; ok {
		return fmt.Errorf("sandbox %s is already registered", s.Name)
	}
	key := s.Ports.Key()
	if owner, ok := r.ports[key]; ok {
		return fmt.Errorf("ports %s are held by sandbox %s", key, owner)
	}

	r.sessions[s.Name] = s
	r.ports[key] = s.Name
	return nil
}

// Unregister removes s. Unknown sessions are ignored.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.Name]; !ok || cur != s {
		return
	}
	delete(r.sessions, s.Name)
	delete(r.ports, s.Ports.Key())
}

// Live returns the registered sessions ordered by name.
func (r *Registry) Live() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// TeardownAll deletes every registered session. Every session is attempted;
// failures are logged and returned joined.
func (r *Registry) TeardownAll(ctx context.Context) error {
	sessions := r.Live()
	if len(sessions) == 0 {
		return nil
	}
	logging.Debug("tearing down sandboxes", "count", len(sessions))

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(teardownParallelism)
	for _, s := range sessions {
		g.Go(func() error {
			if err := s.Delete(ctx); err != nil {
				logging.Error("failed to tear down sandbox", "name", s.Name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
