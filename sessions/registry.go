package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrSessionExists is returned by Create when the id is already registered.
	ErrSessionExists = errors.New("session already registered")
	// ErrRegistryDraining is returned by Create once DrainAll has started.
	ErrRegistryDraining = errors.New("session registry is draining")
	// ErrInvalidSession is returned by Create for a session without an id or channel.
	ErrInvalidSession = errors.New("invalid session")
)

type entry struct {
	sess *Session
	stop chan struct{}
}

// Registry is the set of live sessions keyed by session id. All methods are
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	draining bool

	log      *slog.Logger
	onRemove func(*Session)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registry events.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRemoveHook registers fn to run after a session leaves the registry,
// regardless of why it left. fn runs outside the registry lock.
func WithRemoveHook(fn func(*Session)) RegistryOption {
	return func(r *Registry) { r.onRemove = fn }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers sess under id. The entry is removed automatically once
// the session's channel reports Done.
func (r *Registry) Create(id string, sess *Session) error {
	if id == "" || sess == nil || sess.Channel == nil {
		return ErrInvalidSession
	}
	if sess.ID != "" && sess.ID != id {
		return fmt.Errorf("%w: id %q does not match session id %q", ErrInvalidSession, id, sess.ID)
	}
	sess.ID = id

	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return ErrRegistryDraining
	}
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	e := &entry{sess: sess, stop: make(chan struct{})}
	r.entries[id] = e
	n := len(r.entries)
	r.mu.Unlock()

	r.log.Debug("session.registry.create", slog.String("session_id", id), slog.Int("active", n))

	go r.watch(id, e)
	return nil
}

func (r *Registry) watch(id string, e *entry) {
	select {
	case <-e.sess.Channel.Done():
		if r.removeEntry(id, e) {
			r.log.Debug("session.registry.channel_closed", slog.String("session_id", id))
		}
	case <-e.stop:
	}
}

// Lookup returns the session registered under id. A session whose channel
// has already closed is reported as absent even if the watcher has not yet
// removed it.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.sess.Channel.Done():
		r.removeEntry(id, e)
		return nil, false
	default:
	}
	return e.sess, true
}

// Remove deletes the entry for id. It reports whether an entry was removed.
// Remove does not close the session's channel; removing an absent id is a
// no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.removeEntry(id, e)
}

func (r *Registry) removeEntry(id string, e *entry) bool {
	r.mu.Lock()
	cur, ok := r.entries[id]
	if !ok || cur != e {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	close(e.stop)
	n := len(r.entries)
	r.mu.Unlock()

	r.log.Debug("session.registry.remove", slog.String("session_id", id), slog.Int("active", n))
	if r.onRemove != nil {
		r.onRemove(e.sess)
	}
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered session ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// DrainAll closes every registered session and empties the registry. Once
// DrainAll starts, Create rejects new sessions with ErrRegistryDraining.
//
// Close failures are logged and otherwise ignored so that one misbehaving
// channel cannot keep the others open. If ctx ends before every channel has
// closed, the remaining entries are dropped and ctx's error is returned.
func (r *Registry) DrainAll(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	snapshot := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = e
	}
	r.mu.Unlock()

	r.log.Info("session.drain.start", slog.Int("sessions", len(snapshot)))

	var g errgroup.Group
	for id, e := range snapshot {
		g.Go(func() error {
			r.closeEntry(id, e)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		r.log.Warn("session.drain.timeout", slog.String("err", err.Error()))
	}

	// Anything still present was either slow to close or raced the snapshot.
	for _, id := range r.IDs() {
		r.Remove(id)
	}

	r.log.Info("session.drain.complete", slog.Int("sessions", len(snapshot)))
	return err
}

func (r *Registry) closeEntry(id string, e *entry) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("session.drain.close_fail", slog.String("session_id", id), slog.Any("panic", p))
		}
		r.removeEntry(id, e)
	}()
	if err := e.sess.Channel.Close(); err != nil {
		r.log.Warn("session.drain.close_fail", slog.String("session_id", id), slog.String("err", err.Error()))
	}
}
