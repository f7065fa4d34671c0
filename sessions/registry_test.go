package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeChannel struct {
	id       string
	once     sync.Once
	done     chan struct{}
	closeErr error
	panics   bool
	closes   atomic.Int32
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, done: make(chan struct{})}
}

func (c *fakeChannel) SessionID() string     { return c.id }
func (c *fakeChannel) Done() <-chan struct{} { return c.done }

func (c *fakeChannel) Close() error {
	c.closes.Add(1)
	if c.panics {
		panic("close exploded")
	}
	c.once.Do(func() { close(c.done) })
	return c.closeErr
}

func newSession(id string) (*Session, *fakeChannel) {
	ch := newFakeChannel(id)
	return &Session{ID: id, Channel: ch}, ch
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRegistryCreateLookupRemove(t *testing.T) {
	r := NewRegistry()
	s, _ := newSession("a")
	if err := r.Create("a", s); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, ok := r.Lookup("a")
	if !ok || got != s {
		t.Fatalf("lookup: got %v ok=%v", got, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("lookup of unknown id should fail")
	}
	if !r.Remove("a") {
		t.Fatalf("remove should report true")
	}
	if r.Remove("a") {
		t.Fatalf("second remove should be a no-op")
	}
	if r.Remove("never-existed") {
		t.Fatalf("remove of absent id should be a no-op")
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("want empty registry, got %d", n)
	}
}

func TestRegistryCreateRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	s1, _ := newSession("dup")
	s2, _ := newSession("dup")
	if err := r.Create("dup", s1); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := r.Create("dup", s2)
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("want ErrSessionExists, got %v", err)
	}
	got, _ := r.Lookup("dup")
	if got != s1 {
		t.Fatalf("duplicate create must not replace the original entry")
	}
}

func TestRegistryCreateRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Create("", &Session{Channel: newFakeChannel("")}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("empty id: got %v", err)
	}
	if err := r.Create("x", &Session{ID: "x"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("nil channel: got %v", err)
	}
	s, _ := newSession("y")
	if err := r.Create("z", s); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("mismatched id: got %v", err)
	}
}

func TestRegistryRemovesOnChannelClose(t *testing.T) {
	var removed atomic.Int32
	r := NewRegistry(WithRemoveHook(func(*Session) { removed.Add(1) }))
	s, ch := newSession("closing")
	if err := r.Create("closing", s); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = ch.Close()

	// Lookup must not hand out a closed session even before the watcher runs.
	if _, ok := r.Lookup("closing"); ok {
		t.Fatalf("lookup returned a session whose channel is closed")
	}
	waitFor(t, func() bool { return r.Len() == 0 })
	if n := removed.Load(); n != 1 {
		t.Fatalf("remove hook ran %d times, want 1", n)
	}
}

func TestRegistryDrainAllClosesEverySession(t *testing.T) {
	r := NewRegistry()
	var chans []*fakeChannel
	for i := range 5 {
		id := fmt.Sprintf("s-%d", i)
		s, ch := newSession(id)
		if i == 1 {
			ch.closeErr = errors.New("close failed")
		}
		if i == 3 {
			ch.panics = true
		}
		if err := r.Create(id, s); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		chans = append(chans, ch)
	}

	if err := r.DrainAll(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("registry not empty after drain: %d", n)
	}
	for i, ch := range chans {
		if got := ch.closes.Load(); got != 1 {
			t.Fatalf("channel %d closed %d times, want 1", i, got)
		}
	}
}

func TestRegistryDrainAllRejectsNewSessions(t *testing.T) {
	r := NewRegistry()
	if err := r.DrainAll(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	s, _ := newSession("late")
	if err := r.Create("late", s); !errors.Is(err, ErrRegistryDraining) {
		t.Fatalf("want ErrRegistryDraining, got %v", err)
	}
}

type stuckChannel struct {
	*fakeChannel
	release chan struct{}
}

func (c *stuckChannel) Close() error {
	<-c.release
	return c.fakeChannel.Close()
}

func TestRegistryDrainAllHonorsContext(t *testing.T) {
	r := NewRegistry()
	stuck := &stuckChannel{fakeChannel: newFakeChannel("stuck"), release: make(chan struct{})}
	defer close(stuck.release)
	if err := r.Create("stuck", &Session{ID: "stuck", Channel: stuck}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.DrainAll(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("registry not empty after timed out drain: %d", n)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("c-%d", i)
			s, ch := newSession(id)
			if err := r.Create(id, s); err != nil {
				t.Errorf("create %s: %v", id, err)
				return
			}
			if _, ok := r.Lookup(id); !ok {
				t.Errorf("lookup %s failed", id)
			}
			_ = ch.Close()
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return r.Len() == 0 })
}
