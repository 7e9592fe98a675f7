package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestRegistry(maxActive int) *Registry {
	e := newTestEngine(Config{})
	return NewRegistry(e, maxActive, e.logger)
}

func TestRegistry_StartAndGet(t *testing.T) {
	r := newTestRegistry(0)

	s, err := r.Start("user-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(s.ID()) != 36 {
		t.Errorf("ID = %q, want a UUID", s.ID())
	}

	got, err := r.Get(s.ID(), "user-1")
	if err != nil || got != s {
		t.Errorf("Get(owner) = %v, %v", got, err)
	}
	if _, err := r.Get(s.ID(), "user-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(other owner) err = %v, want ErrSessionNotFound", err)
	}
	if _, err := r.Get("missing", "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrSessionNotFound", err)
	}
	if _, err := r.Get(s.ID(), ""); err != nil {
		t.Errorf("Get without owner check err = %v", err)
	}
}

func TestRegistry_MaxActive(t *testing.T) {
	r := newTestRegistry(2)

	first, _ := r.Start("u")
	if _, err := r.Start("u"); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if _, err := r.Start("u"); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("third Start err = %v, want ErrTooManySessions", err)
	}

	if _, err := first.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Start("u"); err != nil {
		t.Errorf("Start after a finalize err = %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(0)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.engine.now = func() time.Time { return now }

	a, _ := r.Start("alice")
	now = now.Add(time.Minute)
	b, _ := r.Start("alice")
	_, _ = r.Start("bob")

	list := r.List("alice")
	if len(list) != 2 {
		t.Fatalf("List(alice) = %d sessions, want 2", len(list))
	}
	if list[0].ID != b.ID() || list[1].ID != a.ID() {
		t.Errorf("List order = %s, %s; want newest first", list[0].ID, list[1].ID)
	}
	if len(r.List("")) != 3 {
		t.Errorf("List(\"\") should return every session")
	}
	if list := r.List("nobody"); list == nil || len(list) != 0 {
		t.Errorf("List(nobody) = %v, want empty slice", list)
	}
}

func TestRegistry_Sweep(t *testing.T) {
	r := newTestRegistry(0)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.engine.now = func() time.Time { return now }
	ctx := context.Background()

	idle, _ := r.Start("u")
	busy, _ := r.Start("u")
	done, _ := r.Start("u")
	_, _ = done.Finalize(ctx)

	now = now.Add(10 * time.Minute)
	busy.IngestFrame(ctx, []byte("centered"))
	now = now.Add(time.Minute)

	// idle timeout disabled: nothing expires
	if expired, evicted := r.Sweep(ctx, 0, time.Hour); expired != 0 || evicted != 0 {
		t.Errorf("Sweep(disabled) = %d, %d; want 0, 0", expired, evicted)
	}

	expired, evicted := r.Sweep(ctx, 5*time.Minute, time.Hour)
	if expired != 1 || evicted != 0 {
		t.Errorf("Sweep = %d expired, %d evicted; want 1, 0", expired, evicted)
	}
	if idle.Status() != StatusEnded {
		t.Errorf("idle session status = %q, want ended", idle.Status())
	}
	if busy.Status() != StatusActive {
		t.Errorf("busy session status = %q, want active", busy.Status())
	}

	now = now.Add(2 * time.Hour)
	_, evicted = r.Sweep(ctx, 0, time.Hour)
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if _, err := r.Get(done.ID(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("evicted session still present")
	}
	if _, err := r.Get(busy.ID(), ""); err != nil {
		t.Errorf("active session was evicted")
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	r := newTestRegistry(0)
	a, _ := r.Start("u")
	b, _ := r.Start("u")
	_, _ = b.Finalize(context.Background())

	if n := r.Shutdown(context.Background()); n != 1 {
		t.Errorf("Shutdown finalized %d sessions, want 1", n)
	}
	if a.Status() != StatusEnded {
		t.Errorf("status = %q, want ended", a.Status())
	}
}

func TestRegistry_ConnAddAndDone(t *testing.T) {
	r := newTestRegistry(0)

	if !r.AddConn() || !r.AddConn() {
		t.Fatal("AddConn() should succeed when not draining")
	}
	if r.ActiveConns() != 2 {
		t.Errorf("ActiveConns() = %d, want 2", r.ActiveConns())
	}

	r.DoneConn()
	r.DoneConn()
	if r.ActiveConns() != 0 {
		t.Errorf("ActiveConns() = %d, want 0", r.ActiveConns())
	}
}

func TestRegistry_Draining(t *testing.T) {
	r := newTestRegistry(0)

	if !r.AddConn() {
		t.Fatal("AddConn() should succeed before draining")
	}
	r.StartDraining()

	if !r.IsDraining() {
		t.Error("IsDraining() should be true after StartDraining()")
	}
	if r.AddConn() {
		t.Error("AddConn() should return false when draining")
	}
	if _, err := r.Start("u"); !errors.Is(err, ErrDraining) {
		t.Errorf("Start err = %v, want ErrDraining", err)
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Error("Wait() should block while connections are open")
	default:
	}

	r.DoneConn()
	<-done
}

func TestRegistry_ConcurrentStarts(t *testing.T) {
	r := newTestRegistry(10)
	const n = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := r.Start("u"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 10 {
		t.Errorf("accepted = %d, want 10", accepted)
	}
}
