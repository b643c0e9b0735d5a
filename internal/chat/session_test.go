package chat

import (
	"sync"
	"testing"
)

func TestSessionStoreGetOrCreate(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()

	if _, ok := st.Get("s1"); ok {
		t.Fatalf("expected no session before first use")
	}

	first := st.GetOrCreate("s1")
	second := st.GetOrCreate("s1")
	if first != second {
		t.Fatalf("GetOrCreate returned distinct sessions for the same id")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}
}

func TestSessionStoreAppendAndGet(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()
	st.AppendUser("s1", "hello")
	st.AppendAssistant("s1", "hi there")

	history, ok := st.Get("s1")
	if !ok {
		t.Fatalf("expected session to exist")
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "hello" {
		t.Fatalf("unexpected first turn: %#v", history[0])
	}
	if history[1].Role != RoleAssistant || history[1].Content != "hi there" {
		t.Fatalf("unexpected second turn: %#v", history[1])
	}

	// Snapshots are caller-owned; mutating one must not affect the store.
	history[0].Content = "mutated"
	again, _ := st.Get("s1")
	if again[0].Content != "hello" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestSessionStoreDelete(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()
	st.AppendUser("s1", "a")
	st.AppendAssistant("s1", "b")
	st.AppendUser("s1", "c")
	st.AppendAssistant("s1", "d")

	if !st.Delete("s1") {
		t.Fatalf("expected Delete to report true for existing session")
	}
	if _, ok := st.Get("s1"); ok {
		t.Fatalf("expected session gone after delete")
	}
	if st.Delete("s1") {
		t.Fatalf("expected Delete to report false for absent session")
	}
}

func TestSessionStoreDeleteAll(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()
	st.AppendUser("a", "x")
	st.AppendUser("b", "y")

	st.DeleteAll()
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d sessions", st.Len())
	}
}

func TestSessionStoreGetAll(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()
	st.AppendUser("a", "x")
	st.AppendUser("b", "y")
	st.AppendAssistant("b", "z")

	all := st.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
	if len(all["a"]) != 1 || len(all["b"]) != 2 {
		t.Fatalf("unexpected histories: %#v", all)
	}
}

func TestSessionConcurrentAppends(t *testing.T) {
	t.Parallel()

	st := NewSessionStore()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := st.GetOrCreate("s1")
			sess.Lock()
			sess.appendLocked(RoleUser, "question")
			sess.appendLocked(RoleAssistant, "answer")
			sess.Unlock()
		}()
	}
	wg.Wait()

	history, _ := st.Get("s1")
	if len(history) != 2*n {
		t.Fatalf("expected %d turns, got %d", 2*n, len(history))
	}
	// Each request's user/assistant pair must be contiguous.
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != RoleUser || history[i+1].Role != RoleAssistant {
			t.Fatalf("interleaved turns at %d: %s, %s", i, history[i].Role, history[i+1].Role)
		}
	}
}
