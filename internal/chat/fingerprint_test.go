package chat

import "testing"

func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	history := History{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}

	k1 := DeriveKey("What is X?", history, "s1")
	k2 := DeriveKey("What is X?", history, "s1")

	if k1 != k2 {
		t.Fatalf("same inputs produced different keys: %v vs %v", k1, k2)
	}
	if k1.SessionID != "s1" {
		t.Fatalf("unexpected session id: %s", k1.SessionID)
	}
	if len(k1.Hash) != 64 {
		t.Fatalf("expected hex sha256, got %q", k1.Hash)
	}
}

func TestDeriveKeySensitivity(t *testing.T) {
	t.Parallel()

	history := History{{Role: RoleUser, Content: "hello"}}
	base := DeriveKey("What is X?", history, "s1")

	if got := DeriveKey("What is Y?", history, "s1"); got.Hash == base.Hash {
		t.Fatalf("query change did not change fingerprint")
	}
	if got := DeriveKey("What is X?", history, "s2"); got.Hash == base.Hash {
		t.Fatalf("session change did not change fingerprint")
	}
	longer := append(History{}, history...)
	longer = append(longer, Turn{Role: RoleAssistant, Content: "hi"})
	if got := DeriveKey("What is X?", longer, "s1"); got.Hash == base.Hash {
		t.Fatalf("history change did not change fingerprint")
	}
	flipped := History{{Role: RoleAssistant, Content: "hello"}}
	if got := DeriveKey("What is X?", flipped, "s1"); got.Hash == base.Hash {
		t.Fatalf("role change did not change fingerprint")
	}
}

func TestDeriveKeyIgnoresTimestamps(t *testing.T) {
	t.Parallel()

	// Only role and content are significant; two histories with the same
	// turns hash identically regardless of when they were built.
	sess := &Session{}
	sess.Lock()
	sess.appendLocked(RoleUser, "hello")
	sess.appendLocked(RoleAssistant, "hi")
	live := sess.historyLocked()
	sess.Unlock()

	rebuilt := History{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	}

	if DeriveKey("q", live, "s1") != DeriveKey("q", rebuilt, "s1") {
		t.Fatalf("equivalent histories hashed differently")
	}
}

func TestDeriveKeyFieldBoundaries(t *testing.T) {
	t.Parallel()

	// Length-prefixed encoding: shifting bytes across field boundaries
	// must change the fingerprint.
	a := DeriveKey("c", History{{Role: RoleUser, Content: "ab"}}, "s")
	b := DeriveKey("bc", History{{Role: RoleUser, Content: "a"}}, "s")
	if a.Hash == b.Hash {
		t.Fatalf("boundary shift collided: %s", a.Hash)
	}

	c := DeriveKey("q", History{{Role: RoleUser, Content: "x"}}, "s1")
	d := DeriveKey("q", History{{Role: RoleUser, Content: "1x"}}, "s")
	if c.Hash == d.Hash {
		t.Fatalf("session/content boundary shift collided: %s", c.Hash)
	}
}
