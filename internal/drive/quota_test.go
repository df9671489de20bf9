package drive

import (
	"errors"
	"testing"
	"time"
)

// With a 10-byte limit an 8-byte file admits, a second 5-byte file is
// rejected, and used stays at 8.
func TestQuotaRejectsOverLimit(t *testing.T) {
	s := testStore()
	if err := s.SetQuotaLimit("alice", 10); err != nil {
		t.Fatalf("set limit: %v", err)
	}

	mustFile(t, s, "alice", "", "big.bin", 8)
	if _, err := s.CreateFile("alice", "", "more.bin", "h", 5, ""); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}

	used, limit, err := s.QuotaUsage("alice")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if used != 8 || limit != 10 {
		t.Errorf("used/limit = %d/%d, want 8/10", used, limit)
	}

	// Exactly filling the limit is allowed.
	if _, err := s.CreateFile("alice", "", "fit.bin", "h", 2, ""); err != nil {
		t.Errorf("fill to limit: %v", err)
	}
}

func TestQuotaTracksLifecycle(t *testing.T) {
	s := testStore()
	docs := mustFolder(t, s, "alice", "", "docs")
	f1 := mustFile(t, s, "alice", docs.ID, "a.txt", 5)
	f2 := mustFile(t, s, "alice", docs.ID, "b.txt", 7)

	check := func(step string, want int64) {
		t.Helper()
		used, _, err := s.QuotaUsage("alice")
		if err != nil {
			t.Fatalf("%s: usage: %v", step, err)
		}
		if used != want {
			t.Errorf("%s: used = %d, want %d", step, used, want)
		}
	}

	check("after creates", 12)

	if _, err := s.Trash("alice", f1.ID); err != nil {
		t.Fatal(err)
	}
	check("after trash", 7)

	if _, err := s.Restore("alice", f1.ID); err != nil {
		t.Fatal(err)
	}
	check("after restore", 12)

	if _, err := s.Trash("alice", docs.ID); err != nil {
		t.Fatal(err)
	}
	check("after folder trash", 0)

	if _, err := s.Purge("alice", docs.ID); err != nil {
		t.Fatal(err)
	}
	check("after purge", 0)
	_ = f2
}

func TestQuotaPerOwnerInSharedFolder(t *testing.T) {
	s := testStore()
	if err := s.SetQuotaLimit("bob", 4); err != nil {
		t.Fatal(err)
	}
	docs := mustFolder(t, s, "alice", "", "docs")
	if err := s.Share("alice", docs.ID, "bob", PermissionEditor); err != nil {
		t.Fatal(err)
	}

	// Bob's upload into Alice's folder is charged to Bob.
	if _, err := s.CreateFile("bob", docs.ID, "b.bin", "h", 3, ""); err != nil {
		t.Fatalf("bob upload: %v", err)
	}
	if _, err := s.CreateFile("bob", docs.ID, "b2.bin", "h", 3, ""); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}

	aliceUsed, _, _ := s.QuotaUsage("alice")
	bobUsed, _, _ := s.QuotaUsage("bob")
	if aliceUsed != 0 || bobUsed != 3 {
		t.Errorf("alice/bob used = %d/%d, want 0/3", aliceUsed, bobUsed)
	}
}

func TestQuotaReplaceContentDelta(t *testing.T) {
	s := testStore()
	if err := s.SetQuotaLimit("alice", 10); err != nil {
		t.Fatal(err)
	}
	f := mustFile(t, s, "alice", "", "a.bin", 6)

	if _, _, err := s.ReplaceContent("alice", f.ID, "v2", 11); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("grow past limit: got %v, want ErrQuotaExceeded", err)
	}
	used, _, _ := s.QuotaUsage("alice")
	if used != 6 {
		t.Errorf("used = %d after rejected replace, want 6", used)
	}

	if _, _, err := s.ReplaceContent("alice", f.ID, "v2", 2); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	used, _, _ = s.QuotaUsage("alice")
	if used != 2 {
		t.Errorf("used = %d after shrink, want 2", used)
	}
}

func TestQuotaUnlimited(t *testing.T) {
	s := NewStore(Config{LockTimeout: time.Second, DefaultQuotaBytes: -1})
	if _, err := s.CreateFile("alice", "", "huge.bin", "h", 1<<50, ""); err != nil {
		t.Fatalf("unlimited create: %v", err)
	}
}
