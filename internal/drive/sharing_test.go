package drive

import (
	"errors"
	"testing"
)

func TestShareUpsertsSingleGrant(t *testing.T) {
	s := testStore()
	f := mustFile(t, s, "alice", "", "a.txt", 1)

	if err := s.Share("alice", f.ID, "bob", PermissionViewer); err != nil {
		t.Fatalf("share: %v", err)
	}
	if err := s.Share("alice", f.ID, "bob", PermissionEditor); err != nil {
		t.Fatalf("re-share: %v", err)
	}

	grants, err := s.Grants("alice", f.ID)
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grant count = %d, want 1 (re-share overwrites)", len(grants))
	}
	if grants[0].Permission != PermissionEditor {
		t.Errorf("permission = %q, want editor", grants[0].Permission)
	}
}

func TestShareValidation(t *testing.T) {
	s := testStore()
	f := mustFile(t, s, "alice", "", "a.txt", 1)

	if err := s.Share("alice", f.ID, "alice", PermissionViewer); !errors.Is(err, ErrSelfShare) {
		t.Errorf("self share: got %v, want ErrSelfShare", err)
	}
	if err := s.Share("bob", f.ID, "carol", PermissionViewer); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-owner share: got %v, want ErrNotFound", err)
	}
	if err := s.Share("alice", f.ID, "bob", PermissionOwner); err == nil {
		t.Error("granting owner permission should fail")
	}
}

func TestUnshareIsIdempotent(t *testing.T) {
	s := testStore()
	f := mustFile(t, s, "alice", "", "a.txt", 1)
	if err := s.Share("alice", f.ID, "bob", PermissionViewer); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Unshare("alice", f.ID, "bob"); err != nil {
			t.Fatalf("unshare %d: %v", i+1, err)
		}
	}
	perm, err := s.PermissionOf(f.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if perm != PermissionNone {
		t.Errorf("permission = %q after unshare, want none", perm)
	}
}

func TestPermissionOf(t *testing.T) {
	s := testStore()
	f := mustFile(t, s, "alice", "", "a.txt", 1)
	if err := s.Share("alice", f.ID, "bob", PermissionViewer); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		principal string
		want      Permission
	}{
		{"alice", PermissionOwner},
		{"bob", PermissionViewer},
		{"carol", PermissionNone},
	}
	for _, tt := range tests {
		got, err := s.PermissionOf(f.ID, tt.principal)
		if err != nil {
			t.Fatalf("%s: %v", tt.principal, err)
		}
		if got != tt.want {
			t.Errorf("PermissionOf(%s) = %q, want %q", tt.principal, got, tt.want)
		}
	}

	if _, err := s.PermissionOf("missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing node: got %v, want ErrNotFound", err)
	}
}

// Sharing a folder does not extend to files uploaded into it
// afterward; grants are direct, never inherited.
func TestNoGrantInheritance(t *testing.T) {
	s := testStore()
	docs := mustFolder(t, s, "alice", "", "Docs")
	if err := s.Share("alice", docs.ID, "bob", PermissionViewer); err != nil {
		t.Fatal(err)
	}

	c := mustFile(t, s, "alice", docs.ID, "c.txt", 1)

	perm, err := s.PermissionOf(c.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if perm != PermissionNone {
		t.Errorf("permission on later upload = %q, want none", perm)
	}

	shared, err := s.ViewShared("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 1 || shared[0].ID != docs.ID {
		t.Errorf("shared view = %+v, want only the folder", shared)
	}
}
