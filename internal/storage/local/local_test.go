package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	content := "hello drive content"
	if err := b.PutObject(ctx, "ab/cdef0123", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	rc, size, err := b.GetObject(ctx, "ab/cdef0123", 0, 0)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestGetObjectRange(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("0123456789")
	if err := b.PutObject(ctx, "ranged", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatal(err)
	}

	rc, size, err := b.GetObject(ctx, "ranged", 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	if size != 4 {
		t.Errorf("size = %d, want 4", size)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != "2345" {
		t.Errorf("range read = %q, want %q", got, "2345")
	}
}

func TestDeleteObject(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := b.PutObject(ctx, "doomed", strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}

	exists, err := b.ObjectExists(ctx, "doomed")
	if err != nil || !exists {
		t.Fatalf("expected object to exist, got exists=%v err=%v", exists, err)
	}

	if err := b.DeleteObject(ctx, "doomed"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	exists, err = b.ObjectExists(ctx, "doomed")
	if err != nil || exists {
		t.Fatalf("expected object gone, got exists=%v err=%v", exists, err)
	}

	// Deleting a missing object is not an error
	if err := b.DeleteObject(ctx, "doomed"); err != nil {
		t.Errorf("delete of missing object: %v", err)
	}
}

func TestPutObjectOverwrites(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := b.PutObject(ctx, "versioned", strings.NewReader("old"), 3); err != nil {
		t.Fatal(err)
	}
	if err := b.PutObject(ctx, "versioned", strings.NewReader("newer"), 5); err != nil {
		t.Fatal(err)
	}

	rc, size, err := b.GetObject(ctx, "versioned", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != "newer" || size != 5 {
		t.Errorf("got %q (size %d), want %q", got, size, "newer")
	}
}
