package dentry

import (
	"testing"

	"fastdir/internal/binlog"
	"fastdir/internal/fdirerr"
)

func TestTreeCreateAndGet(t *testing.T) {
	tree := NewTree(0)

	e, err := tree.Create("test", "/a/b", []byte("data"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.InodeSN == 0 {
		t.Fatal("expected a non-zero inode serial number")
	}

	got, ok := tree.Get("test", "/a/b")
	if !ok {
		t.Fatal("expected dentry to be found")
	}
	if string(got.Data) != "data" {
		t.Fatalf("got data %q", got.Data)
	}
}

func TestTreeCreateDuplicateIsEEXIST(t *testing.T) {
	tree := NewTree(0)
	if _, err := tree.Create("test", "/a", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := tree.Create("test", "/a", nil)
	fe, ok := err.(*fdirerr.Error)
	if !ok || fe.Code != fdirerr.EEXIST {
		t.Fatalf("expected EEXIST, got %v", err)
	}
}

func TestTreeCreateRejectsEmptyNamespaceOrPath(t *testing.T) {
	tree := NewTree(0)
	if _, err := tree.Create("", "/a", nil); err == nil {
		t.Fatal("expected EINVAL for empty namespace")
	}
	if _, err := tree.Create("test", "", nil); err == nil {
		t.Fatal("expected EINVAL for empty path")
	}
}

func TestTreeRemoveMissingIsENOENT(t *testing.T) {
	tree := NewTree(0)
	err := tree.Remove("test", "/missing")
	fe, ok := err.(*fdirerr.Error)
	if !ok || fe.Code != fdirerr.ENOENT {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestTreeApplyCreateThenRemove(t *testing.T) {
	tree := NewTree(0)

	if err := tree.Apply(binlog.Record{DataVersion: 1, Op: binlog.OpCreateDentry, Namespace: "test", Path: "/a"}); err != nil {
		t.Fatalf("apply create: %v", err)
	}
	if _, ok := tree.Get("test", "/a"); !ok {
		t.Fatal("expected dentry to exist after apply create")
	}

	if err := tree.Apply(binlog.Record{DataVersion: 2, Op: binlog.OpRemoveDentry, Namespace: "test", Path: "/a"}); err != nil {
		t.Fatalf("apply remove: %v", err)
	}
	if _, ok := tree.Get("test", "/a"); ok {
		t.Fatal("expected dentry to be gone after apply remove")
	}
}

func TestTreeApplyIsIdempotent(t *testing.T) {
	tree := NewTree(0)
	rec := binlog.Record{DataVersion: 1, Op: binlog.OpCreateDentry, Namespace: "test", Path: "/a", Data: []byte("v1")}

	if err := tree.Apply(rec); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// Re-applying the same create must be a no-op, not an error.
	if err := tree.Apply(rec); err != nil {
		t.Fatalf("re-apply should be idempotent, got error: %v", err)
	}

	removeRec := binlog.Record{DataVersion: 2, Op: binlog.OpRemoveDentry, Namespace: "test", Path: "/a"}
	if err := tree.Apply(removeRec); err != nil {
		t.Fatalf("apply remove: %v", err)
	}
	if err := tree.Apply(removeRec); err != nil {
		t.Fatalf("re-apply remove should be idempotent, got error: %v", err)
	}
}

func TestTreeListChildrenOneLevel(t *testing.T) {
	tree := NewTree(0)
	mustCreate(t, tree, "test", "/a/b")
	mustCreate(t, tree, "test", "/a/c")
	mustCreate(t, tree, "test", "/a/c/deep") // not a direct child of /a

	children := tree.ListChildren("test", "/a")
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2: %+v", len(children), children)
	}
	if children[0].Name != "b" || children[1].Name != "c" {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func mustCreate(t *testing.T, tree *Tree, ns, path string) {
	t.Helper()
	if _, err := tree.Create(ns, path, nil); err != nil {
		t.Fatalf("Create(%q, %q): %v", ns, path, err)
	}
}
