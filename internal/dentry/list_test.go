package dentry

import (
	"fmt"
	"testing"
)

func TestListEmptyDirReturnsIsLastNoToken(t *testing.T) {
	tree := NewTree(0)
	cursors := NewListCursors()

	page, err := cursors.First(tree, "test", "/empty")
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if !page.IsLast {
		t.Fatal("expected is_last=true for an empty directory")
	}
	if len(page.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(page.Entries))
	}
}

func TestListPagesThroughLargeDirectory(t *testing.T) {
	tree := NewTree(0)
	const total = 300
	for i := 0; i < total; i++ {
		mustCreate(t, tree, "test", fmt.Sprintf("/x/%03d", i))
	}

	cursors := NewListCursors()
	page, err := cursors.First(tree, "test", "/x")
	if err != nil {
		t.Fatalf("First: %v", err)
	}

	var names []string
	pages := 0
	for {
		pages++
		for _, e := range page.Entries {
			names = append(names, e.Name)
		}
		if page.IsLast {
			break
		}
		var zero ListToken
		if page.Token == zero {
			t.Fatal("non-final page must carry a non-zero token")
		}
		page, err = cursors.Next(page.Token)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	if len(names) != total {
		t.Fatalf("got %d names, want %d", len(names), total)
	}
	if pages < 2 {
		t.Fatalf("expected multiple pages for %d entries, got %d", total, pages)
	}
}

func TestListNextUnknownTokenFails(t *testing.T) {
	cursors := NewListCursors()
	var bogus ListToken
	bogus[0] = 0xFF

	if _, err := cursors.Next(bogus); err == nil {
		t.Fatal("expected an error for an unknown token")
	}
}
