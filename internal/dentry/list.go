package dentry

import (
	"crypto/rand"
	"sync"
	"time"

	"fastdir/internal/fdirerr"
)

// listTokenTTL bounds how long a server-side cursor survives between
// LIST_DENTRY_FIRST_REQ and the client's next LIST_DENTRY_NEXT_REQ.
const listTokenTTL = 30 * time.Second

// PageSize bounds how many entries one LIST_DENTRY_*_RESP carries, so a
// single response body never exceeds the frame's MaxBodyLen regardless of
// how many entries a directory holds.
const PageSize = 128

// ListToken is the 16-byte opaque cursor handed back to clients between
// pages.
type ListToken [16]byte

type listCursor struct {
	entries []ChildName
	offset  int
	expires time.Time
}

// ListCursors holds the server-side cursor table for in-progress paged
// listings. One instance is shared by a node's whole service-handler set.
type ListCursors struct {
	mu      sync.Mutex
	cursors map[ListToken]*listCursor
}

func NewListCursors() *ListCursors {
	return &ListCursors{cursors: make(map[ListToken]*listCursor)}
}

func newToken() (ListToken, error) {
	var t ListToken
	if _, err := rand.Read(t[:]); err != nil {
		return t, err
	}
	return t, nil
}

// Page is one LIST_DENTRY_*_RESP worth of results.
type Page struct {
	Entries []ChildName
	IsLast  bool
	Token   ListToken
}

// First starts a new listing of dir's immediate children within
// namespace, returning the first page. A directory with zero matching
// entries returns is_last=true immediately with no token allocated.
func (c *ListCursors) First(tree *Tree, namespace, dir string) (Page, error) {
	all := tree.ListChildren(namespace, dir)

	if len(all) == 0 {
		return Page{IsLast: true}, nil
	}

	end := PageSize
	if end > len(all) {
		end = len(all)
	}
	page := all[:end]
	if end == len(all) {
		return Page{Entries: page, IsLast: true}, nil
	}

	token, err := newToken()
	if err != nil {
		return Page{}, err
	}

	c.mu.Lock()
	c.cursors[token] = &listCursor{entries: all, offset: end, expires: time.Now().Add(listTokenTTL)}
	c.gcLocked()
	c.mu.Unlock()

	return Page{Entries: page, IsLast: false, Token: token}, nil
}

// Next resumes a listing by token. Returns an ENOENT-class fdirerr if the
// token is unknown or expired.
func (c *ListCursors) Next(token ListToken) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.cursors[token]
	if !ok || time.Now().After(cur.expires) {
		delete(c.cursors, token)
		return Page{}, fdirerr.New(fdirerr.ENOENT, "list token unknown or expired")
	}

	end := cur.offset + PageSize
	if end > len(cur.entries) {
		end = len(cur.entries)
	}
	page := cur.entries[cur.offset:end]
	cur.offset = end

	if cur.offset >= len(cur.entries) {
		delete(c.cursors, token)
		return Page{Entries: page, IsLast: true}, nil
	}

	cur.expires = time.Now().Add(listTokenTTL)
	return Page{Entries: page, IsLast: false, Token: token}, nil
}

// gcLocked drops expired cursors opportunistically whenever First stores a
// new cursor, so
// the table never grows unbounded even if clients abandon listings
// mid-page. Caller must hold c.mu.
func (c *ListCursors) gcLocked() {
	now := time.Now()
	for tok, cur := range c.cursors {
		if now.After(cur.expires) {
			delete(c.cursors, tok)
		}
	}
}
