// Package dentry implements FastDIR's in-memory directory/metadata tree:
// the authoritative state every CREATE_DENTRY/REMOVE_DENTRY mutates and
// every LIST_DENTRY_* reads.
package dentry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"fastdir/internal/binlog"
	"fastdir/internal/fdirerr"
)

// Entry is one dentry: a namespaced path with an opaque data payload and
// an inode serial number assigned on creation.
type Entry struct {
	Namespace string
	Path      string
	Data      []byte
	InodeSN   uint64
}

func key(namespace, path string) string { return namespace + "\x00" + path }

// Tree is the full in-memory dentry store for one namespace hashtable.
// The original sizes a fixed bucket count via namespace_hashtable_capacity;
// a plain Go map scales without one here.
type Tree struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	inodeSN atomic.Uint64
}

func NewTree(startInodeSN uint64) *Tree {
	t := &Tree{entries: make(map[string]*Entry)}
	t.inodeSN.Store(startInodeSN)
	return t
}

// CurrentInodeSN reports the highest inode serial number assigned so far,
// fed into the heartbeat's CURRENT_INODE_SN handoff.
func (t *Tree) CurrentInodeSN() uint64 { return t.inodeSN.Load() }

// Create inserts a new dentry. Returns EEXIST if namespace+path already
// exists and EINVAL if the path or namespace is empty.
func (t *Tree) Create(namespace, path string, data []byte) (*Entry, error) {
	if namespace == "" || path == "" {
		return nil, fdirerr.New(fdirerr.EINVAL, "namespace and path must be non-empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(namespace, path)
	if _, exists := t.entries[k]; exists {
		return nil, fdirerr.New(fdirerr.EEXIST, fmt.Sprintf("%s:%s already exists", namespace, path))
	}

	e := &Entry{
		Namespace: namespace,
		Path:      path,
		Data:      append([]byte(nil), data...),
		InodeSN:   t.inodeSN.Add(1),
	}
	t.entries[k] = e
	return e, nil
}

// Remove deletes a dentry. Returns ENOENT if it does not exist.
func (t *Tree) Remove(namespace, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(namespace, path)
	if _, exists := t.entries[k]; !exists {
		return fdirerr.New(fdirerr.ENOENT, fmt.Sprintf("%s:%s not found", namespace, path))
	}
	delete(t.entries, k)
	return nil
}

// Get returns the dentry at namespace+path, if any.
func (t *Tree) Get(namespace, path string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key(namespace, path)]
	return e, ok
}

// Apply replays one binlog record against the tree. It is idempotent for
// CREATE (re-applying an already-present dentry is a no-op rather than an
// error, matching "idempotent re-apply" from the testable properties) but
// still fatal-gap sensitive at the binlog layer, not here.
func (t *Tree) Apply(rec binlog.Record) error {
	switch rec.Op {
	case binlog.OpCreateDentry:
		if _, err := t.Create(rec.Namespace, rec.Path, rec.Data); err != nil {
			if fe, ok := err.(*fdirerr.Error); ok && fe.Code == fdirerr.EEXIST {
				return nil
			}
			return err
		}
		return nil
	case binlog.OpRemoveDentry:
		if err := t.Remove(rec.Namespace, rec.Path); err != nil {
			if fe, ok := err.(*fdirerr.Error); ok && fe.Code == fdirerr.ENOENT {
				return nil
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("dentry: unknown binlog op %d", rec.Op)
	}
}

// Snapshot returns every entry in a namespace, sorted by path. The paged
// listing cursor (list.go) uses ListChildren, not Snapshot.
func (t *Tree) Snapshot(namespace string) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Entry
	for _, e := range t.entries {
		if e.Namespace == namespace {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Count returns the total number of dentries across all namespaces, used
// by SERVICE_STAT/CLUSTER_STAT responses.
func (t *Tree) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// ChildName is one immediate child of a listed directory: the dentry's own
// path, annotated with the name fragment relative to the listing prefix
// (what the wire's list-response "name" field carries).
type ChildName struct {
	Name  string
	Entry *Entry
}

// ListChildren returns the immediate children of dir within namespace,
// sorted by name — the source feed for LIST_DENTRY_FIRST/NEXT. A dentry
// "/a/b" is a child of dir "/a" with name "b"; dentries nested deeper
// than one level under dir are not included, matching a conventional
// single-level directory listing.
func (t *Tree) ListChildren(namespace, dir string) []ChildName {
	prefix := dir
	if prefix != "/" {
		prefix = prefix + "/"
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []ChildName
	for _, e := range t.entries {
		if e.Namespace != namespace || !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(e.Path, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, ChildName{Name: rest, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
