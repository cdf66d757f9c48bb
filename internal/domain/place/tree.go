package place

import (
	"sort"
	"sync"
)

// Tree is a concurrency-safe nested map of loaded entities. Interior nodes
// are *Tree values; everything else is a leaf. Trees are shared by reference
// with the sandbox, so mutations are visible to hosted code immediately.
type Tree struct {
	mu    sync.RWMutex
	items map[string]interface{}
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{items: make(map[string]interface{})}
}

// Get returns the node at path
func (t *Tree) Get(path ...string) (interface{}, bool) {
	if len(path) == 0 {
		return t, true
	}
	t.mu.RLock()
	v, ok := t.items[path[0]]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return v, true
	}
	sub, ok := v.(*Tree)
	if !ok {
		return nil, false
	}
	return sub.Get(path[1:]...)
}

// Set stores value at path, creating interior nodes as needed. A leaf in the
// way of an interior node is replaced.
func (t *Tree) Set(value interface{}, path ...string) {
	if len(path) == 0 {
		return
	}
	t.mu.Lock()
	if len(path) == 1 {
		t.items[path[0]] = value
		t.mu.Unlock()
		return
	}
	sub, ok := t.items[path[0]].(*Tree)
	if !ok {
		sub = NewTree()
		t.items[path[0]] = sub
	}
	t.mu.Unlock()
	sub.Set(value, path[1:]...)
}

// Delete removes the node at path and prunes interior nodes left empty.
// It reports whether anything was removed.
func (t *Tree) Delete(path ...string) bool {
	if len(path) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.items[path[0]]
	if !ok {
		return false
	}
	if len(path) == 1 {
		delete(t.items, path[0])
		return true
	}
	sub, ok := v.(*Tree)
	if !ok {
		return false
	}
	removed := sub.Delete(path[1:]...)
	if removed && sub.Len() == 0 {
		delete(t.items, path[0])
	}
	return removed
}

// Keys returns the direct children names in sorted order
func (t *Tree) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of direct children
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Clear removes every node
func (t *Tree) Clear() {
	t.mu.Lock()
	t.items = make(map[string]interface{})
	t.mu.Unlock()
}

// Walk visits every leaf in key order with its full path.
func (t *Tree) Walk(fn func(path []string, value interface{})) {
	t.walk(nil, fn)
}

func (t *Tree) walk(prefix []string, fn func([]string, interface{})) {
	for _, k := range t.Keys() {
		v, ok := t.Get(k)
		if !ok {
			continue
		}
		path := append(append([]string{}, prefix...), k)
		if sub, ok := v.(*Tree); ok {
			sub.walk(path, fn)
			continue
		}
		fn(path, v)
	}
}
