package xtree

import (
	"sync"

	"github.com/soypat/dctree/region"
)

// Pool is a thread-local free-list of Node blocks (Component C of
// spec.md §4.C). Each worker owns exactly one; it is never shared, so no
// synchronization is needed until the worker hands it to a Root.
type Pool struct {
	free []*Node
}

// Get returns a zeroed node wired to its parent and region. It reuses a
// released block when one is available instead of allocating.
func (p *Pool) Get(parent *Node, index int, r region.Region3) *Node {
	var n *Node
	if l := len(p.free); l > 0 {
		n = p.free[l-1]
		p.free = p.free[:l-1]
		*n = Node{}
	} else {
		n = &Node{}
	}
	n.Parent = parent
	n.ParentIndex = index
	n.Region = r
	return n
}

// Release returns a node (and, transitively through CollectChildren's
// caller, none of its children — those must already be released) to the
// free list, clearing its fields so no leaf data or pointers dangle.
func (p *Pool) Release(n *Node) {
	*n = Node{}
	p.free = append(p.free, n)
}

// Len reports how many blocks are currently free, exposed for tests and
// for ResourceExhaustion accounting.
func (p *Pool) Len() int { return len(p.free) }

// Root is the owning handle for a built tree (spec.md §3's Root<T>). On
// Destroy it walks the tree draining nodes into pools claimed from
// workers, guaranteeing no dangling leaf data outlives the Root.
type Root struct {
	mu      sync.Mutex
	claimed []*Pool
	tree    *Node
}

// Claim accepts a worker's pool under the root mutex, called once per
// worker on loop exit (spec.md §4.F step 9).
func (r *Root) Claim(p *Pool) {
	r.mu.Lock()
	r.claimed = append(r.claimed, p)
	r.mu.Unlock()
}

// SetTree installs the finished (or partially built, if cancelled) tree.
func (r *Root) SetTree(n *Node) { r.tree = n }

// Tree returns the root node, or nil if the build was cancelled or never
// completed.
func (r *Root) Tree() *Node { return r.tree }

// Destroy walks the tree releasing every node to a claimed pool (or a
// fresh one if none were ever claimed), then clears the root. Called both
// on normal completion cleanup and, more importantly, on cancellation to
// drain a partially built tree before returning an empty Mesh.
func (r *Root) Destroy() {
	if r.tree == nil {
		return
	}
	var pool *Pool
	if len(r.claimed) > 0 {
		pool = r.claimed[0]
	} else {
		pool = &Pool{}
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
		pool.Release(n)
	}
	walk(r.tree)
	r.tree = nil
}
