// Package neighbors implements the lazily-resolved sibling/cousin table
// (Component G of spec.md §4.G): for each of a cell's 26 axis-aligned
// neighbor positions, a pointer to the same-or-shallower same-size
// neighbor cell, derived from the parent's own table plus the currently
// visible sibling pointers. Resolving this just before leaf evaluation
// (rather than at allocation time) is what lets a worker observe sibling
// cells built concurrently by other workers.
package neighbors

import "github.com/soypat/dctree/internal/xtree"

// Table holds one *xtree.Node (or nil) per of the 3^3-1 = 26 directions
// around a cell, indexed by dirIndex.
type Table struct {
	slots [26]*xtree.Node
}

// directions enumerates the 26 non-zero offsets in {-1,0,1}^3, in a fixed
// order used to index Table.slots.
var directions = buildDirections()

func buildDirections() [26][3]int8 {
	var out [26][3]int8
	i := 0
	for dx := int8(-1); dx <= 1; dx++ {
		for dy := int8(-1); dy <= 1; dy++ {
			for dz := int8(-1); dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[i] = [3]int8{dx, dy, dz}
				i++
			}
		}
	}
	return out
}

func dirIndex(d [3]int8) int {
	for i, c := range directions {
		if c == d {
			return i
		}
	}
	return -1
}

// Get returns the neighbor stored for direction d, or nil.
func (t *Table) Get(d [3]int8) *xtree.Node {
	i := dirIndex(d)
	if i < 0 {
		return nil
	}
	return t.slots[i]
}

func (t *Table) set(d [3]int8, n *xtree.Node) {
	i := dirIndex(d)
	if i >= 0 {
		t.slots[i] = n
	}
}

func bits(index int) [3]int8 {
	return [3]int8{int8(index & 1), int8((index >> 1) & 1), int8((index >> 2) & 1)}
}

func indexFromBits(b [3]int8) int {
	return int(b[0]) | int(b[1])<<1 | int(b[2])<<2
}

func wrap(v int8) int8 {
	switch v {
	case -1:
		return 1
	case 2:
		return 0
	default:
		return v
	}
}

// Push derives the child's neighbor table: childIndex is the octree
// corner position (0-7) of the child within its parent, siblings is the
// parent's current Children array (some slots may still be nil — that's
// fine, it just means that sibling isn't resolvable yet), and parent is
// the parent cell's own already-resolved Table.
func Push(childIndex int, siblings [8]*xtree.Node, parent *Table) *Table {
	childBits := bits(childIndex)
	out := &Table{}
	for _, d := range directions {
		var newCoord [3]int8
		withinParent := true
		for a := 0; a < 3; a++ {
			nc := childBits[a] + d[a]
			newCoord[a] = nc
			if nc < 0 || nc > 1 {
				withinParent = false
			}
		}
		if withinParent {
			out.set(d, siblings[indexFromBits(newCoord)])
			continue
		}
		if parent == nil {
			continue
		}
		// Step to the parent's neighbor only along the axes on which d
		// leaves the parent.
		var pd [3]int8
		for a := 0; a < 3; a++ {
			if newCoord[a] < 0 {
				pd[a] = -1
			} else if newCoord[a] > 1 {
				pd[a] = 1
			}
		}
		p := parent.Get(pd)
		if p == nil {
			continue
		}
		var descend [3]int8
		for a := 0; a < 3; a++ {
			descend[a] = wrap(newCoord[a])
		}
		childIdx := indexFromBits(descend)
		if child := p.Children[childIdx]; child != nil {
			out.set(d, child)
		} else {
			out.set(d, p) // shallower same-or-coarser neighbor
		}
	}
	return out
}
