// Package tape implements the linearized SSA representation of a scalar
// field F that the octree core evaluates. A Tape never changes once built:
// specialization (dropping clauses dominated by one side of a min/max for
// a particular region) produces a new Tape that shares the same backing
// clause slice and points at the tape it was specialized from, forming a
// DAG of increasingly pruned programs rooted at the Tree's original tape.
package tape

import "github.com/soypat/dctree/region"

// Clause is one SSA instruction. A and B are indices of earlier clauses
// in the owning Tape (unused operands are left at 0, which is always a
// valid earlier-clause index because clause 0 always exists).
type Clause struct {
	Op    Opcode
	A, B  int
	Const float32 // value for OpConst; fill value for OpNaNFill
}

// Tape is an immutable clause program plus, for specialized tapes, the
// activity mask and region that specialization is valid for.
type Tape struct {
	clauses []Clause
	root    int

	// parent is the tape this one was specialized from (nil for the
	// tape produced directly from the Tree builder). Specialization
	// edges point from finer region to coarser ancestor, so the DAG has
	// no cycles: a tape is only ever specialized into tapes valid for
	// equal or smaller regions.
	parent *Tape
	// active marks which clauses of clauses are live in this
	// specialization. nil means every clause is active (the unspecialized
	// tape straight from the builder).
	active []bool
	// region is the largest region this particular specialization is
	// known to be valid over; used by GetBase to find an ancestor valid
	// for a bigger region while folding back up the octree.
	region region.Region3
}

// Builder assembles clauses into a Tape. It is the minimal stand-in for
// the Tree builder named as an external collaborator in spec.md §1: tests
// and the default CPU evaluator use it to construct tapes directly rather
// than going through expression-tree parsing and simplification.
type Builder struct {
	clauses []Clause
}

func (b *Builder) push(c Clause) int {
	b.clauses = append(b.clauses, c)
	return len(b.clauses) - 1
}

func (b *Builder) Const(v float32) int        { return b.push(Clause{Op: OpConst, Const: v}) }
func (b *Builder) X() int                     { return b.push(Clause{Op: OpX}) }
func (b *Builder) Y() int                     { return b.push(Clause{Op: OpY}) }
func (b *Builder) Z() int                     { return b.push(Clause{Op: OpZ}) }
func (b *Builder) Binary(op Opcode, a, c int) int {
	if op.Arity() != 2 {
		panic("tape: Binary called with non-binary opcode " + op.String())
	}
	return b.push(Clause{Op: op, A: a, B: c})
}
func (b *Builder) Unary(op Opcode, a int) int {
	if op.Arity() != 1 {
		panic("tape: Unary called with non-unary opcode " + op.String())
	}
	return b.push(Clause{Op: op, A: a})
}

// Finish produces an immutable root Tape whose final value is clause root.
func (b *Builder) Finish(root int) *Tape {
	if root < 0 || root >= len(b.clauses) {
		panic("tape: root index out of range")
	}
	return &Tape{clauses: append([]Clause(nil), b.clauses...), root: root}
}

// Len returns the number of clauses in the underlying program (shared by
// every specialization derived from this tape).
func (t *Tape) Len() int { return len(t.clauses) }

// Root returns the index of the clause holding the tape's final value.
func (t *Tape) Root() int { return t.root }

// Clause returns the i'th clause.
func (t *Tape) Clause(i int) Clause { return t.clauses[i] }

// Clauses returns the tape's backing clause slice. Callers must treat it
// as read-only: every specialization of a tape shares this same slice.
func (t *Tape) Clauses() []Clause { return t.clauses }

// Active reports whether clause i participates in this specialization.
// An unspecialized tape considers every clause active.
func (t *Tape) Active(i int) bool {
	if t.active == nil {
		return true
	}
	return t.active[i]
}

// NumActive returns how many clauses are active in this specialization,
// or the full clause count for an unspecialized tape.
func (t *Tape) NumActive() int {
	if t.active == nil {
		return len(t.clauses)
	}
	n := 0
	for _, a := range t.active {
		if a {
			n++
		}
	}
	return n
}

// Specialize returns a new Tape sharing this one's clause storage but
// restricted to the clauses reachable from root under the given active
// mask, recorded as valid for region r. The new tape's parent is t, so
// GetBase can walk back up to t (or further) when a coarser region is
// needed later.
func (t *Tape) Specialize(active []bool, r region.Region3) *Tape {
	return &Tape{
		clauses: t.clauses,
		root:    t.root,
		parent:  t,
		active:  active,
		region:  r,
	}
}

// Region returns the region this specialization was computed valid for.
// Zero value for an unspecialized tape (the caller is expected to track
// the root region separately in that case).
func (t *Tape) Region() region.Region3 { return t.region }

// GetBase walks up the specialization DAG from t until it finds a tape
// whose recorded region enccompasses bigger, returning that ancestor (or
// the root-most tape if none of the ancestors' regions are big enough,
// which happens once we reach the unspecialized tape whose region is the
// zero Region3 — callers must stop climbing past that case themselves by
// tracking the true root region, exactly like libfive's Tape::getBase
// paired with WorkerPool::run's use of the root Region).
func GetBase(t *Tape, bigger region.Region3) *Tape {
	for t.parent != nil && !t.region.ContainsRegion(bigger) {
		t = t.parent
	}
	return t
}

// ActiveClauses builds the SSA reachability mask used right after interval
// evaluation: starting from root, mark every clause transitively required.
// For a clause listed in prunedOperand only the operand stored there (0 for
// A, 1 for B) is followed: dominance pruning from a min/max whose interval
// result excludes the other side for the whole region.
func ActiveClauses(clauses []Clause, root int, prunedOperand map[int]int) []bool {
	active := make([]bool, len(clauses))
	var mark func(i int)
	mark = func(i int) {
		if active[i] {
			return
		}
		active[i] = true
		c := clauses[i]
		switch c.Op.Arity() {
		case 1:
			mark(c.A)
		case 2:
			keep, pruned := prunedOperand[i]
			if !pruned || keep == 0 {
				mark(c.A)
			}
			if !pruned || keep == 1 {
				mark(c.B)
			}
		}
	}
	mark(root)
	return active
}
