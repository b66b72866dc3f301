package searcher

import (
	"fmt"
	"math"
	"strings"
)

// Modifier overrides a base policy for the children it applies to.
type Modifier interface {
	Name() string
	Flags() Flags
	Modify(n *Node) (value float64, ok bool)
}

// Chain consults its modifiers in order and falls through to Base when none applies.
type Chain struct {
	Modifiers []Modifier
	Base      SelectionPolicy
}

func NewChain(base SelectionPolicy, modifiers ...Modifier) Chain {
	return Chain{Modifiers: modifiers, Base: base}
}

// ScoreBounded prunes children that cannot improve on a proven alternative during tree descent.
func ScoreBounded(base SelectionPolicy) Chain {
	return NewChain(base, ProvenWin{}, Dominated{})
}

// ScoreBoundedFinal prefers proven wins and avoids proven losses when picking the move to play.
func ScoreBoundedFinal(base SelectionPolicy) Chain {
	return NewChain(base, ProvenWin{}, ProvenLoss{})
}

// ProofNumberFinal prefers children proved by the proof-number bookkeeping.
func ProofNumberFinal(base SelectionPolicy) Chain {
	return NewChain(base, Proved{})
}

func (c Chain) Name() string {
	if len(c.Modifiers) == 0 {
		return c.Base.Name()
	}
	names := make([]string, len(c.Modifiers))
	for i, m := range c.Modifiers {
		names[i] = m.Name()
	}
	return fmt.Sprintf("%s(%s)", strings.Join(names, ", "), c.Base.Name())
}

func (c Chain) Flags() Flags {
	flags := c.Base.Flags()
	for _, m := range c.Modifiers {
		flags |= m.Flags()
	}
	return flags
}

func (c Chain) Value(n *Node) float64 {
	for _, m := range c.Modifiers {
		if value, ok := m.Modify(n); ok {
			return value
		}
	}
	return c.Base.Value(n)
}

type ProvenWin struct{}

func (ProvenWin) Name() string { return "Proven Win" }
func (ProvenWin) Flags() Flags { return ScoreBounds }

func (ProvenWin) Modify(n *Node) (float64, bool) {
	parent := n.Parent()
	if parent != nil && n.IsWin(parent.mover) {
		return math.Inf(1), true
	}
	return 0, false
}

// Dominated applies when a child's optimistic score cannot beat what the parent already guarantees.
type Dominated struct{}

func (Dominated) Name() string { return "Dominated" }
func (Dominated) Flags() Flags { return ScoreBounds }

func (Dominated) Modify(n *Node) (float64, bool) {
	parent := n.Parent()
	if parent != nil && n.optimistic[parent.mover] <= parent.pessimistic[parent.mover] {
		return math.Inf(-1), true
	}
	return 0, false
}

type ProvenLoss struct{}

func (ProvenLoss) Name() string { return "Proven Loss" }
func (ProvenLoss) Flags() Flags { return ScoreBounds }

func (ProvenLoss) Modify(n *Node) (float64, bool) {
	parent := n.Parent()
	if parent != nil && n.IsLoss(parent.mover) {
		return math.Inf(-1), true
	}
	return 0, false
}

type Proved struct{}

func (Proved) Name() string { return "Proved" }
func (Proved) Flags() Flags { return ProofDisproofNumbers }

func (Proved) Modify(n *Node) (float64, bool) {
	if n.proof == 0 {
		return math.Inf(1), true
	}
	return 0, false
}
