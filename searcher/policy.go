package searcher

import (
	"fmt"
	"math"
)

// CSquared is the UCB1 exploration constant.
const CSquared = 2.0

type SelectionPolicy interface {
	Name() string
	// Flags lists the propagation side effects the policy depends on.
	Flags() Flags
	// Value scores a child from the point of view of its parent's mover.
	Value(n *Node) float64
}

type uct struct {
	numerator float64
}

// newUCT precomputes c^2*ln(N); fewer than one parent visit counts as one.
func newUCT(cSquared float64, N float64) uct {
	return uct{numerator: cSquared * math.Log(max(1, N))}
}

func (u uct) evaluate(q float64, n float64) float64 {
	// Prioritize unexplored nodes
	if n == 0 {
		return math.Inf(1)
	}
	// UCT = q/n + sqrt(c^2*ln(N)/n)
	return q/n + math.Sqrt(u.numerator/n)
}

type UCB1 struct {
	CSquared float64
}

func NewUCB1() UCB1 {
	return UCB1{CSquared: CSquared}
}

func (u UCB1) Name() string {
	return "UCB1"
}

func (u UCB1) Flags() Flags {
	return 0
}

func (u UCB1) Value(n *Node) float64 {
	parent := n.Parent()
	if parent == nil {
		return 0
	}
	return newUCT(u.CSquared, float64(parent.visits)).evaluate(n.scoreSums[parent.mover], float64(n.visits))
}

const (
	DefaultGRAVEBias = 1e-6
	DefaultGRAVERef  = 100
)

// GRAVE blends a child's mean score with the AMAF score of its move.
// The AMAF table comes from the selecting node. With AncestorReference set, the closest ancestor holding at
// least Ref visits supplies it instead.
type GRAVE struct {
	Bias              float64
	Ref               int
	AncestorReference bool
}

func NewGRAVE(bias float64, ref int) GRAVE {
	return GRAVE{Bias: bias, Ref: ref}
}

// Name mentions the reference threshold only when ancestors are consulted; otherwise the policy is plain RAVE.
func (g GRAVE) Name() string {
	if g.usesAncestors() {
		return fmt.Sprintf("GRAVE with bias: %f, ref: %d", g.Bias, g.Ref)
	}
	return fmt.Sprintf("GRAVE with bias: %f (RAVE)", g.Bias)
}

func (g GRAVE) usesAncestors() bool {
	return g.AncestorReference && g.Ref > 0
}

func (g GRAVE) Flags() Flags {
	return AMAFStats
}

func (g GRAVE) Value(n *Node) float64 {
	parent := n.Parent()
	if parent == nil {
		return 0
	}
	if n.visits == 0 {
		return math.Inf(1)
	}

	mover := parent.mover
	p := float64(n.visits)
	mean := n.scoreSums[mover] / p

	stats := g.reference(parent).AMAF(n.move.Key())
	if stats == nil || stats.visits == 0 {
		return mean
	}
	pa := float64(stats.visits)
	beta := pa / (pa + p + g.Bias*pa*p)
	return (1-beta)*mean + beta*stats.scoreSums[mover]/pa
}

func (g GRAVE) reference(node *Node) *Node {
	if !g.usesAncestors() {
		return node
	}
	for node.visits < g.Ref && node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

// MostVisited is the "robust child" final move selector.
type MostVisited struct{}

func (MostVisited) Name() string {
	return "Most Visited"
}

func (MostVisited) Flags() Flags {
	return 0
}

func (MostVisited) Value(n *Node) float64 {
	return float64(n.visits)
}
