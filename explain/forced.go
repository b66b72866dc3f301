package explain

import (
	"xmcts/searcher"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

const DefaultForcedDepth = 3

// Ply describes one position along a principal variation.
type Ply struct {
	Node            *searcher.Node
	Depth           int
	BranchingFactor int
	// ProvenBad holds the children already proven to lose for the player to move at Node.
	ProvenBad []*searcher.Node
}

// Forced reports whether most options at this ply are proven losses.
func (p Ply) Forced() bool {
	return p.BranchingFactor > 0 && 2*len(p.ProvenBad) > p.BranchingFactor
}

// LimitedMobility reports whether the ply offers far fewer options than an average position.
func (p Ply) LimitedMobility(averageBranchingFactor float64) bool {
	return p.BranchingFactor > 0 && float64(p.BranchingFactor) < averageBranchingFactor/8
}

// ForcedMoves walks the principal variation starting at a node.
type ForcedMoves struct {
	Plies []Ply
}

// NewForcedMoves follows policy from start for at most maxDepth plies below it. startDepth is the depth of start
// relative to the searched root.
func NewForcedMoves(start *searcher.Node, policy searcher.SelectionPolicy, startDepth, maxDepth int) *ForcedMoves {
	f := &ForcedMoves{}
	node := start
	for depth := startDepth; node != nil && depth <= maxDepth; depth++ {
		mover := node.Mover()
		f.Plies = append(f.Plies, Ply{
			Node:            node,
			Depth:           depth,
			BranchingFactor: node.BranchingFactor(),
			ProvenBad: lo.Filter(node.Children(), func(child *searcher.Node, _ int) bool {
				return child.IsLoss(mover)
			}),
		})
		if node.IsTerminal() {
			break
		}
		node = node.Select(policy)
	}
	return f
}

func (f *ForcedMoves) ForcedPlies() []Ply {
	return lo.Filter(f.Plies, func(p Ply, _ int) bool {
		return p.Forced()
	})
}

func (f *ForcedMoves) LimitedPlies(averageBranchingFactor float64) []Ply {
	return lo.Filter(f.Plies, func(p Ply, _ int) bool {
		return p.LimitedMobility(averageBranchingFactor)
	})
}

// AverageBranchingFactor averages the legal move counts of the non-terminal nodes in the tree.
func AverageBranchingFactor(tree *searcher.Tree) float64 {
	factors := []float64{}
	tree.Walk(func(n *searcher.Node) bool {
		if !n.IsTerminal() {
			factors = append(factors, float64(n.BranchingFactor()))
		}
		return true
	})
	if len(factors) == 0 {
		return 0
	}
	return stat.Mean(factors, nil)
}
