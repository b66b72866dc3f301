package searcher

import (
	"math"

	"xmcts/game"
)

// Infinity stands for an infinite proof or disproof number.
const Infinity = math.MaxInt

const unset = -1

type Node struct {
	tree   *Tree
	id     NodeID
	parent NodeID
	move   game.Move
	state  game.State

	mover    int
	numMoves int
	terminal bool

	visits      int
	scoreSums   []float64
	pessimistic []float64
	optimistic  []float64
	amaf        map[game.MoveKey]*ActionStats

	proof    int
	disproof int

	children   []NodeID
	unexpanded []game.Move
}

// SimulationResult is the outcome of one playout: the terminal state reached and its utilities.
type SimulationResult struct {
	State     game.State
	Utilities []float64
}

func newNode(tree *Tree, id, parent NodeID, move game.Move, state game.State) *Node {
	players := tree.players
	n := &Node{
		tree:        tree,
		id:          id,
		parent:      parent,
		move:        move,
		state:       state,
		mover:       state.Mover(),
		numMoves:    len(state.History()),
		terminal:    state.IsTerminal(),
		scoreSums:   make([]float64, players+1),
		pessimistic: make([]float64, players+1),
		optimistic:  make([]float64, players+1),
		amaf:        map[game.MoveKey]*ActionStats{},
		proof:       unset,
		disproof:    unset,
	}
	for p := 1; p <= players; p++ {
		n.pessimistic[p] = game.Loss
		n.optimistic[p] = game.Win
	}
	if !n.terminal {
		n.unexpanded = append([]game.Move(nil), state.LegalMoves()...)
	}
	return n
}

func (n *Node) ID() NodeID {
	return n.id
}

// Parent returns nil for the root.
func (n *Node) Parent() *Node {
	if n.parent == noParent {
		return nil
	}
	return n.tree.nodes[n.parent]
}

// Move returns the move leading from the parent to this node, nil for a fresh root.
func (n *Node) Move() game.Move {
	return n.move
}

func (n *Node) State() game.State {
	return n.state
}

func (n *Node) Mover() int {
	return n.mover
}

// Depth is the number of moves played since the start of the game.
func (n *Node) Depth() int {
	return n.numMoves
}

func (n *Node) Visits() int {
	return n.visits
}

func (n *Node) ScoreSum(player int) float64 {
	return n.scoreSums[player]
}

func (n *Node) MeanScore(player int) (float64, bool) {
	if n.visits == 0 {
		return 0, false
	}
	return n.scoreSums[player] / float64(n.visits), true
}

func (n *Node) Pessimistic(player int) float64 {
	return n.pessimistic[player]
}

func (n *Node) Optimistic(player int) float64 {
	return n.optimistic[player]
}

func (n *Node) IsTerminal() bool {
	return n.terminal
}

func (n *Node) IsExpanded() bool {
	return len(n.unexpanded) == 0
}

func (n *Node) IsSolved(player int) bool {
	return n.pessimistic[player] == n.optimistic[player]
}

func (n *Node) IsWin(player int) bool {
	return n.pessimistic[player] == game.Win
}

func (n *Node) IsLoss(player int) bool {
	return n.optimistic[player] == game.Loss
}

// Proof returns the proof number, -1 while unset.
func (n *Node) Proof() int {
	return n.proof
}

// Disproof returns the disproof number, -1 while unset.
func (n *Node) Disproof() int {
	return n.disproof
}

// AMAF returns the all-moves-as-first stats of key recorded at this node, nil when never observed.
func (n *Node) AMAF(key game.MoveKey) *ActionStats {
	return n.amaf[key]
}

func (n *Node) NumChildren() int {
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	return n.tree.nodes[n.children[i]]
}

func (n *Node) Children() []*Node {
	children := make([]*Node, len(n.children))
	for i, id := range n.children {
		children[i] = n.tree.nodes[id]
	}
	return children
}

// ChildByMove returns nil when the move has not been expanded.
func (n *Node) ChildByMove(key game.MoveKey) *Node {
	for _, id := range n.children {
		child := n.tree.nodes[id]
		if child.move.Key() == key {
			return child
		}
	}
	return nil
}

func (n *Node) NumUnexpanded() int {
	return len(n.unexpanded)
}

// BranchingFactor counts every legal move at this node, expanded or not.
func (n *Node) BranchingFactor() int {
	return len(n.children) + len(n.unexpanded)
}

// Select returns the child with the highest policy value, breaking ties uniformly at random.
func (n *Node) Select(policy SelectionPolicy) *Node {
	var best *Node
	bestValue := math.Inf(-1)
	ties := 0
	for _, id := range n.children {
		child := n.tree.nodes[id]
		value := policy.Value(child)
		switch {
		case value > bestValue:
			best, bestValue, ties = child, value, 1
		case value == bestValue:
			ties++
			if n.tree.rng.Intn(ties) == 0 {
				best = child
			}
		}
	}
	return best
}

// Expand adds a child for one random untried move. Expanded, terminal and solved nodes return themselves.
func (n *Node) Expand() *Node {
	if n.IsExpanded() || n.terminal || n.IsSolved(n.mover) {
		return n
	}

	i := n.tree.rng.Intn(len(n.unexpanded))
	move := n.unexpanded[i]
	last := len(n.unexpanded) - 1
	n.unexpanded[i] = n.unexpanded[last]
	n.unexpanded[last] = nil
	n.unexpanded = n.unexpanded[:last]

	child := n.tree.add(n.id, move, n.state.Play(move))
	n.children = append(n.children, child.id)
	return child
}

func (n *Node) Simulate(policy PlayoutPolicy) SimulationResult {
	if n.IsSolved(n.mover) {
		return SimulationResult{State: n.state, Utilities: append([]float64(nil), n.pessimistic...)}
	}
	if n.terminal {
		return SimulationResult{State: n.state, Utilities: n.state.Utilities()}
	}
	end := policy.Playout(n.tree.game, n.state, n.tree.rng)
	return SimulationResult{State: end, Utilities: end.Utilities()}
}

// Propagate records a simulation result at n and every ancestor.
func (n *Node) Propagate(result SimulationResult, flags Flags, proofPlayer int) {
	if flags.Has(ScoreBounds) && n.terminal {
		n.propagateScoreBounds(result.Utilities)
	}
	if flags.Has(AMAFStats) {
		n.propagateAMAF(result)
	}
	if flags.Has(ProofDisproofNumbers) {
		n.propagateProofNumbers(result.Utilities, proofPlayer)
	}

	for node := n; node != nil; node = node.Parent() {
		node.visits++
		for p := 1; p <= n.tree.players; p++ {
			node.scoreSums[p] += result.Utilities[p]
		}
	}
}

func (n *Node) propagateScoreBounds(utilities []float64) {
	for p := 1; p <= n.tree.players; p++ {
		n.pessimistic[p] = utilities[p]
		n.optimistic[p] = utilities[p]
	}
	for node := n.Parent(); node != nil; node = node.Parent() {
		if !node.updateScoreBounds() {
			break
		}
	}
}

// updateScoreBounds re-derives the bounds from the children and reports whether any changed.
func (n *Node) updateScoreBounds() bool {
	expanded := n.IsExpanded()
	changed := false
	for p := 1; p <= n.tree.players; p++ {
		var pessimistic, optimistic float64
		switch {
		case p == n.mover:
			pessimistic = n.childBound(p, false, true, game.Loss)
			optimistic = game.Win
			if expanded {
				optimistic = n.childBound(p, true, true, game.Win)
			}
		case expanded:
			pessimistic = n.childBound(p, false, false, game.Loss)
			optimistic = n.childBound(p, true, false, game.Win)
		default:
			pessimistic = game.Loss
			optimistic = n.childBound(p, true, false, game.Win)
		}

		if pessimistic != n.pessimistic[p] || optimistic != n.optimistic[p] {
			n.pessimistic[p] = pessimistic
			n.optimistic[p] = optimistic
			changed = true
		}
	}
	return changed
}

// childBound is the max (or min) of the children's optimistic (or pessimistic) score, fallback without children.
func (n *Node) childBound(player int, optimistic, maximize bool, fallback float64) float64 {
	bound, found := fallback, false
	for _, id := range n.children {
		child := n.tree.nodes[id]
		value := child.pessimistic[player]
		if optimistic {
			value = child.optimistic[player]
		}
		if !found || (maximize && value > bound) || (!maximize && value < bound) {
			bound, found = value, true
		}
	}
	return bound
}

func (n *Node) propagateAMAF(result SimulationResult) {
	history := result.State.History()
	for node := n; node != nil; node = node.Parent() {
		if node.numMoves > len(history) {
			continue
		}
		for _, move := range history[node.numMoves:] {
			stats, ok := node.amaf[move.Key()]
			if !ok {
				stats = NewActionStats(n.tree.players)
				node.amaf[move.Key()] = stats
			}
			stats.Add(result.Utilities)
		}
	}
}

func (n *Node) propagateProofNumbers(utilities []float64, proofPlayer int) {
	if n.terminal {
		if utilities[proofPlayer] == game.Win {
			n.proof, n.disproof = 0, Infinity
		} else {
			n.proof, n.disproof = Infinity, 0
		}
	} else {
		n.updateProofNumbers(proofPlayer)
	}

	for node := n.Parent(); node != nil; node = node.Parent() {
		node.updateProofNumbers(proofPlayer)
	}
}

// updateProofNumbers applies the AND/OR rules. Unexpanded moves and unset children count as unknown leaves.
func (n *Node) updateProofNumbers(proofPlayer int) {
	if n.terminal {
		return
	}

	or := n.mover == proofPlayer
	least, total := Infinity, 0
	if open := len(n.unexpanded); open > 0 {
		least, total = 1, open
	}
	for _, id := range n.children {
		child := n.tree.nodes[id]
		proof, disproof := child.proof, child.disproof
		if proof == unset || disproof == unset {
			proof, disproof = 1, 1
		}
		if or {
			least = min(least, proof)
			total = saturatingAdd(total, disproof)
		} else {
			least = min(least, disproof)
			total = saturatingAdd(total, proof)
		}
	}
	if len(n.children) == 0 && len(n.unexpanded) == 0 {
		least, total = 1, 1
	}

	if or {
		n.proof, n.disproof = least, total
	} else {
		n.proof, n.disproof = total, least
	}
}

func saturatingAdd(a, b int) int {
	if a >= Infinity-b {
		return Infinity
	}
	return a + b
}
