package searcher

import (
	"fmt"

	"xmcts/game"

	"golang.org/x/exp/rand"
)

// NodeID addresses a node inside its tree's arena.
type NodeID int

const noParent NodeID = -1

// Tree is an arena of nodes with a logical root. Nodes refer to each other by NodeID only.
type Tree struct {
	game    game.Game
	players int
	rng     *rand.Rand
	nodes   []*Node
	root    NodeID
}

func NewTree(g game.Game, state game.State, rng *rand.Rand) *Tree {
	players := g.NumPlayers()
	if players <= 0 {
		panic(fmt.Sprintf("game %s reports %d players", g.Name(), players))
	}
	t := &Tree{
		game:    g,
		players: players,
		rng:     rng,
	}
	t.root = t.add(noParent, nil, state).id
	return t
}

func (t *Tree) add(parent NodeID, move game.Move, state game.State) *Node {
	n := newNode(t, NodeID(len(t.nodes)), parent, move, state)
	t.nodes = append(t.nodes, n)
	return n
}

func (t *Tree) Root() *Node {
	return t.nodes[t.root]
}

func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("node %d out of range [0, %d)", id, len(t.nodes)))
	}
	return t.nodes[id]
}

func (t *Tree) Size() int {
	return len(t.nodes)
}

func (t *Tree) Game() game.Game {
	return t.game
}

func (t *Tree) Players() int {
	return t.players
}

func (t *Tree) Rand() *rand.Rand {
	return t.rng
}

// Reroot makes n the root and releases every node outside its subtree.
// Surviving nodes are renumbered breadth first, so previously held NodeIDs become invalid.
func (t *Tree) Reroot(n *Node) {
	if n.tree != t {
		panic("node belongs to a different tree")
	}

	order := []*Node{n}
	for i := 0; i < len(order); i++ {
		for _, child := range order[i].children {
			order = append(order, t.nodes[child])
		}
	}

	ids := make(map[NodeID]NodeID, len(order))
	for i, node := range order {
		ids[node.id] = NodeID(i)
	}
	for i, node := range order {
		node.id = NodeID(i)
		if i == 0 {
			node.parent = noParent
		} else {
			node.parent = ids[node.parent]
		}
		for j, child := range node.children {
			node.children[j] = ids[child]
		}
	}

	t.nodes = order
	t.root = 0
}

// Walk visits the root's subtree depth first until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	stack := []NodeID{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.nodes[id]
		if !fn(node) {
			return
		}
		stack = append(stack, node.children...)
	}
}
