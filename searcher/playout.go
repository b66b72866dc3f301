package searcher

import (
	"fmt"

	"xmcts/game"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultEpsilon        = 0.1
	DefaultMaxNGramLength = 3

	// unseenScore ranks moves without statistics below every observed move.
	unseenScore = -1.0
)

type PlayoutPolicy interface {
	Name() string
	Flags() Flags
	// Playout runs from s to a terminal state without modifying s.
	Playout(g game.Game, s game.State, rng *rand.Rand) game.State
}

// ActionStatsUser is implemented by policies that read the session's global move statistics.
type ActionStatsUser interface {
	BindActionStats(table *ActionTable)
}

// NGramStatsUser is implemented by policies that read the session's global n-gram statistics.
type NGramStatsUser interface {
	BindNGramStats(table *NGramTable)
	MaxNGramLength() int
}

// Uniform leaves the rollout entirely to the game.
type Uniform struct{}

func (Uniform) Name() string { return "Uniform" }
func (Uniform) Flags() Flags { return 0 }

func (Uniform) Playout(g game.Game, s game.State, rng *rand.Rand) game.State {
	return g.Playout(s, nil, rng)
}

// EpsilonGreedy plays the best scoring move, or asks for a uniform move with probability Epsilon.
type EpsilonGreedy struct {
	Epsilon float64
	Score   func(s game.State, move game.Move) float64
	rng     *rand.Rand
}

func NewEpsilonGreedy(epsilon float64, score func(game.State, game.Move) float64, rng *rand.Rand) *EpsilonGreedy {
	return &EpsilonGreedy{Epsilon: epsilon, Score: score, rng: rng}
}

func (e *EpsilonGreedy) WantsUniform() bool {
	return e.rng.Float64() < e.Epsilon
}

func (e *EpsilonGreedy) SelectMove(s game.State, legal []game.Move) game.Move {
	var best game.Move
	bestScore := 0.0
	ties := 0
	for _, move := range legal {
		score := e.Score(s, move)
		switch {
		case best == nil || score > bestScore:
			best, bestScore, ties = move, score, 1
		case score == bestScore:
			ties++
			if e.rng.Intn(ties) == 0 {
				best = move
			}
		}
	}
	return best
}

// MAST biases rollouts toward moves with a high global mean score for the player making them.
type MAST struct {
	Epsilon float64
	table   *ActionTable
}

func NewMAST(epsilon float64) *MAST {
	return &MAST{Epsilon: epsilon}
}

func (m *MAST) Name() string {
	return fmt.Sprintf("MAST (epsilon: %.2f)", m.Epsilon)
}

func (m *MAST) Flags() Flags {
	return GlobalActionStats
}

func (m *MAST) BindActionStats(table *ActionTable) {
	m.table = table
}

func (m *MAST) Playout(g game.Game, s game.State, rng *rand.Rand) game.State {
	if m.table == nil {
		panic("MAST playout without global action stats")
	}
	return g.Playout(s, NewEpsilonGreedy(m.Epsilon, m.score, rng), rng)
}

func (m *MAST) score(s game.State, move game.Move) float64 {
	if mean, ok := m.table.Mean(move.Key(), s.Mover()); ok {
		return mean
	}
	return unseenScore
}

// NST generalizes MAST to the n-grams formed by a move and the moves played just before it.
type NST struct {
	Epsilon float64
	MaxN    int
	table   *NGramTable
}

func NewNST(maxN int, epsilon float64) *NST {
	return &NST{Epsilon: epsilon, MaxN: maxN}
}

func (n *NST) Name() string {
	return fmt.Sprintf("NST (max n: %d, epsilon: %.2f)", n.MaxN, n.Epsilon)
}

func (n *NST) Flags() Flags {
	return GlobalNGramActionStats
}

func (n *NST) BindNGramStats(table *NGramTable) {
	n.table = table
}

func (n *NST) MaxNGramLength() int {
	return n.MaxN
}

func (n *NST) Playout(g game.Game, s game.State, rng *rand.Rand) game.State {
	if n.table == nil {
		panic("NST playout without global n-gram stats")
	}
	return g.Playout(s, NewEpsilonGreedy(n.Epsilon, n.score, rng), rng)
}

// score averages the means of the 1..MaxN-grams ending in move, stopping at the first one never observed.
func (n *NST) score(s game.State, move game.Move) float64 {
	means := make([]float64, 0, n.MaxN)
	for _, key := range NGramsEndingWith(s.History(), move, n.MaxN) {
		mean, ok := n.table.Mean(key, s.Mover())
		if !ok {
			break
		}
		means = append(means, mean)
	}
	if len(means) == 0 {
		return unseenScore
	}
	return stat.Mean(means, nil)
}
