package game

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
)

// Outcome bounds shared by utilities and score bounds.
const (
	Win  = 1.0
	Loss = -1.0
)

var ErrIllegalMove = errors.New("illegal move")

// MoveKey identifies a move independently of where it occurs in the tree.
type MoveKey string

// NGramKey identifies an ordered sequence of moves.
type NGramKey string

type Move interface {
	Key() MoveKey
	String() string
}

// State should be immutable - Play always returns a new state and leaves the receiver untouched.
// Players are numbered from 1.
type State interface {
	Mover() int
	LegalMoves() []Move
	Play(Move) State
	IsTerminal() bool
	LastMove() Move
	// History returns every move applied since the start of the game. Callers must not modify it.
	History() []Move
	// Utilities is indexed by player (index 0 unused), each value in [Loss, Win].
	Utilities() []float64
	// Ranking is indexed by player, 1 being first place. Unranked players report 0.
	Ranking() []float64
	NextWinRank() float64
	NextLossRank() float64
}

type Game interface {
	Name() string
	NumPlayers() int
	IsStochastic() bool
	IsAlternating() bool
	HasHiddenInformation() bool
	// Playout runs from s to a terminal state. A nil selector plays uniformly at random.
	Playout(s State, selector MoveSelector, rng *rand.Rand) State
}

// MoveSelector guides a playout one ply at a time.
type MoveSelector interface {
	// WantsUniform reports whether the next ply should be sampled uniformly instead.
	WantsUniform() bool
	SelectMove(s State, legal []Move) Move
}

const ngramSeparator = "\x1f"

func NGram(moves []Move) NGramKey {
	var b strings.Builder
	for i, move := range moves {
		if i > 0 {
			b.WriteString(ngramSeparator)
		}
		b.WriteString(string(move.Key()))
	}
	return NGramKey(b.String())
}

// RunPlayout is the rollout loop shared by game implementations.
func RunPlayout(s State, selector MoveSelector, rng *rand.Rand) State {
	for !s.IsTerminal() {
		moves := s.LegalMoves()
		if len(moves) == 0 {
			break
		}

		var move Move
		if selector != nil && !selector.WantsUniform() {
			move = selector.SelectMove(s, moves)
		}
		if move == nil {
			move = moves[rng.Intn(len(moves))]
		}
		s = s.Play(move)
	}
	return s
}

// Validate reports whether move is legal in s, matching by key.
func Validate(s State, move Move) error {
	if move == nil {
		return fmt.Errorf("nil move: %w", ErrIllegalMove)
	}
	for _, legal := range s.LegalMoves() {
		if legal.Key() == move.Key() {
			return nil
		}
	}
	return fmt.Errorf("move %s: %w", move, ErrIllegalMove)
}
