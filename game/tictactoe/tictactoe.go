// Package tictactoe is a small reference game used to exercise the searchers.
package tictactoe

import (
	"fmt"
	"strings"

	"xmcts/game"

	"golang.org/x/exp/rand"
)

const (
	X = 1
	O = 2

	Cells = 9
)

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type Move struct {
	Cell   int
	Player int
}

func (m Move) Key() game.MoveKey {
	return game.MoveKey(fmt.Sprintf("%d:%d", m.Player, m.Cell))
}

func (m Move) String() string {
	return fmt.Sprintf("%s@%d", mark(m.Player), m.Cell)
}

func mark(player int) string {
	switch player {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return "."
	}
}

type State struct {
	board   [Cells]int
	mover   int
	winner  int
	history []game.Move
}

// New returns the empty board with X to move.
func New() *State {
	return &State{mover: X}
}

// Parse reads a 9 character board of 'X', 'O' and '.' (row by row) with the given player to move.
func Parse(board string, mover int) (*State, error) {
	board = strings.ReplaceAll(board, " ", "")
	if len(board) != Cells {
		return nil, fmt.Errorf("board %q must have %d cells", board, Cells)
	}
	if mover != X && mover != O {
		return nil, fmt.Errorf("unknown player %d", mover)
	}

	s := &State{mover: mover}
	for i, c := range board {
		switch c {
		case 'X', 'x':
			s.board[i] = X
		case 'O', 'o':
			s.board[i] = O
		case '.':
		default:
			return nil, fmt.Errorf("unexpected cell %q at %d", c, i)
		}
	}
	s.winner = s.findWinner()
	return s, nil
}

func (s *State) Mover() int {
	return s.mover
}

func (s *State) LegalMoves() []game.Move {
	if s.IsTerminal() {
		return nil
	}
	moves := make([]game.Move, 0, Cells)
	for i, owner := range s.board {
		if owner == 0 {
			moves = append(moves, Move{Cell: i, Player: s.mover})
		}
	}
	return moves
}

func (s *State) Play(move game.Move) game.State {
	m, ok := move.(Move)
	if !ok || m.Cell < 0 || m.Cell >= Cells || s.board[m.Cell] != 0 || m.Player != s.mover || s.IsTerminal() {
		panic(fmt.Sprintf("illegal move %v on board %s", move, s))
	}

	next := &State{
		board:   s.board,
		mover:   3 - s.mover,
		history: append(s.history[:len(s.history):len(s.history)], m),
	}
	next.board[m.Cell] = m.Player
	next.winner = next.findWinner()
	return next
}

func (s *State) findWinner() int {
	for _, line := range lines {
		owner := s.board[line[0]]
		if owner != 0 && owner == s.board[line[1]] && owner == s.board[line[2]] {
			return owner
		}
	}
	return 0
}

func (s *State) full() bool {
	for _, owner := range s.board {
		if owner == 0 {
			return false
		}
	}
	return true
}

func (s *State) IsTerminal() bool {
	return s.winner != 0 || s.full()
}

func (s *State) LastMove() game.Move {
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

func (s *State) History() []game.Move {
	return s.history
}

// Cell returns X, O or 0 for an empty cell.
func (s *State) Cell(i int) int {
	return s.board[i]
}

// Winner returns X, O or 0 for no winner (yet).
func (s *State) Winner() int {
	return s.winner
}

func (s *State) Utilities() []float64 {
	utilities := make([]float64, 3)
	if s.winner != 0 {
		utilities[s.winner] = game.Win
		utilities[3-s.winner] = game.Loss
	}
	return utilities
}

func (s *State) Ranking() []float64 {
	switch {
	case s.winner != 0:
		ranking := make([]float64, 3)
		ranking[s.winner] = 1
		ranking[3-s.winner] = 2
		return ranking
	case s.full():
		return []float64{0, 1.5, 1.5}
	default:
		return []float64{0, 0, 0}
	}
}

func (s *State) NextWinRank() float64 {
	return 1
}

func (s *State) NextLossRank() float64 {
	return 2
}

func (s *State) String() string {
	var b strings.Builder
	for i, owner := range s.board {
		if i > 0 && i%3 == 0 {
			b.WriteByte('/')
		}
		b.WriteString(mark(owner))
	}
	return b.String()
}

type Game struct{}

func (Game) Name() string               { return "Tic-Tac-Toe" }
func (Game) NumPlayers() int            { return 2 }
func (Game) IsStochastic() bool         { return false }
func (Game) IsAlternating() bool        { return true }
func (Game) HasHiddenInformation() bool { return false }

func (Game) Playout(s game.State, selector game.MoveSelector, rng *rand.Rand) game.State {
	return game.RunPlayout(s, selector, rng)
}
