// Package agent hosts the explainable MCTS search behind the AI interface a game host drives.
package agent

import (
	"context"
	"errors"

	"xmcts/game"
)

var ErrUnsupportedGame = errors.New("game not supported")

// AI is the surface a game host uses to ask for moves.
type AI interface {
	Name() string
	// InitAI prepares a new session for player in g and drops every statistic of the previous one.
	InitAI(g game.Game, player int)
	CloseAI()
	SupportsGame(g game.Game) bool
	// SelectAction returns the move to play in s, or nil when no move can be chosen.
	// maxSeconds <= 0 disables the time limit and a negative maxIterations disables the iteration limit.
	// maxDepth is accepted for host compatibility and ignored.
	SelectAction(ctx context.Context, g game.Game, s game.State, maxSeconds float64, maxIterations, maxDepth int) game.Move
	// EstimateValue is the expected score of the last decision for the searching player, in [-1, 1].
	EstimateValue() float64
	GenerateAnalysisReport() string
}
