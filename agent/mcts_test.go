package agent

import (
	"context"
	"testing"

	"xmcts/experiments/metrics"
	"xmcts/game"
	"xmcts/game/tictactoe"
	"xmcts/searcher"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type diceGame struct {
	tictactoe.Game
}

func (diceGame) Name() string       { return "Dice Tic-Tac-Toe" }
func (diceGame) IsStochastic() bool { return true }

func mustParse(t *testing.T, board string, mover int) *tictactoe.State {
	t.Helper()
	s, err := tictactoe.Parse(board, mover)
	require.NoError(t, err)
	return s
}

func TestSelectAction(t *testing.T) {
	ctx := context.Background()
	g := tictactoe.Game{}

	t.Run("a single legal move is returned without searching", func(t *testing.T) {
		m := New(WithSeed(1), WithMetrics(metrics.NewCollector()))
		m.InitAI(g, tictactoe.X)

		move := m.SelectAction(ctx, g, mustParse(t, "XOXOXOOX.", tictactoe.X), 1, 1000, 0)

		require.Equal(t, tictactoe.Move{Cell: 8, Player: tictactoe.X}, move)
		require.Zero(t, m.LastSearch().Iterations, "No iteration should run")
		require.Zero(t, m.LastSearch().Playouts, "No playout should run")
		report := m.GenerateAnalysisReport()
		require.Contains(t, report, "Performed 0 iterations")
		require.Contains(t, report, "no alternative existed")
	})

	t.Run("an immediate win is proven and selected", func(t *testing.T) {
		m := New(WithSeed(2), WithScoreBounds(true), WithMetrics(metrics.NewCollector()))
		m.InitAI(g, tictactoe.X)

		move := m.SelectAction(ctx, g, mustParse(t, "XX.OO....", tictactoe.X), 0, -1, 0)

		require.Equal(t, tictactoe.Move{Cell: 2, Player: tictactoe.X}, move)
		require.True(t, m.LastSearch().RootSolved, "Root should be solved before the budget stops the search")
		require.Equal(t, game.Win, m.EstimateValue())
		require.Contains(t, m.GenerateAnalysisReport(), "solved: win")
	})

	t.Run("pns alone stops once the root is proved", func(t *testing.T) {
		m := New(WithSeed(3), WithPNS(true))
		m.InitAI(g, tictactoe.X)

		move := m.SelectAction(ctx, g, mustParse(t, "XX.OO....", tictactoe.X), 0, 5000, 0)

		require.Equal(t, tictactoe.Move{Cell: 2, Player: tictactoe.X}, move)
		require.Zero(t, m.Tree().Root().Proof())
		require.True(t, m.Flags().Has(searcher.ProofDisproofNumbers))
	})

	t.Run("the tree is reused after the opponent's reply", func(t *testing.T) {
		m := New(WithSeed(4), WithMetrics(metrics.NewCollector()))
		m.InitAI(g, tictactoe.X)
		s := tictactoe.New()

		move := m.SelectAction(ctx, g, s, 0, 300, 0)
		require.NotNil(t, move)
		require.False(t, m.LastSearch().TreeReused)

		replies := m.Tree().Root().ChildByMove(move.Key()).Children()
		require.NotEmpty(t, replies, "Selected child should have been expanded")
		next := s.Play(move).Play(replies[0].Move())
		visits := replies[0].Visits()

		m.SelectAction(ctx, g, next, 0, 10, 0)

		require.True(t, m.LastSearch().TreeReused)
		require.Equal(t, visits+10, m.Tree().Root().Visits(), "Reused root should keep its statistics")
		require.Equal(t, 2, m.Tree().Root().Depth())
	})

	t.Run("a shorter history than the previous root triggers a rebuild", func(t *testing.T) {
		m := New(WithSeed(5), WithMetrics(metrics.NewCollector()))
		m.InitAI(g, tictactoe.X)
		s := tictactoe.New().Play(tictactoe.Move{Cell: 0, Player: tictactoe.X}).Play(tictactoe.Move{Cell: 1, Player: tictactoe.O})
		m.SelectAction(ctx, g, s, 0, 20, 0)

		m.SelectAction(ctx, g, mustParse(t, "XO.......", tictactoe.X), 0, 20, 0)

		require.False(t, m.LastSearch().TreeReused)
		require.Zero(t, m.Tree().Root().Depth(), "Parsed boards carry no history")
	})

	t.Run("a cancelled context still yields a legal move", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		m := New(WithSeed(6), WithMetrics(metrics.NewCollector()))
		s := tictactoe.New()

		move := m.SelectAction(cancelled, g, s, 0, -1, 0)

		require.NoError(t, game.Validate(s, move))
		require.Zero(t, m.LastSearch().Iterations)
		require.Zero(t, m.EstimateValue(), "Unvisited move has no value")
	})

	t.Run("unsupported games and terminal states yield no move", func(t *testing.T) {
		m := New(WithSeed(7))

		require.Nil(t, m.SelectAction(ctx, diceGame{}, tictactoe.New(), 0, 10, 0))
		require.Nil(t, m.SelectAction(ctx, g, mustParse(t, "XXXOO....", tictactoe.O), 0, 10, 0))
	})

	t.Run("global statistics show up in the report", func(t *testing.T) {
		m := New(
			WithSeed(8),
			WithSelectionPolicy(searcher.NewGRAVE(searcher.DefaultGRAVEBias, 20)),
			WithPlayoutPolicy(searcher.NewMAST(searcher.DefaultEpsilon)),
		)
		m.InitAI(g, tictactoe.X)

		move := m.SelectAction(ctx, g, tictactoe.New(), 0, 300, 0)

		require.NotNil(t, move)
		require.Greater(t, m.actions.Len(), 0)
		report := m.GenerateAnalysisReport()
		require.Contains(t, report, "AMAF:")
		require.Contains(t, report, "MAST:")
	})

	t.Run("n-gram statistics are reported for every length ending in the move", func(t *testing.T) {
		m := New(WithSeed(9), WithPlayoutPolicy(searcher.NewNST(3, searcher.DefaultEpsilon)))
		m.InitAI(g, tictactoe.X)
		s := tictactoe.New().Play(tictactoe.Move{Cell: 0, Player: tictactoe.X}).Play(tictactoe.Move{Cell: 4, Player: tictactoe.O})

		move := m.SelectAction(ctx, g, s, 0, 300, 0)

		require.NotNil(t, move)
		report := m.GenerateAnalysisReport()
		require.Contains(t, report, "1-gram visits:")
		require.Contains(t, report, "2-gram score:")
		require.Contains(t, report, "3-gram score:")
		require.Contains(t, report, "NST statistics rate this move")
	})
}

func TestSession(t *testing.T) {
	t.Run("init drops the previous tree and statistics", func(t *testing.T) {
		g := tictactoe.Game{}
		m := New(WithSeed(9), WithPlayoutPolicy(searcher.NewNST(2, 0.2)))
		m.InitAI(g, tictactoe.X)
		m.SelectAction(context.Background(), g, tictactoe.New(), 0, 50, 0)
		require.Greater(t, m.ngrams.Len(), 0)

		m.InitAI(g, tictactoe.X)

		require.Nil(t, m.Tree())
		require.Zero(t, m.ngrams.Len())
		require.Empty(t, m.GenerateAnalysisReport())
	})

	t.Run("supports only deterministic alternating perfect information games", func(t *testing.T) {
		m := New(WithRand(rand.New(rand.NewSource(1))))

		require.True(t, m.SupportsGame(tictactoe.Game{}))
		require.False(t, m.SupportsGame(diceGame{}))
	})
}
