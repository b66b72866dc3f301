package explain

import (
	"math"
	"strings"
	"testing"

	"xmcts/game"
	"xmcts/game/tictactoe"
	"xmcts/searcher"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

var (
	xWins = []float64{0, 1, -1}
	oWins = []float64{0, -1, 1}
	draw  = []float64{0, 0, 0}
)

// expandAll adds every child of n. It must run before any proven result reaches n.
func expandAll(n *searcher.Node) {
	for !n.IsExpanded() {
		n.Expand()
	}
}

func grow(s game.State) *searcher.Tree {
	tree := searcher.NewTree(tictactoe.Game{}, s, rand.New(rand.NewSource(1)))
	expandAll(tree.Root())
	return tree
}

func child(t *testing.T, n *searcher.Node, cell, player int) *searcher.Node {
	t.Helper()
	c := n.ChildByMove(tictactoe.Move{Cell: cell, Player: player}.Key())
	require.NotNil(t, c)
	return c
}

// visit records the same simulation outcome count times at n.
func visit(n *searcher.Node, flags searcher.Flags, utilities []float64, count int) {
	for i := 0; i < count; i++ {
		n.Propagate(searcher.SimulationResult{State: n.State(), Utilities: utilities}, flags, tictactoe.X)
	}
}

func mustParse(t *testing.T, board string, mover int) *tictactoe.State {
	t.Helper()
	s, err := tictactoe.Parse(board, mover)
	require.NoError(t, err)
	return s
}

// search grows a tree the way the agent does and returns it with the most visited root child.
func search(t *testing.T, board string, mover int, flags searcher.Flags, iterations int) (*searcher.Tree, *searcher.Node) {
	t.Helper()
	s, err := tictactoe.Parse(board, mover)
	require.NoError(t, err)

	tree := searcher.NewTree(tictactoe.Game{}, s, rand.New(rand.NewSource(99)))
	selection := searcher.SelectionPolicy(searcher.NewUCB1())
	if flags.Has(searcher.ScoreBounds) {
		selection = searcher.ScoreBounded(selection)
	}
	root := tree.Root()
	for i := 0; i < iterations && !root.IsSolved(mover); i++ {
		node := root
		for !node.IsTerminal() && node.IsExpanded() && !node.IsSolved(node.Mover()) {
			node = node.Select(selection)
		}
		leaf := node.Expand()
		leaf.Propagate(leaf.Simulate(searcher.Uniform{}), flags, mover)
	}
	return tree, root.Select(searcher.ScoreBoundedFinal(searcher.MostVisited{}))
}

func TestOutliers(t *testing.T) {
	t.Run("every child lands in exactly one category of each kind", func(t *testing.T) {
		tree, selected := search(t, ".........", tictactoe.X, searcher.AMAFStats, 400)
		children := tree.Root().Children()

		for _, evaluate := range []Evaluation{MeanScore(tictactoe.X), AMAFScore(tictactoe.X)} {
			o := NewOutliers(children, selected, evaluate, DefaultThresholds())

			relative := map[*searcher.Node]int{}
			for _, c := range []Relative{Equal, SlightlyWorse, MuchWorse, SlightlyBetter, MuchBetter} {
				for _, n := range o.Relative(c) {
					relative[n]++
				}
			}
			absolute := map[*searcher.Node]int{}
			for _, c := range []Absolute{VeryBad, Bad, Neutral, Good, VeryGood} {
				for _, n := range o.Absolute(c) {
					absolute[n]++
				}
			}

			require.Len(t, relative, len(children))
			require.Len(t, absolute, len(children))
			for _, child := range children {
				require.Equal(t, 1, relative[child])
				require.Equal(t, 1, absolute[child])
			}
			require.Equal(t, Equal, o.RelativeOf(selected))
		}
	})

	t.Run("children are ranked by descending value", func(t *testing.T) {
		tree, selected := search(t, ".........", tictactoe.X, 0, 300)

		o := NewOutliers(tree.Root().Children(), selected, MeanScore(tictactoe.X), DefaultThresholds())

		ranked := o.Ranked()
		for i := 1; i < len(ranked); i++ {
			require.GreaterOrEqual(t, o.Value(ranked[i-1]), o.Value(ranked[i]))
		}
	})

	t.Run("relative thresholds", func(t *testing.T) {
		th := DefaultThresholds()

		require.Equal(t, Equal, classifyRelative(0.5, 0.5, th))
		require.Equal(t, SlightlyWorse, classifyRelative(0.45, 0.5, th))
		require.Equal(t, MuchWorse, classifyRelative(0.1, 0.5, th))
		require.Equal(t, SlightlyBetter, classifyRelative(0.55, 0.5, th))
		require.Equal(t, MuchBetter, classifyRelative(0.9, 0.5, th))
		require.Equal(t, MuchWorse, classifyRelative(math.NaN(), 0.5, th), "No data ranks last")
		require.Equal(t, MuchBetter, classifyRelative(0.1, math.NaN(), th))
	})

	t.Run("absolute thresholds", func(t *testing.T) {
		th := DefaultThresholds()

		require.Equal(t, Neutral, classifyAbsolute(0.05, th))
		require.Equal(t, Neutral, classifyAbsolute(-0.1, th))
		require.Equal(t, Good, classifyAbsolute(0.3, th))
		require.Equal(t, Bad, classifyAbsolute(-0.3, th))
		require.Equal(t, VeryGood, classifyAbsolute(0.63, th))
		require.Equal(t, VeryBad, classifyAbsolute(-0.9, th))
		require.Equal(t, VeryBad, classifyAbsolute(math.NaN(), th))
	})

	t.Run("category names", func(t *testing.T) {
		require.Equal(t, "slightly better", SlightlyBetter.String())
		require.Equal(t, "very good", VeryGood.String())
	})
}

func TestForcedMoves(t *testing.T) {
	t.Run("walks at most the requested depth", func(t *testing.T) {
		tree, selected := search(t, ".........", tictactoe.X, 0, 2000)

		f := NewForcedMoves(selected, searcher.MostVisited{}, 0, DefaultForcedDepth)

		require.NotEmpty(t, f.Plies)
		require.LessOrEqual(t, len(f.Plies), DefaultForcedDepth+1)
		require.Equal(t, selected, f.Plies[0].Node)
		for i, ply := range f.Plies {
			require.Equal(t, i, ply.Depth)
			require.Equal(t, ply.Node.BranchingFactor(), ply.BranchingFactor)
		}
		require.Greater(t, AverageBranchingFactor(tree), 0.0)
	})

	t.Run("proven losses are collected per ply", func(t *testing.T) {
		// O to move must block at 2, every other reply loses at once.
		tree, _ := search(t, "XX..O....", tictactoe.O, searcher.ScoreBounds, 20000)
		root := tree.Root()

		f := NewForcedMoves(root, searcher.ScoreBoundedFinal(searcher.MostVisited{}), 0, 0)

		require.Len(t, f.Plies, 1)
		ply := f.Plies[0]
		require.Equal(t, 6, ply.BranchingFactor)
		require.Len(t, ply.ProvenBad, 5)
		require.True(t, ply.Forced())
		require.Len(t, f.ForcedPlies(), 1)
	})

	t.Run("mobility is judged against the average", func(t *testing.T) {
		ply := Ply{BranchingFactor: 2}

		require.True(t, ply.LimitedMobility(20))
		require.False(t, ply.LimitedMobility(10))
		require.False(t, Ply{}.LimitedMobility(20), "Terminal positions are not limited")
	})

	t.Run("a lone root averages its own moves", func(t *testing.T) {
		tree := searcher.NewTree(tictactoe.Game{}, tictactoe.New(), rand.New(rand.NewSource(1)))

		require.Equal(t, 9.0, AverageBranchingFactor(tree))
	})
}

func TestGenerator(t *testing.T) {
	t.Run("a single move says no alternative existed", func(t *testing.T) {
		s, err := tictactoe.Parse("XOXOXOOX.", tictactoe.X)
		require.NoError(t, err)
		tree := searcher.NewTree(tictactoe.Game{}, s, rand.New(rand.NewSource(1)))
		only := tree.Root().Expand()

		text := NewGenerator().Explain(Input{Tree: tree, Selected: only, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}, SingleMove: true})

		require.Contains(t, text, "Selected move: X@8.")
		require.Contains(t, text, "no alternative existed")
	})

	t.Run("a proven win is narrated with its outcome", func(t *testing.T) {
		tree, selected := search(t, "XX.OO....", tictactoe.X, searcher.ScoreBounds, 100000)

		text := NewGenerator().Explain(Input{
			Tree:        tree,
			Selected:    selected,
			Player:      tictactoe.X,
			Flags:       searcher.ScoreBounds,
			FinalPolicy: searcher.ScoreBoundedFinal(searcher.MostVisited{}),
		})

		require.Contains(t, text, "Selected move: X@2.")
		require.Contains(t, text, "proven win")
		require.Contains(t, text, "the game ends with a win")
		require.NotContains(t, text, "  ")
	})

	t.Run("an unsolved search reports probability and score change", func(t *testing.T) {
		tree, selected := search(t, ".........", tictactoe.X, searcher.AMAFStats|searcher.ScoreBounds, 500)

		text := NewGenerator().Explain(Input{
			Tree:             tree,
			Selected:         selected,
			Player:           tictactoe.X,
			Flags:            searcher.AMAFStats | searcher.ScoreBounds,
			FinalPolicy:      searcher.ScoreBoundedFinal(searcher.MostVisited{}),
			PreviousValue:    -0.9,
			HasPreviousValue: true,
		})

		require.Contains(t, text, "chance of winning")
		require.Contains(t, text, "improved since the previous turn")
		require.Contains(t, text, "AMAF statistics")
		require.Contains(t, text, "By average score")
		require.Contains(t, text, "not proven yet")
		for _, line := range strings.Split(text, "\n") {
			require.Equal(t, strings.Join(strings.Fields(line), " "), line, "Whitespace should be collapsed")
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		require.Equal(t, "No move was selected.", NewGenerator().Explain(Input{}))
	})
}

func TestGeneratorNarratives(t *testing.T) {
	tests := []struct {
		name     string
		input    func(t *testing.T) Input
		contains []string
		excludes []string
	}{
		{
			name: "a strong MAST score says the move is good regardless of timing",
			input: func(t *testing.T) Input {
				tree := grow(tictactoe.New())
				selected := child(t, tree.Root(), 4, tictactoe.X)
				visit(selected, 0, draw, 2)
				actions := searcher.NewActionTable(2)
				actions.Add(selected.Move().Key(), xWins)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}, Actions: actions}
			},
			contains: []string{
				"MAST statistics rate this move at 1.00 and no other move comes close.",
				"This move generally performs well, regardless of when it is played.",
			},
		},
		{
			name: "a 2-gram is narrated even when the 1-gram was never observed",
			input: func(t *testing.T) Input {
				opening := tictactoe.Move{Cell: 4, Player: tictactoe.X}
				tree := grow(tictactoe.New().Play(opening))
				selected := child(t, tree.Root(), 8, tictactoe.O)
				visit(selected, 0, draw, 1)
				ngrams := searcher.NewNGramTable(2)
				ngrams.Add(game.NGram([]game.Move{opening, selected.Move()}), oWins)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.O, FinalPolicy: searcher.MostVisited{}, NGrams: ngrams, MaxNGramLength: 3}
			},
			contains: []string{
				"NST statistics rate this move at 1.00",
				"This move generally performs well when played after the previous move.",
			},
			excludes: []string{"There are no NST statistics"},
		},
		{
			name: "longer n-grams name the number of preceding moves",
			input: func(t *testing.T) Input {
				first, second := tictactoe.Move{Cell: 0, Player: tictactoe.X}, tictactoe.Move{Cell: 4, Player: tictactoe.O}
				tree := grow(tictactoe.New().Play(first).Play(second))
				selected := child(t, tree.Root(), 8, tictactoe.X)
				visit(selected, 0, draw, 1)
				ngrams := searcher.NewNGramTable(2)
				ngrams.Add(game.NGram([]game.Move{selected.Move()}), oWins)
				ngrams.Add(game.NGram([]game.Move{first, second, selected.Move()}), xWins)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}, NGrams: ngrams, MaxNGramLength: 3}
			},
			contains: []string{
				"NST statistics rate this move at 0.00",
				"This move generally performs well after a sequence of 2 preceding moves.",
			},
			excludes: []string{"regardless of when it is played", "after the previous move"},
		},
		{
			name: "a strong AMAF score points at the following game phases",
			input: func(t *testing.T) Input {
				tree := grow(tictactoe.New())
				selected := child(t, tree.Root(), 4, tictactoe.X)
				visit(selected, searcher.AMAFStats, xWins, 2)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, Flags: searcher.AMAFStats, FinalPolicy: searcher.MostVisited{}}
			},
			contains: []string{"This move tends to perform well in game phases that follow the current state."},
		},
		{
			name: "a rival with few visits is called less reliable",
			input: func(t *testing.T) Input {
				tree := grow(tictactoe.New())
				selected := child(t, tree.Root(), 4, tictactoe.X)
				visit(selected, 0, draw, 10)
				visit(child(t, tree.Root(), 0, tictactoe.X), 0, xWins, 4)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}}
			},
			contains: []string{"Move X@0 had a higher average score (1.00 versus 0.00) but was explored far less (4 versus 10 visits)"},
		},
		{
			name: "a rival with a worse MAST score is passed over",
			input: func(t *testing.T) Input {
				tree := grow(tictactoe.New())
				selected := child(t, tree.Root(), 4, tictactoe.X)
				rival := child(t, tree.Root(), 0, tictactoe.X)
				visit(selected, 0, draw, 4)
				visit(rival, 0, xWins, 2)
				visit(rival, 0, draw, 2)
				actions := searcher.NewActionTable(2)
				actions.Add(selected.Move().Key(), xWins)
				actions.Add(rival.Move().Key(), oWins)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}, Actions: actions}
			},
			contains: []string{"Move X@0 had a higher average score (0.50 versus 0.00) but its MAST score was worse (-1.00 versus 1.00)."},
		},
		{
			name: "a proven win outranks a rival with a better average",
			input: func(t *testing.T) Input {
				// O wins at 6, while O at 8 lets X fill the board for a draw.
				tree := grow(mustParse(t, "XXOOOX.X.", tictactoe.O))
				selected := child(t, tree.Root(), 6, tictactoe.O)
				rival := child(t, tree.Root(), 8, tictactoe.O)
				visit(selected, 0, xWins, 3)
				visit(selected, searcher.ScoreBounds, oWins, 1)
				expandAll(rival)
				visit(rival.Child(0), searcher.ScoreBounds, draw, 2)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.O, Flags: searcher.ScoreBounds, FinalPolicy: searcher.MostVisited{}}
			},
			contains: []string{
				"Move O@8 had a higher average score (0.00 versus -0.50) but the selected move is proven to be at least as good.",
				"This move is a proven win",
			},
		},
		{
			name: "otherwise the more thoroughly searched move is favoured",
			input: func(t *testing.T) Input {
				tree := grow(tictactoe.New())
				selected := child(t, tree.Root(), 4, tictactoe.X)
				rival := child(t, tree.Root(), 0, tictactoe.X)
				visit(selected, 0, draw, 4)
				visit(rival, 0, xWins, 1)
				visit(rival, 0, draw, 2)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.X, FinalPolicy: searcher.MostVisited{}}
			},
			contains: []string{"Move X@0 had a higher average score (0.33 versus 0.00) but the final selection favoured the more thoroughly searched move."},
		},
		{
			name: "a reply with mostly losing options is narrated as forced",
			input: func(t *testing.T) Input {
				// After O blocks at 2, X must block the diagonal at 6 or lose to it.
				tree := grow(mustParse(t, "XX..O....", tictactoe.O))
				selected := child(t, tree.Root(), 2, tictactoe.O)
				expandAll(selected)
				for _, reply := range selected.Children() {
					if reply.Move().(tictactoe.Move).Cell != 6 {
						expandAll(reply)
					}
				}
				for _, reply := range selected.Children() {
					if reply.Move().(tictactoe.Move).Cell != 6 {
						visit(child(t, reply, 6, tictactoe.O), searcher.ScoreBounds, oWins, 1)
					}
				}
				visit(child(t, selected, 6, tictactoe.X), 0, draw, 3)
				return Input{Tree: tree, Selected: selected, Player: tictactoe.O, FinalPolicy: searcher.MostVisited{}}
			},
			contains: []string{"At ply 1 of this line, 4 of 5 options for player 1 are already proven losing, so play there is forced."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := NewGenerator().Explain(tt.input(t))

			for _, want := range tt.contains {
				require.Contains(t, text, want)
			}
			for _, unwanted := range tt.excludes {
				require.NotContains(t, text, unwanted)
			}
		})
	}
}

func TestOutlierSummary(t *testing.T) {
	summarize := func(t *testing.T, selectedCell int, utilities map[int][]float64) string {
		t.Helper()
		tree := grow(tictactoe.New())
		for cell := 0; cell < tictactoe.Cells; cell++ {
			u, ok := utilities[cell]
			if !ok {
				u = draw
			}
			visit(child(t, tree.Root(), cell, tictactoe.X), 0, u, 1)
		}
		children := tree.Root().Children()
		o := NewOutliers(children, child(t, tree.Root(), selectedCell, tictactoe.X), MeanScore(tictactoe.X), DefaultThresholds())
		return NewGenerator().summarize("average score", o, len(children))
	}

	t.Run("a single very good move dominates", func(t *testing.T) {
		text := summarize(t, 4, map[int][]float64{4: xWins})

		require.Contains(t, text, "The selected node is considered very good by the average score criteria.")
		require.Contains(t, text, "There are 1 very good moves (out of 9) by the average score criteria; the selected move is among them.")
	})

	t.Run("a dominating move elsewhere is called out", func(t *testing.T) {
		text := summarize(t, 4, map[int][]float64{0: xWins})

		require.Contains(t, text, "The selected node is considered neutral by the average score criteria.")
		require.Contains(t, text, "the selected move is not among them.")
	})

	t.Run("identical moves share one category", func(t *testing.T) {
		text := summarize(t, 4, nil)

		require.Contains(t, text, "All nodes are in neutral category by the average score criteria.")
	})

	t.Run("mostly good moves mention the rest", func(t *testing.T) {
		wins := map[int][]float64{}
		for cell := 0; cell < 8; cell++ {
			wins[cell] = xWins
		}
		wins[8] = oWins

		text := summarize(t, 4, wins)

		require.Contains(t, text, "There are 8 good and very good moves (out of 9) by the average score criteria; the selected move is among them.")
		require.Contains(t, text, "The remaining nodes were bad or very bad.")
		require.NotContains(t, text, "All nodes are in")
	})
}
