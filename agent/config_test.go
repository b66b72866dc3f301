package agent

import (
	"testing"

	"xmcts/searcher"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("yaml overrides the defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
selectionPolicy: grave
graveRef: 50
playoutPolicy: mast
useScoreBounds: true
`))
		require.NoError(t, err)

		require.Equal(t, "grave", cfg.SelectionPolicy)
		require.Equal(t, 50, cfg.GRAVERef)
		require.Equal(t, searcher.DefaultGRAVEBias, cfg.GRAVEBias, "Unset keys should keep their defaults")
		require.Equal(t, "robust_child", cfg.FinalMoveSelectionPolicy)
	})

	t.Run("json documents are accepted", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"usePNS": true, "playoutPolicy": "nst", "maxNGramLength": 2}`))
		require.NoError(t, err)

		require.True(t, cfg.UsePNS)
		require.Equal(t, 2, cfg.MaxNGramLength)
	})

	t.Run("malformed documents return an error", func(t *testing.T) {
		_, err := ParseConfig([]byte("selectionPolicy: [ucb1"))
		require.Error(t, err)
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Run("configured policies determine the flags", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SelectionPolicy = "grave"
		cfg.PlayoutPolicy = "nst"
		cfg.UseScoreBounds = true
		cfg.UsePNS = true

		m := NewFromConfig(cfg, WithSeed(1))

		for _, flag := range []searcher.Flags{searcher.ScoreBounds, searcher.AMAFStats, searcher.GlobalNGramActionStats, searcher.ProofDisproofNumbers} {
			require.True(t, m.Flags().Has(flag), "Missing %s", flag)
		}
		require.False(t, m.Flags().Has(searcher.GlobalActionStats))
		require.Equal(t, searcher.DefaultMaxNGramLength, m.maxNGram)
	})

	t.Run("unknown names fall back to the defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SelectionPolicy = "alphazero"
		cfg.FinalMoveSelectionPolicy = "max_child"
		cfg.PlayoutPolicy = "heavy"

		m := NewFromConfig(cfg, WithSeed(1))

		require.Equal(t, searcher.NewUCB1().Name(), m.selection.Name())
		require.Equal(t, searcher.MostVisited{}.Name(), m.finalSelection.Name())
		require.Equal(t, searcher.Uniform{}.Name(), m.playout.Name())
		require.Equal(t, "NONE", m.Flags().String())
	})

	t.Run("out of range numbers are clamped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.PlayoutPolicy = "nst"
		cfg.Epsilon = 1.5
		cfg.MaxNGramLength = 0

		m := NewFromConfig(cfg, WithSeed(1))

		nst, ok := m.playout.(*searcher.NST)
		require.True(t, ok)
		require.Equal(t, 1.0, nst.Epsilon)
		require.Equal(t, 1, nst.MaxN)
	})
}
