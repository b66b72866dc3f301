package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"xmcts/experiments/metrics"
	"xmcts/explain"
	"xmcts/game"
	"xmcts/searcher"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"
	"lukechampine.com/frand"
)

const tracerName = "xmcts/agent"

// ExplainableMCTS is a single threaded MCTS agent that justifies every move it selects.
// The search tree and the global move statistics persist between decisions of one session.
type ExplainableMCTS struct {
	name      string
	rng       *rand.Rand
	metrics   metrics.Collector
	tracer    trace.Tracer
	generator *explain.Generator
	logger    zerolog.Logger

	scoreBounds    bool
	pns            bool
	selection      searcher.SelectionPolicy
	finalSelection searcher.SelectionPolicy
	playout        searcher.PlayoutPolicy

	// Derived once in New
	treePolicy  searcher.SelectionPolicy
	finalPolicy searcher.SelectionPolicy
	flags       searcher.Flags
	maxNGram    int
	actions     *searcher.ActionTable
	ngrams      *searcher.NGramTable

	// Session state
	gameName        string
	player          int
	tree            *searcher.Tree
	treePlayer      int
	lastHistorySize int
	selected        *searcher.Node
	value           float64
	hasValue        bool
	report          string
	lastSearch      metrics.SearchMetric
}

func New(options ...Option) *ExplainableMCTS {
	m := &ExplainableMCTS{ // Default values
		name:           "ExplainableMCTS",
		metrics:        metrics.NewDummyCollector(),
		tracer:         otel.Tracer(tracerName),
		generator:      explain.NewGenerator(),
		selection:      searcher.NewUCB1(),
		finalSelection: searcher.MostVisited{},
		playout:        searcher.Uniform{},
		maxNGram:       searcher.DefaultMaxNGramLength,
	}
	for _, option := range options {
		option(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(frand.Uint64n(math.MaxUint64)))
	}

	m.treePolicy = m.selection
	m.finalPolicy = m.finalSelection
	if m.scoreBounds {
		m.treePolicy = searcher.ScoreBounded(m.selection)
		m.finalPolicy = searcher.ScoreBoundedFinal(m.finalSelection)
	}
	if m.pns {
		m.finalPolicy = searcher.ProofNumberFinal(m.finalPolicy)
	}
	m.flags = m.treePolicy.Flags() | m.finalPolicy.Flags() | m.playout.Flags()

	// Tables are bound once and cleared in place on every new session
	m.actions = searcher.NewActionTable(0)
	m.ngrams = searcher.NewNGramTable(0)
	if user, ok := m.playout.(searcher.ActionStatsUser); ok {
		user.BindActionStats(m.actions)
	}
	if user, ok := m.playout.(searcher.NGramStatsUser); ok {
		user.BindNGramStats(m.ngrams)
		m.maxNGram = user.MaxNGramLength()
	}

	m.logger = log.With().Str("agent", m.name).Logger()
	m.logger.Info().
		Str("selection", m.treePolicy.Name()).
		Str("final", m.finalPolicy.Name()).
		Str("playout", m.playout.Name()).
		Stringer("flags", m.flags).
		Msg("search configured")
	return m
}

func (m *ExplainableMCTS) Name() string {
	return m.name
}

// Flags is the union of the side effects the configured policies depend on.
func (m *ExplainableMCTS) Flags() searcher.Flags {
	return m.flags
}

func (m *ExplainableMCTS) InitAI(g game.Game, player int) {
	m.gameName = g.Name()
	m.player = player
	m.actions.Reset(g.NumPlayers())
	m.ngrams.Reset(g.NumPlayers())
	m.resetSession()
	m.logger = log.With().Str("agent", m.name).Str("session", uuid.NewString()).Logger()
	m.logger.Debug().Str("game", m.gameName).Int("player", player).Msg("session started")
}

func (m *ExplainableMCTS) CloseAI() {
	m.gameName = ""
	m.resetSession()
	m.actions.Reset(0)
	m.ngrams.Reset(0)
}

func (m *ExplainableMCTS) resetSession() {
	m.tree = nil
	m.treePlayer = 0
	m.lastHistorySize = 0
	m.selected = nil
	m.value = 0
	m.hasValue = false
	m.report = ""
}

func (m *ExplainableMCTS) SupportsGame(g game.Game) bool {
	return g.NumPlayers() > 0 && !g.IsStochastic() && g.IsAlternating() && !g.HasHiddenInformation()
}

func (m *ExplainableMCTS) SelectAction(ctx context.Context, g game.Game, s game.State, maxSeconds float64, maxIterations, maxDepth int) game.Move {
	if !m.SupportsGame(g) {
		m.logger.Error().Str("game", g.Name()).Msg("game not supported")
		return nil
	}
	if s.IsTerminal() {
		m.logger.Error().Str("game", g.Name()).Msg("cannot select an action in a terminal state")
		return nil
	}
	if m.gameName != g.Name() {
		m.InitAI(g, s.Mover())
	}
	player := s.Mover()
	m.player = player

	ctx, span := m.tracer.Start(ctx, "SelectAction", trace.WithAttributes(
		attribute.String("game", g.Name()),
		attribute.Int("player", player),
	))
	defer span.End()

	m.metrics.Start()
	reused := m.initRoot(g, s, player)
	m.metrics.SetTreeReused(reused)

	previousValue, hasPreviousValue := m.value, m.hasValue
	root := m.tree.Root()

	singleMove := len(s.LegalMoves()) == 1
	iterations := 0
	if !singleMove {
		iterations = m.search(ctx, player, maxSeconds, maxIterations)
	}

	if root.NumChildren() == 0 {
		root.Expand()
	}
	policy := m.finalPolicy
	if singleMove {
		policy = searcher.MostVisited{}
	}
	m.selected = root.Select(policy)
	m.value, m.hasValue = m.selected.MeanScore(player)

	solved := m.flags.Has(searcher.ScoreBounds) && root.IsSolved(player)
	m.metrics.SetTreeSize(m.tree.Size())
	m.metrics.SetRootSolved(solved)
	m.lastSearch = m.metrics.Complete()

	span.SetAttributes(
		attribute.Int("iterations", iterations),
		attribute.Bool("tree.reused", reused),
		attribute.Bool("root.solved", solved),
	)

	summary := m.summary(iterations)
	m.logger.Debug().
		Int("iterations", iterations).
		Int("tree_size", m.tree.Size()).
		Bool("tree_reused", reused).
		Bool("root_solved", solved).
		Stringer("move", m.selected.Move()).
		Msg(summary)

	input := explain.Input{
		Tree:             m.tree,
		Selected:         m.selected,
		Player:           player,
		Flags:            m.flags,
		FinalPolicy:      policy,
		SingleMove:       singleMove,
		PreviousValue:    previousValue,
		HasPreviousValue: hasPreviousValue,
	}
	if m.flags.Has(searcher.GlobalActionStats) {
		input.Actions = m.actions
	}
	if m.flags.Has(searcher.GlobalNGramActionStats) {
		input.NGrams = m.ngrams
		input.MaxNGramLength = m.maxNGram
	}
	m.report = summary + "\n" + m.generator.Explain(input)

	return m.selected.Move()
}

// initRoot follows the moves played since the last decision down the previous tree, or starts a new one.
func (m *ExplainableMCTS) initRoot(g game.Game, s game.State, player int) bool {
	history := s.History()
	defer func() {
		m.lastHistorySize = len(history)
		m.treePlayer = player
	}()

	if m.tree != nil && m.tree.Game().Name() == g.Name() && m.treePlayer == player && len(history) >= m.lastHistorySize {
		node := m.tree.Root()
		for _, move := range history[m.lastHistorySize:] {
			if node = node.ChildByMove(move.Key()); node == nil {
				break
			}
		}
		if node != nil {
			m.tree.Reroot(node)
			return true
		}
		m.logger.Debug().Int("history", len(history)).Msg("previous tree does not contain the current state, rebuilding")
	}

	m.tree = searcher.NewTree(g, s, m.rng)
	return false
}

func (m *ExplainableMCTS) search(ctx context.Context, player int, maxSeconds float64, maxIterations int) int {
	var deadline time.Time
	if maxSeconds > 0 {
		deadline = time.Now().Add(time.Duration(maxSeconds * float64(time.Second)))
	}

	iterations := 0
	for {
		if maxIterations >= 0 && iterations >= maxIterations {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if m.rootFinished(player) {
			break
		}
		m.iterate(player)
		iterations++
	}
	return iterations
}

func (m *ExplainableMCTS) rootFinished(player int) bool {
	root := m.tree.Root()
	if m.flags.Has(searcher.ScoreBounds) && root.IsSolved(player) {
		return true
	}
	if m.flags.Has(searcher.ProofDisproofNumbers) && (root.Proof() == 0 || root.Disproof() == 0) {
		return true
	}
	return false
}

func (m *ExplainableMCTS) iterate(player int) {
	root := m.tree.Root()
	node := root
	for !node.IsTerminal() && node.IsExpanded() && !node.IsSolved(node.Mover()) {
		node = node.Select(m.treePolicy)
	}

	leaf := node.Expand()
	playout := !leaf.IsTerminal() && !leaf.IsSolved(leaf.Mover())
	result := leaf.Simulate(m.playout)
	leaf.Propagate(result, m.flags, player)

	history := result.State.History()
	if m.flags.Has(searcher.GlobalActionStats) {
		searcher.UpdateActions(m.actions, history, root.Depth(), result.Utilities)
	}
	if m.flags.Has(searcher.GlobalNGramActionStats) {
		searcher.UpdateNGrams(m.ngrams, history, root.Depth(), m.maxNGram, result.Utilities)
	}

	m.metrics.AddIteration()
	if playout {
		m.metrics.AddPlayout()
	}
}

// summary renders the one line digest of the last decision.
func (m *ExplainableMCTS) summary(iterations int) string {
	n := m.selected
	player := m.player
	key := n.Move().Key()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Performed %d iterations, selected node: {visits: %d", m.name, iterations, n.Visits())
	if mean, ok := n.MeanScore(player); ok {
		fmt.Fprintf(&b, ", score: %.4f", mean)
	} else {
		b.WriteString(", score: n/a")
	}
	if m.flags.Has(searcher.AMAFStats) {
		if mean, ok := m.tree.Root().AMAF(key).Mean(player); ok {
			fmt.Fprintf(&b, ", AMAF: %.4f", mean)
		}
	}
	if m.flags.Has(searcher.GlobalActionStats) {
		if mean, ok := m.actions.Mean(key, player); ok {
			fmt.Fprintf(&b, ", MAST: %.4f", mean)
		}
	}
	if m.flags.Has(searcher.GlobalNGramActionStats) {
		keys := searcher.NGramsEndingWith(m.tree.Root().State().History(), n.Move(), m.maxNGram)
		for i, key := range keys {
			if stats := m.ngrams.Get(key); stats != nil {
				mean, _ := stats.Mean(player)
				fmt.Fprintf(&b, ", %d-gram visits: %d, %d-gram score: %.4f", i+1, stats.Visits(), i+1, mean)
			}
		}
	}
	if m.flags.Has(searcher.ScoreBounds) && n.IsSolved(player) {
		switch {
		case n.IsWin(player):
			b.WriteString(", solved: win")
		case n.IsLoss(player):
			b.WriteString(", solved: loss")
		default:
			fmt.Fprintf(&b, ", solved: %.2f", n.Pessimistic(player))
		}
	}
	b.WriteString("}")
	return b.String()
}

// EstimateValue returns 0 before the first decision or when the selected move was never visited.
func (m *ExplainableMCTS) EstimateValue() float64 {
	if !m.hasValue {
		return 0
	}
	return m.value
}

func (m *ExplainableMCTS) GenerateAnalysisReport() string {
	return m.report
}

// LastSearch returns the metrics of the last decision. They stay empty unless a collector was configured.
func (m *ExplainableMCTS) LastSearch() metrics.SearchMetric {
	return m.lastSearch
}

// Tree exposes the search tree kept for the next decision, nil before the first one.
func (m *ExplainableMCTS) Tree() *searcher.Tree {
	return m.tree
}
