// Package pns proves or disproves a win for the player to move with proof-number search.
package pns

import (
	"context"
	"fmt"
	"math"
	"time"

	"xmcts/experiments/metrics"
	"xmcts/game"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"lukechampine.com/frand"
)

const infinity = math.MaxInt

type kind int8

const (
	or kind = iota
	and
)

type value int8

const (
	unknown value = iota
	proven
	disproven
)

type node struct {
	parent *node
	move   game.Move
	state  game.State
	kind   kind
	value  value

	proof    int
	disproof int

	expanded bool
	moves    []game.Move
	children []*node // nil entries were never generated
}

type Option func(s *Search)

func WithRand(rng *rand.Rand) Option {
	return func(s *Search) {
		if rng != nil {
			s.rng = rng
		}
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(s *Search) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

// Search rebuilds its AND/OR tree on every decision.
type Search struct {
	rng     *rand.Rand
	metrics metrics.Collector
	logger  zerolog.Logger

	proofPlayer int
	root        *node
	expansions  int
	report      string
	lastSearch  metrics.SearchMetric
}

func New(options ...Option) *Search {
	s := &Search{
		metrics: metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(frand.Uint64n(math.MaxUint64)))
	}
	s.logger = log.With().Str("agent", s.Name()).Logger()
	return s
}

func (s *Search) Name() string {
	return "Proof-Number Search"
}

func (s *Search) InitAI(g game.Game, player int) {
	s.proofPlayer = player
	s.reset()
}

func (s *Search) CloseAI() {
	s.reset()
}

func (s *Search) reset() {
	s.root = nil
	s.expansions = 0
	s.report = ""
}

func (s *Search) SupportsGame(g game.Game) bool {
	return g.NumPlayers() == 2 && !g.IsStochastic() && g.IsAlternating() && !g.HasHiddenInformation()
}

func (s *Search) SelectAction(ctx context.Context, g game.Game, state game.State, maxSeconds float64, maxIterations, maxDepth int) game.Move {
	if !s.SupportsGame(g) {
		s.logger.Error().Str("game", g.Name()).Msg("game not supported")
		return nil
	}
	if state.IsTerminal() {
		s.logger.Error().Str("game", g.Name()).Msg("cannot select an action in a terminal state")
		return nil
	}

	var deadline time.Time
	if maxSeconds > 0 {
		deadline = time.Now().Add(time.Duration(maxSeconds * float64(time.Second)))
	}

	s.metrics.Start()
	s.proofPlayer = state.Mover()
	s.expansions = 0
	s.root = s.newNode(nil, nil, state)

	current := s.root
	for s.root.proof != 0 && s.root.disproof != 0 {
		if maxIterations >= 0 && s.expansions >= maxIterations {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		mostProving := selectMostProving(current)
		if mostProving.expanded || mostProving.value != unknown {
			break
		}
		s.expand(mostProving)
		s.metrics.AddIteration()
		current = s.updateAncestors(mostProving)
	}

	s.metrics.SetRootSolved(s.root.proof == 0 || s.root.disproof == 0)
	s.lastSearch = s.metrics.Complete()

	move := s.result(state)
	s.report = fmt.Sprintf("[%s] Root %s after %d expansions (proof: %s, disproof: %s), selected move: %s",
		s.Name(), s.status(), s.expansions, number(s.root.proof), number(s.root.disproof), move)
	s.logger.Debug().Int("expansions", s.expansions).Str("status", s.status()).Msg(s.report)
	return move
}

func (s *Search) result(state game.State) game.Move {
	for _, child := range s.root.children {
		if child != nil && child.proof == 0 {
			return child.move
		}
	}
	moves := state.LegalMoves()
	return moves[s.rng.Intn(len(moves))]
}

func (s *Search) newNode(parent *node, move game.Move, state game.State) *node {
	n := &node{parent: parent, move: move, state: state, kind: and}
	if state.Mover() == s.proofPlayer {
		n.kind = or
	}
	if state.IsTerminal() {
		n.value = disproven
		if state.Ranking()[s.proofPlayer] == state.NextWinRank() {
			n.value = proven
		}
	} else {
		n.moves = state.LegalMoves()
	}
	setNumbers(n)
	return n
}

func setNumbers(n *node) {
	switch {
	case n.value == proven:
		n.proof, n.disproof = 0, infinity
	case n.value == disproven:
		n.proof, n.disproof = infinity, 0
	case n.expanded:
		least, total := infinity, 0
		for _, child := range n.children {
			if child == nil {
				continue
			}
			if n.kind == or {
				least = min(least, child.proof)
				total = saturatingAdd(total, child.disproof)
			} else {
				least = min(least, child.disproof)
				total = saturatingAdd(total, child.proof)
			}
		}
		if n.kind == or {
			n.proof, n.disproof = least, total
		} else {
			n.proof, n.disproof = total, least
		}
	case n.kind == and:
		n.proof, n.disproof = max(1, len(n.moves)), 1
	default:
		n.proof, n.disproof = 1, max(1, len(n.moves))
	}
}

func selectMostProving(n *node) *node {
	for n.expanded && n.value == unknown {
		var next, first *node
		for _, child := range n.children {
			if child == nil {
				continue
			}
			if first == nil {
				first = child
			}
			if (n.kind == or && child.proof == n.proof) || (n.kind == and && child.disproof == n.disproof) {
				next = child
				break
			}
		}
		if next == nil {
			next = first
		}
		if next == nil {
			return n
		}
		n = next
	}
	return n
}

// expand generates the children in move order, stopping once one of them settles n.
func (s *Search) expand(n *node) {
	n.children = make([]*node, len(n.moves))
	for i, move := range n.moves {
		child := s.newNode(n, move, n.state.Play(move))
		n.children[i] = child
		if (n.kind == or && child.proof == 0) || (n.kind == and && child.disproof == 0) {
			break
		}
	}
	n.expanded = true
	s.expansions++
}

// updateAncestors returns the deepest ancestor whose numbers did not change, or the root.
func (s *Search) updateAncestors(n *node) *node {
	for n != s.root {
		oldProof, oldDisproof := n.proof, n.disproof
		setNumbers(n)
		if n.proof == oldProof && n.disproof == oldDisproof {
			return n
		}
		if n.proof == 0 || n.disproof == 0 {
			n.prune()
		}
		n = n.parent
	}
	setNumbers(s.root)
	return s.root
}

// prune fixes the value of a settled node and releases its subtree.
func (n *node) prune() {
	n.value = disproven
	if n.proof == 0 {
		n.value = proven
	}
	n.children = nil
	n.moves = nil
}

func (s *Search) status() string {
	switch {
	case s.root == nil:
		return "not searched"
	case s.root.proof == 0:
		return "proved"
	case s.root.disproof == 0:
		return "disproved"
	default:
		return "undecided"
	}
}

// EstimateValue is 1 for a proved root, -1 for a disproved one and 0 otherwise.
func (s *Search) EstimateValue() float64 {
	switch {
	case s.root == nil:
		return 0
	case s.root.proof == 0:
		return game.Win
	case s.root.disproof == 0:
		return game.Loss
	default:
		return 0
	}
}

func (s *Search) GenerateAnalysisReport() string {
	return s.report
}

func (s *Search) LastSearch() metrics.SearchMetric {
	return s.lastSearch
}

func number(n int) string {
	if n == infinity {
		return "inf"
	}
	return fmt.Sprint(n)
}

func saturatingAdd(a, b int) int {
	if a >= infinity-b {
		return infinity
	}
	return a + b
}
