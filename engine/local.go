package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xmcts/agent"
	"xmcts/experiments/metrics"
	"xmcts/game"

	"github.com/rs/zerolog/log"
)

// Local plays one game in process. Agents are indexed by player - 1.
type Local struct {
	Game       game.Game
	State      game.State
	Agents     []agent.AI
	Seconds    float64
	Iterations int

	// OnMove, when set, is called after every move with the mover's agent.
	OnMove func(step, player int, move game.Move, ai agent.AI)
}

// ErrUnboundedBudget is returned when neither a time nor an iteration limit would end a search.
var ErrUnboundedBudget = errors.New("search budget needs seconds > 0 or iterations >= 0")

// ValidateBudget rejects budgets that only a solved root could end.
func ValidateBudget(seconds float64, iterations int) error {
	if seconds <= 0 && iterations < 0 {
		return fmt.Errorf("seconds %v, iterations %d: %w", seconds, iterations, ErrUnboundedBudget)
	}
	return nil
}

type searchReporter interface {
	LastSearch() metrics.SearchMetric
}

func LocalEngine(g game.Game, start game.State, agents []agent.AI, seconds float64, iterations int) (*Local, error) {
	if len(agents) != g.NumPlayers() {
		return nil, fmt.Errorf("game %s needs %d agents, got %d", g.Name(), g.NumPlayers(), len(agents))
	}
	if err := ValidateBudget(seconds, iterations); err != nil {
		return nil, err
	}
	for _, ai := range agents {
		if !ai.SupportsGame(g) {
			return nil, fmt.Errorf("agent %s cannot play %s: %w", ai.Name(), g.Name(), agent.ErrUnsupportedGame)
		}
	}
	return &Local{
		Game:       g,
		State:      start,
		Agents:     agents,
		Seconds:    seconds,
		Iterations: iterations,
	}, nil
}

// Run executes the entire game loop until the game ends.
func (e *Local) Run(ctx context.Context) (metrics.GameMetric, []metrics.MoveMetric, error) {
	for i, ai := range e.Agents {
		ai.InitAI(e.Game, i+1)
	}
	defer func() {
		for _, ai := range e.Agents {
			ai.CloseAI()
		}
	}()

	gameMetric := metrics.GameMetric{
		StartingPlayer: e.State.Mover(),
		StartTime:      time.Now(),
	}
	log.Debug().Str("game", e.Game.Name()).Int("player", gameMetric.StartingPlayer).Msg("game started")

	var moveMetrics []metrics.MoveMetric
	step := 1
	for ; !e.State.IsTerminal() && step <= MaxMoves; step++ {
		if err := ctx.Err(); err != nil {
			return gameMetric, moveMetrics, fmt.Errorf("game interrupted at move %d: %w", step, err)
		}

		player := e.State.Mover()
		ai := e.Agents[player-1]
		move := ai.SelectAction(ctx, e.Game, e.State, e.Seconds, e.Iterations, 0)
		if err := game.Validate(e.State, move); err != nil {
			return gameMetric, moveMetrics, fmt.Errorf("agent %s at move %d: %w", ai.Name(), step, err)
		}

		moveMetric := metrics.MoveMetric{
			Step:   step,
			Player: player,
			Move:   move.String(),
			Value:  ai.EstimateValue(),
		}
		if reporter, ok := ai.(searchReporter); ok {
			moveMetric.SearchMetric = reporter.LastSearch()
		}
		moveMetrics = append(moveMetrics, moveMetric)

		e.State = e.State.Play(move)
		if e.OnMove != nil {
			e.OnMove(step, player, move, ai)
		}
	}

	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = len(moveMetrics)
	gameMetric.Winner = Winner(e.State)
	log.Debug().Int("winner", gameMetric.Winner).Int("moves", gameMetric.TotalMoves).Msg("game over")
	return gameMetric, moveMetrics, nil
}

// Winner returns the player holding a winning utility, 0 for a draw or an unfinished game.
func Winner(s game.State) int {
	if !s.IsTerminal() {
		return 0
	}
	for p, utility := range s.Utilities() {
		if p > 0 && utility == game.Win {
			return p
		}
	}
	return 0
}
