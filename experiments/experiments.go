// Package experiments plays batches of matches between agent configurations and stores the records as CSV.
package experiments

import (
	"context"
	"fmt"
	"runtime"

	"xmcts/agent"
	"xmcts/engine"
	"xmcts/experiments/metrics"
	"xmcts/game"
	"xmcts/pns"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

const NumGames = 30 // Per match up

// Contender builds fresh agents of one configuration. Every game gets its own instance.
type Contender struct {
	Config metrics.AgentConfig
	New    func(seed uint64, collector metrics.Collector) agent.AI
}

// MCTSContender wraps a declarative agent config.
func MCTSContender(config metrics.AgentConfig, cfg agent.Config) Contender {
	cfg.Name = config.Name
	return Contender{
		Config: config,
		New: func(seed uint64, collector metrics.Collector) agent.AI {
			return agent.NewFromConfig(cfg, agent.WithSeed(seed), agent.WithMetrics(collector))
		},
	}
}

func PNSContender(config metrics.AgentConfig) Contender {
	return Contender{
		Config: config,
		New: func(seed uint64, collector metrics.Collector) agent.AI {
			return pns.New(pns.WithRand(rand.New(rand.NewSource(seed))), pns.WithMetrics(collector))
		},
	}
}

type Experiment struct {
	Name     string
	Game     game.Game
	Start    func() game.State
	MatchUps [][2]Contender
	NumGames int
	Seed     uint64

	// Parallelism bounds the games played at once, defaulting to the number of CPUs.
	Parallelism int
	// Prometheus, when set, receives the metrics of every search.
	Prometheus *metrics.Prometheus
}

type Result struct {
	Configs []metrics.AgentConfig
	Games   []metrics.GameRecord
	Moves   []metrics.MoveRecord
}

type match struct {
	id    int
	seats [2]Contender
}

// Run plays NumGames per match up, alternating the starting seat between games.
func (e *Experiment) Run(ctx context.Context) (Result, error) {
	numGames := e.NumGames
	if numGames <= 0 {
		numGames = NumGames
	}
	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	matches := []match{}
	for _, matchUp := range e.MatchUps {
		for i := 0; i < numGames; i++ {
			seats := matchUp
			if i%2 == 1 {
				seats = [2]Contender{matchUp[1], matchUp[0]}
			}
			matches = append(matches, match{id: len(matches) + 1, seats: seats})
		}
	}

	log.Info().Str("experiment", e.Name).Int("games", len(matches)).Int("parallelism", parallelism).Msg("starting experiment")

	games := make([]metrics.GameRecord, len(matches))
	moves := make([][]metrics.MoveRecord, len(matches))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for i, m := range matches {
		i, m := i, m
		group.Go(func() error {
			record, moveRecords, err := e.play(ctx, m)
			if err != nil {
				return fmt.Errorf("game %d: %w", m.id, err)
			}
			games[i] = record
			moves[i] = moveRecords
			log.Info().Int("game", m.id).Int("winner", record.Winner).Int("moves", record.TotalMoves).Msg("completed game")
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{Games: games}
	for _, gameMoves := range moves {
		result.Moves = append(result.Moves, gameMoves...)
	}
	seen := map[int]bool{}
	for _, matchUp := range e.MatchUps {
		for _, contender := range matchUp {
			if !seen[contender.Config.ID] {
				seen[contender.Config.ID] = true
				result.Configs = append(result.Configs, contender.Config)
			}
		}
	}

	log.Info().Str("experiment", e.Name).Msg("completed experiment")
	return result, nil
}

func (e *Experiment) play(ctx context.Context, m match) (metrics.GameRecord, []metrics.MoveRecord, error) {
	agents := make([]agent.AI, len(m.seats))
	for seat, contender := range m.seats {
		agents[seat] = contender.New(e.Seed+uint64(2*m.id+seat), e.collector(contender))
	}

	// Both contenders share the time and iteration budget of the first seat's config
	config := m.seats[0].Config
	local, err := engine.LocalEngine(e.Game, e.Start(), agents, config.Seconds, config.Iterations)
	if err != nil {
		return metrics.GameRecord{}, nil, err
	}

	gameMetric, moveMetrics, err := local.Run(ctx)
	if err != nil {
		return metrics.GameRecord{}, nil, err
	}

	record := metrics.GameRecord{
		ID:         m.id,
		Agent1:     m.seats[0].Config.ID,
		Agent2:     m.seats[1].Config.ID,
		GameMetric: gameMetric,
	}
	moveRecords := make([]metrics.MoveRecord, len(moveMetrics))
	for i, mm := range moveMetrics {
		moveRecords[i] = metrics.MoveRecord{Game: m.id, MoveMetric: mm}
	}
	return record, moveRecords, nil
}

func (e *Experiment) collector(contender Contender) metrics.Collector {
	if e.Prometheus != nil {
		return e.Prometheus.Collector(contender.Config.Name)
	}
	return metrics.NewCollector()
}

// Store writes the result under baseDir/name/<timestamp> and returns that directory.
func Store(baseDir, name string, result Result) (string, error) {
	writer, err := metrics.NewWriter(baseDir, name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	err = writer.WriteAgentConfigs(result.Configs)
	if err != nil {
		return "", fmt.Errorf("failed to store agent configs: %w", err)
	}
	err = writer.WriteGameRecords(result.Games)
	if err != nil {
		return "", fmt.Errorf("failed to write game records: %w", err)
	}
	err = writer.WriteMoveRecords(result.Moves)
	if err != nil {
		return "", fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored experiment records")
	return writer.Dir(), nil
}
