package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"xmcts/agent"
	"xmcts/engine"
	"xmcts/experiments"
	"xmcts/experiments/metrics"
	"xmcts/game"
	"xmcts/game/tictactoe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logLevel string

	configPaths []string
	board       string
	seconds     float64
	iterations  int
	seed        uint64

	games         int
	outDir        string
	parallelism   int
	exportMetrics bool

	rootCmd = &cobra.Command{
		Use:   "xmcts",
		Short: "Explainable Monte Carlo tree search",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			return nil
		},
	}

	playCmd = &cobra.Command{
		Use:   "play",
		Short: "Play one game of tic-tac-toe between two agents and print their analysis reports",
		RunE:  runPlay,
	}

	experimentCmd = &cobra.Command{
		Use:   "experiment",
		Short: "Compare the search enhancements against a UCB1 baseline and store the records as CSV",
		RunE:  runExperiment,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&seconds, "seconds", 0, "time budget per move in seconds, 0 for none")
	rootCmd.PersistentFlags().IntVar(&iterations, "iterations", 1000, "iteration budget per move, negative for none (then --seconds must be positive)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed, play picks a random one when 0")

	playCmd.Flags().StringSliceVar(&configPaths, "config", nil, "agent config files (YAML or JSON), one per player")
	playCmd.Flags().StringVar(&board, "board", ".........", "starting board, 9 cells of X, O and .")

	experimentCmd.Flags().IntVar(&games, "games", experiments.NumGames, "games per match up")
	experimentCmd.Flags().StringVar(&outDir, "out", "experiments", "directory receiving the records")
	experimentCmd.Flags().IntVar(&parallelism, "parallelism", 0, "games played at once, 0 for the number of CPUs")
	experimentCmd.Flags().BoolVar(&exportMetrics, "prometheus", false, "also store the search metrics in Prometheus text format")

	rootCmd.AddCommand(playCmd, experimentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (agent.Config, error) {
	if path == "" {
		return agent.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Config{}, fmt.Errorf("failed to read agent config: %w", err)
	}
	return agent.ParseConfig(data)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start, err := startState(board)
	if err != nil {
		return err
	}

	g := tictactoe.Game{}
	agents := make([]agent.AI, g.NumPlayers())
	for i := range agents {
		path := ""
		if i < len(configPaths) {
			path = configPaths[i]
		}
		cfg, err := loadConfig(path)
		if err != nil {
			return err
		}
		cfg.Name = fmt.Sprintf("player %d", i+1)

		options := []agent.Option{agent.WithMetrics(metrics.NewCollector())}
		if seed != 0 {
			options = append(options, agent.WithSeed(seed+uint64(i)))
		}
		agents[i] = agent.NewFromConfig(cfg, options...)
	}

	local, err := engine.LocalEngine(g, start, agents, seconds, iterations)
	if err != nil {
		return err
	}
	local.OnMove = func(step, player int, move game.Move, ai agent.AI) {
		fmt.Fprintf(cmd.OutOrStdout(), "Move %d by %s: %s\n%s\n\n", step, ai.Name(), move, ai.GenerateAnalysisReport())
	}

	gameMetric, _, err := local.Run(ctx)
	if err != nil {
		return err
	}

	final := local.State.(*tictactoe.State)
	result := "draw"
	if gameMetric.Winner != 0 {
		result = fmt.Sprintf("player %d wins", gameMetric.Winner)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Final board %s: %s after %d moves\n", final, result, gameMetric.TotalMoves)
	return nil
}

// startState replays the marks of board alternately so that the agents see a history they can reuse.
func startState(board string) (game.State, error) {
	parsed, err := tictactoe.Parse(board, tictactoe.X)
	if err != nil {
		return nil, err
	}
	if parsed.IsTerminal() {
		return nil, fmt.Errorf("board %s is already decided", parsed)
	}

	var crosses, noughts []int
	for cell := 0; cell < tictactoe.Cells; cell++ {
		switch parsed.Cell(cell) {
		case tictactoe.X:
			crosses = append(crosses, cell)
		case tictactoe.O:
			noughts = append(noughts, cell)
		}
	}
	if len(crosses) != len(noughts) && len(crosses) != len(noughts)+1 {
		return nil, fmt.Errorf("board %s has %d X and %d O marks", parsed, len(crosses), len(noughts))
	}

	var s game.State = tictactoe.New()
	for i := range crosses {
		s = s.Play(tictactoe.Move{Cell: crosses[i], Player: tictactoe.X})
		if i < len(noughts) {
			s = s.Play(tictactoe.Move{Cell: noughts[i], Player: tictactoe.O})
		}
	}
	return s, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := engine.ValidateBudget(seconds, iterations); err != nil {
		return err
	}
	e := experiments.PolicyComparison(seconds, iterations, games)
	e.Parallelism = parallelism
	e.Seed = seed

	var registry *prometheus.Registry
	if exportMetrics {
		registry = prometheus.NewRegistry()
		e.Prometheus = metrics.NewPrometheus(registry, "xmcts")
	}

	result, err := e.Run(ctx)
	if err != nil {
		return err
	}
	dir, err := experiments.Store(outDir, e.Name, result)
	if err != nil {
		return err
	}

	if registry != nil {
		err = prometheus.WriteToTextfile(filepath.Join(dir, "metrics.prom"), registry)
		if err != nil {
			return fmt.Errorf("failed to write prometheus metrics: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d games in %s\n", len(result.Games), dir)
	return nil
}
