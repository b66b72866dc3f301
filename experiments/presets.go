package experiments

import (
	"xmcts/agent"
	"xmcts/experiments/metrics"
	"xmcts/game"
	"xmcts/game/tictactoe"
)

// PolicyComparison pairs a plain UCB1 baseline against every enhancement on tic-tac-toe.
func PolicyComparison(seconds float64, iterations, numGames int) *Experiment {
	agentConfig := func(id int, name, description string) metrics.AgentConfig {
		return metrics.AgentConfig{ID: id, Name: name, Description: description, Seconds: seconds, Iterations: iterations}
	}

	baseline := MCTSContender(agentConfig(0, "ucb1", "UCB1, robust child, uniform playouts"), agent.DefaultConfig())

	grave := agent.DefaultConfig()
	grave.SelectionPolicy = "grave"
	mast := agent.DefaultConfig()
	mast.PlayoutPolicy = "mast"
	nst := agent.DefaultConfig()
	nst.PlayoutPolicy = "nst"
	solver := agent.DefaultConfig()
	solver.UseScoreBounds = true
	solver.UsePNS = true

	challengers := []Contender{
		MCTSContender(agentConfig(1, "grave", "GRAVE selection"), grave),
		MCTSContender(agentConfig(2, "mast", "MAST playouts"), mast),
		MCTSContender(agentConfig(3, "nst", "NST playouts"), nst),
		MCTSContender(agentConfig(4, "solver", "Score bounds and proof numbers"), solver),
		PNSContender(agentConfig(5, "pns", "Proof-number search")),
	}

	matchUps := make([][2]Contender, len(challengers))
	for i, challenger := range challengers {
		matchUps[i] = [2]Contender{baseline, challenger}
	}

	return &Experiment{
		Name:     "policy_comparison",
		Game:     tictactoe.Game{},
		Start:    func() game.State { return tictactoe.New() },
		MatchUps: matchUps,
		NumGames: numGames,
	}
}
