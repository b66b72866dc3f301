package agent

import (
	"fmt"
	"strings"

	"xmcts/searcher"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the declarative form of an agent. JSON documents decode as well, being valid YAML.
type Config struct {
	Name                     string  `yaml:"name" json:"name"`
	UseScoreBounds           bool    `yaml:"useScoreBounds" json:"useScoreBounds"`
	UsePNS                   bool    `yaml:"usePNS" json:"usePNS"`
	SelectionPolicy          string  `yaml:"selectionPolicy" json:"selectionPolicy"`
	FinalMoveSelectionPolicy string  `yaml:"finalMoveSelectionPolicy" json:"finalMoveSelectionPolicy"`
	PlayoutPolicy            string  `yaml:"playoutPolicy" json:"playoutPolicy"`
	GRAVEBias                float64 `yaml:"graveBias" json:"graveBias"`
	GRAVERef                 int     `yaml:"graveRef" json:"graveRef"`
	GRAVEAncestorReference   bool    `yaml:"graveAncestorReference" json:"graveAncestorReference"`
	Epsilon                  float64 `yaml:"epsilon" json:"epsilon"`
	MaxNGramLength           int     `yaml:"maxNGramLength" json:"maxNGramLength"`
}

func DefaultConfig() Config {
	return Config{
		SelectionPolicy:          "ucb1",
		FinalMoveSelectionPolicy: "robust_child",
		PlayoutPolicy:            "uniform",
		GRAVEBias:                searcher.DefaultGRAVEBias,
		GRAVERef:                 searcher.DefaultGRAVERef,
		Epsilon:                  searcher.DefaultEpsilon,
		MaxNGramLength:           searcher.DefaultMaxNGramLength,
	}
}

// ParseConfig decodes data on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse agent config: %w", err)
	}
	return cfg, nil
}

// NewFromConfig builds an agent from cfg. Options are applied after the configured ones.
// Unknown policy names fall back to the defaults with a warning.
func NewFromConfig(cfg Config, options ...Option) *ExplainableMCTS {
	epsilon := cfg.Epsilon
	if epsilon < 0 || epsilon > 1 {
		log.Warn().Float64("epsilon", epsilon).Msg("epsilon out of [0, 1], clamping")
		epsilon = min(max(epsilon, 0), 1)
	}
	maxN := cfg.MaxNGramLength
	if maxN < 1 {
		log.Warn().Int("maxNGramLength", maxN).Msg("n-gram length below 1, using 1")
		maxN = 1
	}

	configured := []Option{
		WithName(cfg.Name),
		WithScoreBounds(cfg.UseScoreBounds),
		WithPNS(cfg.UsePNS),
		WithSelectionPolicy(selectionPolicy(cfg.SelectionPolicy, cfg, searcher.NewUCB1())),
		WithFinalSelectionPolicy(selectionPolicy(cfg.FinalMoveSelectionPolicy, cfg, searcher.MostVisited{})),
		WithPlayoutPolicy(playoutPolicy(cfg.PlayoutPolicy, epsilon, maxN)),
	}
	return New(append(configured, options...)...)
}

func selectionPolicy(name string, cfg Config, fallback searcher.SelectionPolicy) searcher.SelectionPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return fallback
	case "ucb1", "uct":
		return searcher.NewUCB1()
	case "grave", "rave":
		grave := searcher.NewGRAVE(cfg.GRAVEBias, cfg.GRAVERef)
		grave.AncestorReference = cfg.GRAVEAncestorReference
		return grave
	case "robust_child", "mostvisited", "most_visited":
		return searcher.MostVisited{}
	default:
		log.Warn().Str("policy", name).Str("fallback", fallback.Name()).Msg("unknown selection policy")
		return fallback
	}
}

func playoutPolicy(name string, epsilon float64, maxN int) searcher.PlayoutPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "uniform", "random":
		return searcher.Uniform{}
	case "mast":
		return searcher.NewMAST(epsilon)
	case "nst":
		return searcher.NewNST(maxN, epsilon)
	default:
		log.Warn().Str("policy", name).Msg("unknown playout policy, using uniform")
		return searcher.Uniform{}
	}
}
