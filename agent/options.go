package agent

import (
	"xmcts/experiments/metrics"
	"xmcts/explain"
	"xmcts/searcher"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"
)

type Option func(m *ExplainableMCTS)

func WithName(name string) Option {
	return func(m *ExplainableMCTS) {
		if name != "" {
			m.name = name
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(m *ExplainableMCTS) {
		if rng != nil {
			m.rng = rng
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(m *ExplainableMCTS) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(m *ExplainableMCTS) {
		if collector != nil {
			m.metrics = collector
		}
	}
}

// WithScoreBounds wraps the selection policies with the proven win, dominated and proven loss modifiers.
func WithScoreBounds(enabled bool) Option {
	return func(m *ExplainableMCTS) {
		m.scoreBounds = enabled
	}
}

// WithPNS maintains proof and disproof numbers for the searching player and prefers proved moves.
func WithPNS(enabled bool) Option {
	return func(m *ExplainableMCTS) {
		m.pns = enabled
	}
}

func WithSelectionPolicy(policy searcher.SelectionPolicy) Option {
	return func(m *ExplainableMCTS) {
		if policy != nil {
			m.selection = policy
		}
	}
}

func WithFinalSelectionPolicy(policy searcher.SelectionPolicy) Option {
	return func(m *ExplainableMCTS) {
		if policy != nil {
			m.finalSelection = policy
		}
	}
}

func WithPlayoutPolicy(policy searcher.PlayoutPolicy) Option {
	return func(m *ExplainableMCTS) {
		if policy != nil {
			m.playout = policy
		}
	}
}

func WithGenerator(generator *explain.Generator) Option {
	return func(m *ExplainableMCTS) {
		if generator != nil {
			m.generator = generator
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *ExplainableMCTS) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}
