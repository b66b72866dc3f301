package engine

import (
	"context"

	"xmcts/experiments/metrics"
)

const MaxMoves = 10000

type Engine interface {
	// Run plays a game till it ends or a max number of moves is reached
	Run(ctx context.Context) (metrics.GameMetric, []metrics.MoveMetric, error)
}
