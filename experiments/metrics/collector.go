package metrics

import (
	"sync/atomic"
	"time"
)

// SearchMetric summarizes one move search.
type SearchMetric struct {
	Duration   time.Duration
	Iterations int
	Playouts   int
	TreeSize   int
	TreeReused bool
	RootSolved bool
}

type MoveMetric struct {
	Step   int
	Player int // Player ID
	Move   string
	Value  float64 // Agent's estimate after the search
	SearchMetric
}

type GameMetric struct {
	StartingPlayer int // Player ID
	Winner         int // Player ID, 0 for a draw or an unfinished game
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
}

type Collector interface {
	Start()
	SetTreeReused(value bool)
	SetTreeSize(size int)
	SetRootSolved(value bool)
	AddIteration()
	AddPlayout()
	Complete() SearchMetric
}

type collector struct {
	startTime  time.Time
	iterations atomic.Int64
	playouts   atomic.Int64
	treeSize   atomic.Int64
	treeReused atomic.Bool
	rootSolved atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

// Start resets the counters for a new search.
func (m *collector) Start() {
	m.startTime = time.Now()
	m.iterations.Store(0)
	m.playouts.Store(0)
	m.treeSize.Store(0)
	m.treeReused.Store(false)
	m.rootSolved.Store(false)
}

func (m *collector) SetTreeReused(value bool) {
	m.treeReused.Store(value)
}

func (m *collector) SetTreeSize(size int) {
	m.treeSize.Store(int64(size))
}

func (m *collector) SetRootSolved(value bool) {
	m.rootSolved.Store(value)
}

func (m *collector) AddIteration() {
	m.iterations.Add(1)
}

func (m *collector) AddPlayout() {
	m.playouts.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Duration:   time.Since(m.startTime),
		Iterations: int(m.iterations.Load()),
		Playouts:   int(m.playouts.Load()),
		TreeSize:   int(m.treeSize.Load()),
		TreeReused: m.treeReused.Load(),
		RootSolved: m.rootSolved.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start()                 {}
func (m *dummyCollector) SetTreeReused(bool)     {}
func (m *dummyCollector) SetTreeSize(int)        {}
func (m *dummyCollector) SetRootSolved(bool)     {}
func (m *dummyCollector) AddIteration()          {}
func (m *dummyCollector) AddPlayout()            {}
func (m *dummyCollector) Complete() SearchMetric { return SearchMetric{} }
