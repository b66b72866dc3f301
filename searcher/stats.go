package searcher

import "xmcts/game"

// ActionStats aggregates the outcomes of every trial in which a move (or a move sequence) was observed.
type ActionStats struct {
	visits    int
	scoreSums []float64
}

func NewActionStats(players int) *ActionStats {
	return &ActionStats{scoreSums: make([]float64, players+1)}
}

func (a *ActionStats) Add(utilities []float64) {
	a.visits++
	for p := 1; p < len(a.scoreSums) && p < len(utilities); p++ {
		a.scoreSums[p] += utilities[p]
	}
}

func (a *ActionStats) Visits() int {
	return a.visits
}

func (a *ActionStats) ScoreSum(player int) float64 {
	return a.scoreSums[player]
}

// Mean reports false when nothing was observed yet.
func (a *ActionStats) Mean(player int) (float64, bool) {
	if a == nil || a.visits == 0 {
		return 0, false
	}
	return a.scoreSums[player] / float64(a.visits), true
}

// Table maps move identities to lazily created stats. It is owned by one search session.
type Table[K comparable] struct {
	players int
	stats   map[K]*ActionStats
}

// ActionTable holds MAST statistics keyed by single moves.
type ActionTable = Table[game.MoveKey]

// NGramTable holds NST statistics keyed by move sequences.
type NGramTable = Table[game.NGramKey]

func NewActionTable(players int) *ActionTable {
	return &ActionTable{players: players, stats: map[game.MoveKey]*ActionStats{}}
}

func NewNGramTable(players int) *NGramTable {
	return &NGramTable{players: players, stats: map[game.NGramKey]*ActionStats{}}
}

func (t *Table[K]) Add(key K, utilities []float64) {
	stats, ok := t.stats[key]
	if !ok {
		stats = NewActionStats(t.players)
		t.stats[key] = stats
	}
	stats.Add(utilities)
}

// Get returns nil for keys never observed.
func (t *Table[K]) Get(key K) *ActionStats {
	return t.stats[key]
}

func (t *Table[K]) Mean(key K, player int) (float64, bool) {
	return t.stats[key].Mean(player)
}

func (t *Table[K]) Len() int {
	return len(t.stats)
}

// Reset clears the table in place so that components holding it keep a valid handle.
func (t *Table[K]) Reset(players int) {
	t.players = players
	clear(t.stats)
}

// UpdateActions credits every move played from index from onwards.
func UpdateActions(table *ActionTable, history []game.Move, from int, utilities []float64) {
	for i := max(from, 0); i < len(history); i++ {
		table.Add(history[i].Key(), utilities)
	}
}

// UpdateNGrams credits every n-gram (up to maxN moves) that ends at or after index from.
func UpdateNGrams(table *NGramTable, history []game.Move, from, maxN int, utilities []float64) {
	for i := max(from, 0); i < len(history); i++ {
		for j := max(0, i-maxN+1); j <= i; j++ {
			table.Add(game.NGram(history[j:i+1]), utilities)
		}
	}
}

// NGramsEndingWith lists the 1..maxN-gram keys formed by move and the moves played just before it, shortest first.
func NGramsEndingWith(history []game.Move, move game.Move, maxN int) []game.NGramKey {
	keys := make([]game.NGramKey, 0, maxN)
	for length := 1; length <= maxN && length-1 <= len(history); length++ {
		prefix := history[len(history)-(length-1):]
		keys = append(keys, game.NGram(append(prefix[:len(prefix):len(prefix)], move)))
	}
	return keys
}
