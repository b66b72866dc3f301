package searcher

import "strings"

// Flags selects the side effects performed when propagating a simulation result.
type Flags uint8

const (
	ScoreBounds Flags = 1 << iota
	AMAFStats
	GlobalActionStats
	GlobalNGramActionStats
	ProofDisproofNumbers
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{ScoreBounds, "SCORE_BOUNDS"},
	{AMAFStats, "AMAF_STATS"},
	{GlobalActionStats, "GLOBAL_ACTION_STATS"},
	{GlobalNGramActionStats, "GLOBAL_NGRAM_ACTION_STATS"},
	{ProofDisproofNumbers, "PROOF_DISPROOF_NUMBERS"},
}

func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	names := []string{}
	for _, entry := range flagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, " | ")
}
