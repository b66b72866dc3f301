package explain

import (
	"math"
	"sort"

	"xmcts/searcher"

	"gonum.org/v1/gonum/stat"
)

// Relative places a move against the selected move.
type Relative int

const (
	Equal Relative = iota
	SlightlyWorse
	MuchWorse
	SlightlyBetter
	MuchBetter
)

var relativeNames = [...]string{"equal", "slightly worse", "much worse", "slightly better", "much better"}

func (r Relative) String() string {
	return relativeNames[r]
}

// Absolute places a move on the [-1, 1] score scale.
type Absolute int

const (
	VeryBad Absolute = iota
	Bad
	Neutral
	Good
	VeryGood
)

var absoluteNames = [...]string{"very bad", "bad", "neutral", "good", "very good"}

func (a Absolute) String() string {
	return absoluteNames[a]
}

type Thresholds struct {
	// Epsilon is the largest difference still considered equal.
	Epsilon float64
	// Relative separates slightly from much better or worse.
	Relative float64
	// Neutral is the largest magnitude considered neutral.
	Neutral float64
	// Good is the magnitude from which a score is very good or very bad.
	Good float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Epsilon:  1e-8,
		Relative: 0.1,
		Neutral:  0.1,
		Good:     0.63,
	}
}

// Evaluation scores a node, NaN meaning no data.
type Evaluation func(n *searcher.Node) float64

func MeanScore(player int) Evaluation {
	return func(n *searcher.Node) float64 {
		if mean, ok := n.MeanScore(player); ok {
			return mean
		}
		return math.NaN()
	}
}

// AMAFScore reads the move's all-moves-as-first stats recorded at its parent.
func AMAFScore(player int) Evaluation {
	return func(n *searcher.Node) float64 {
		parent := n.Parent()
		if parent == nil || n.Move() == nil {
			return math.NaN()
		}
		if mean, ok := parent.AMAF(n.Move().Key()).Mean(player); ok {
			return mean
		}
		return math.NaN()
	}
}

func GlobalScore(table *searcher.ActionTable, player int) Evaluation {
	return func(n *searcher.Node) float64 {
		if n.Move() == nil {
			return math.NaN()
		}
		if mean, ok := table.Mean(n.Move().Key(), player); ok {
			return mean
		}
		return math.NaN()
	}
}

// NGramScore averages the means of the observed 1..maxN-grams ending in the move.
func NGramScore(table *searcher.NGramTable, maxN, player int) Evaluation {
	return func(n *searcher.Node) float64 {
		parent := n.Parent()
		if parent == nil || n.Move() == nil {
			return math.NaN()
		}
		var means []float64
		for _, key := range searcher.NGramsEndingWith(parent.State().History(), n.Move(), maxN) {
			if mean, ok := table.Mean(key, player); ok {
				means = append(means, mean)
			}
		}
		if len(means) == 0 {
			return math.NaN()
		}
		return stat.Mean(means, nil)
	}
}

func PolicyValue(policy searcher.SelectionPolicy) Evaluation {
	return policy.Value
}

// Outliers classifies every child into exactly one relative and one absolute category.
// Children without data rank last and count as much worse and very bad.
type Outliers struct {
	selected      *searcher.Node
	selectedValue float64
	ranked        []*searcher.Node
	values        map[*searcher.Node]float64
	relative      map[*searcher.Node]Relative
	absolute      map[*searcher.Node]Absolute
}

func NewOutliers(children []*searcher.Node, selected *searcher.Node, evaluate Evaluation, thresholds Thresholds) *Outliers {
	o := &Outliers{
		selected:      selected,
		selectedValue: evaluate(selected),
		ranked:        append([]*searcher.Node(nil), children...),
		values:        make(map[*searcher.Node]float64, len(children)),
		relative:      make(map[*searcher.Node]Relative, len(children)),
		absolute:      make(map[*searcher.Node]Absolute, len(children)),
	}
	for _, child := range children {
		value := evaluate(child)
		o.values[child] = value
		o.absolute[child] = classifyAbsolute(value, thresholds)
		if child == selected {
			o.relative[child] = Equal
		} else {
			o.relative[child] = classifyRelative(value, o.selectedValue, thresholds)
		}
	}

	sort.SliceStable(o.ranked, func(i, j int) bool {
		a, b := o.values[o.ranked[i]], o.values[o.ranked[j]]
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return o
}

func classifyRelative(value, selected float64, thresholds Thresholds) Relative {
	switch {
	case math.IsNaN(value):
		return MuchWorse
	case math.IsNaN(selected):
		return MuchBetter
	}

	diff := math.Abs(value - selected)
	switch {
	case diff <= thresholds.Epsilon:
		return Equal
	case value < selected && diff < thresholds.Relative:
		return SlightlyWorse
	case value < selected:
		return MuchWorse
	case diff < thresholds.Relative:
		return SlightlyBetter
	default:
		return MuchBetter
	}
}

func classifyAbsolute(value float64, thresholds Thresholds) Absolute {
	magnitude := math.Abs(value)
	switch {
	case math.IsNaN(value):
		return VeryBad
	case magnitude <= thresholds.Neutral:
		return Neutral
	case magnitude < thresholds.Good && value > 0:
		return Good
	case magnitude < thresholds.Good:
		return Bad
	case value > 0:
		return VeryGood
	default:
		return VeryBad
	}
}

func (o *Outliers) Selected() *searcher.Node {
	return o.selected
}

func (o *Outliers) SelectedValue() float64 {
	return o.selectedValue
}

func (o *Outliers) Value(n *searcher.Node) float64 {
	return o.values[n]
}

// Ranked lists the children by descending value.
func (o *Outliers) Ranked() []*searcher.Node {
	return o.ranked
}

func (o *Outliers) RelativeOf(n *searcher.Node) Relative {
	return o.relative[n]
}

func (o *Outliers) AbsoluteOf(n *searcher.Node) Absolute {
	return o.absolute[n]
}

// Relative returns the children of a category in rank order.
func (o *Outliers) Relative(category Relative) []*searcher.Node {
	nodes := []*searcher.Node{}
	for _, n := range o.ranked {
		if o.relative[n] == category {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (o *Outliers) Absolute(category Absolute) []*searcher.Node {
	nodes := []*searcher.Node{}
	for _, n := range o.ranked {
		if o.absolute[n] == category {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
