package explain

import (
	"fmt"
	"math"
	"strings"

	"xmcts/searcher"

	"github.com/samber/lo"
)

const (
	slightlyWorseRatio = 0.75
	globalStatsWindow  = 0.25
	amafWindow         = 0.5
	maxLineLength      = 10

	// Means above these read as a move that performs well in general.
	globalStatsThreshold = 0.25
	amafThreshold        = 0.5
)

// Input is the finished search handed to the generator.
type Input struct {
	Tree     *searcher.Tree
	Selected *searcher.Node
	Player   int
	Flags    searcher.Flags

	FinalPolicy searcher.SelectionPolicy

	// Actions and NGrams are nil unless the matching flag is set.
	Actions *searcher.ActionTable
	NGrams  *searcher.NGramTable
	// MaxNGramLength bounds the n-grams read from NGrams, defaulting to searcher.DefaultMaxNGramLength.
	MaxNGramLength int

	// SingleMove is set when the root offered exactly one legal move and no search ran.
	SingleMove bool

	PreviousValue    float64
	HasPreviousValue bool
}

type Generator struct {
	Thresholds  Thresholds
	ForcedDepth int
}

func NewGenerator() *Generator {
	return &Generator{
		Thresholds:  DefaultThresholds(),
		ForcedDepth: DefaultForcedDepth,
	}
}

// Explain builds a plain-text justification of the selected move.
func (g *Generator) Explain(in Input) string {
	if in.Selected == nil {
		return "No move was selected."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Selected move: %s.\n", in.Selected.Move())
	if in.SingleMove {
		b.WriteString("Since there was only one move available, it was chosen without any search and no alternative existed.")
		return collapse(b.String())
	}

	root := in.Tree.Root()
	children := root.Children()
	siblings := lo.Filter(children, func(c *searcher.Node, _ int) bool {
		return c != in.Selected
	})

	sections := []string{
		g.categories(in, siblings),
		g.solved(in),
		g.probability(in),
		g.scoreChange(in),
		g.counterintuitive(in, siblings),
		g.mast(in, siblings),
		g.nst(in, siblings),
		g.amaf(in, siblings),
		g.outliers(in, children),
		g.forced(in, siblings),
	}
	for _, section := range sections {
		if section != "" {
			b.WriteString(section)
			b.WriteString("\n")
		}
	}
	return collapse(b.String())
}

func collapse(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

func moveNames(nodes []*searcher.Node) string {
	return strings.Join(lo.Map(nodes, func(n *searcher.Node, _ int) string {
		return n.Move().String()
	}), ", ")
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}

// categories compares the final selection values of the siblings.
func (g *Generator) categories(in Input, siblings []*searcher.Node) string {
	if len(siblings) == 0 {
		return "Since there was only one move available, it was the only one chosen."
	}

	selected := in.FinalPolicy.Value(in.Selected)
	if math.IsInf(selected, 0) {
		return ""
	}

	equal := lo.Filter(siblings, func(c *searcher.Node, _ int) bool {
		return math.Abs(in.FinalPolicy.Value(c)-selected) <= g.Thresholds.Epsilon
	})
	if len(equal) > 0 {
		return fmt.Sprintf("The selected move has the same estimated value as the following moves: %s. It was chosen randomly from among them.", moveNames(equal))
	}

	if selected > 0 {
		near := lo.Filter(siblings, func(c *searcher.Node, _ int) bool {
			return in.FinalPolicy.Value(c)/selected > slightlyWorseRatio
		})
		if len(near) > 0 {
			return fmt.Sprintf("The following moves are considered slightly worse than the one chosen: %s.", moveNames(near))
		}
	}
	return "The selected move was significantly better than all other options."
}

func (g *Generator) solved(in Input) string {
	var parts []string
	selected, player := in.Selected, in.Player

	if in.Flags.Has(searcher.ScoreBounds) {
		switch {
		case selected.IsWin(player):
			parts = append(parts, "This move is a proven win: we win regardless of how the opponent responds.", g.line(in))
		case selected.IsLoss(player):
			parts = append(parts, "Every move loses against perfect play and this one is proven to lose as well.", g.line(in))
		case selected.IsSolved(player):
			parts = append(parts, "This move is proven to lead to a draw with best play.", g.line(in))
		default:
			parts = append(parts, fmt.Sprintf("The outcome of this move is not proven yet; its value lies between %.2f and %.2f.",
				selected.Pessimistic(player), selected.Optimistic(player)))
		}
	}
	if in.Flags.Has(searcher.ProofDisproofNumbers) {
		switch {
		case selected.Proof() == 0:
			parts = append(parts, "Proof-number search proved that this move forces a win.")
		case selected.Disproof() == 0:
			parts = append(parts, "Proof-number search showed that this move cannot force a win.")
		}
	}
	return strings.Join(parts, " ")
}

// line narrates the principal variation following the selected move.
func (g *Generator) line(in Input) string {
	var steps []string
	node := in.Selected
	for len(steps) < maxLineLength && node.NumChildren() > 0 {
		next := node.Select(in.FinalPolicy)
		if next == nil {
			break
		}
		if node.Mover() == in.Player {
			steps = append(steps, fmt.Sprintf("we will play %s", next.Move()))
		} else {
			steps = append(steps, fmt.Sprintf("player %d will most likely play %s", node.Mover(), next.Move()))
		}
		node = next
	}

	ending := "the rest of the line is still unexplored"
	if node.IsTerminal() {
		utility := node.State().Utilities()[in.Player]
		switch {
		case utility > 0:
			ending = "the game ends with a win"
		case utility < 0:
			ending = "the game ends with a loss"
		default:
			ending = "the game ends with a draw"
		}
	}

	if len(steps) == 0 {
		if node.IsTerminal() {
			return fmt.Sprintf("After we play this move, %s.", ending)
		}
		return ""
	}
	return fmt.Sprintf("After we play this move, %s, and then %s.", strings.Join(steps, ", then "), ending)
}

func (g *Generator) probability(in Input) string {
	mean, ok := in.Selected.MeanScore(in.Player)
	if !ok {
		return ""
	}

	var verdict string
	switch {
	case mean >= g.Thresholds.Good:
		verdict = "a clear advantage"
	case mean > g.Thresholds.Neutral:
		verdict = "a slight advantage"
	case mean >= -g.Thresholds.Neutral:
		verdict = "a roughly even position"
	case mean > -g.Thresholds.Good:
		verdict = "a slight disadvantage"
	default:
		verdict = "a clear disadvantage"
	}
	return fmt.Sprintf("We estimate a %.0f%% chance of winning after this move (%s), based on %s.",
		winProbability(mean), verdict, plural(in.Selected.Visits(), "simulation", "simulations"))
}

func winProbability(score float64) float64 {
	return (score + 1) / 2 * 100
}

func (g *Generator) scoreChange(in Input) string {
	if !in.HasPreviousValue {
		return ""
	}
	mean, ok := in.Selected.MeanScore(in.Player)
	if !ok {
		return ""
	}

	before, after := winProbability(in.PreviousValue), winProbability(mean)
	delta := mean - in.PreviousValue
	switch {
	case math.Abs(delta) < g.Thresholds.Relative:
		return fmt.Sprintf("Our position is about as good as on the previous turn (%.0f%%).", after)
	case delta > 0:
		return fmt.Sprintf("Our position has improved since the previous turn, from %.0f%% to %.0f%%.", before, after)
	default:
		return fmt.Sprintf("Our position has worsened since the previous turn, from %.0f%% to %.0f%%.", before, after)
	}
}

// counterintuitive explains why a sibling with a higher raw mean score was passed over.
func (g *Generator) counterintuitive(in Input, siblings []*searcher.Node) string {
	selectedMean, ok := in.Selected.MeanScore(in.Player)
	if !ok {
		return ""
	}

	var rival *searcher.Node
	rivalMean := selectedMean
	for _, sibling := range siblings {
		if mean, ok := sibling.MeanScore(in.Player); ok && mean > rivalMean+g.Thresholds.Epsilon {
			rival, rivalMean = sibling, mean
		}
	}
	if rival == nil {
		return ""
	}

	intro := fmt.Sprintf("Move %s had a higher average score (%.2f versus %.2f)", rival.Move(), rivalMean, selectedMean)
	if 2*rival.Visits() < in.Selected.Visits() {
		return fmt.Sprintf("%s but was explored far less (%d versus %d visits), so its estimate is less reliable.",
			intro, rival.Visits(), in.Selected.Visits())
	}
	if in.Flags.Has(searcher.AMAFStats) {
		amaf := AMAFScore(in.Player)
		if rivalAMAF, selectedAMAF := amaf(rival), amaf(in.Selected); rivalAMAF < selectedAMAF {
			return fmt.Sprintf("%s but its AMAF score was worse (%.2f versus %.2f).", intro, rivalAMAF, selectedAMAF)
		}
	}
	if in.Actions != nil {
		global := GlobalScore(in.Actions, in.Player)
		if rivalGlobal, selectedGlobal := global(rival), global(in.Selected); rivalGlobal < selectedGlobal {
			return fmt.Sprintf("%s but its MAST score was worse (%.2f versus %.2f).", intro, rivalGlobal, selectedGlobal)
		}
	}
	if in.Flags.Has(searcher.ScoreBounds) && rival.Optimistic(in.Player) < in.Selected.Pessimistic(in.Player) {
		return fmt.Sprintf("%s but the selected move is proven to be at least as good.", intro)
	}
	return fmt.Sprintf("%s but the final selection favoured the more thoroughly searched move.", intro)
}

func (g *Generator) mast(in Input, siblings []*searcher.Node) string {
	if in.Actions == nil {
		return ""
	}
	evaluate := GlobalScore(in.Actions, in.Player)
	text := g.window("MAST", evaluate, in.Selected, siblings, globalStatsWindow)
	if evaluate(in.Selected) > globalStatsThreshold {
		text += " This move generally performs well, regardless of when it is played."
	}
	return text
}

// nst reads every n-gram ending in the selected move. Unobserved lengths are skipped, longer ones may still exist.
func (g *Generator) nst(in Input, siblings []*searcher.Node) string {
	if in.NGrams == nil {
		return ""
	}
	maxN := maxNGramLength(in)
	history := in.Tree.Root().State().History()

	var parts []string
	for i, key := range searcher.NGramsEndingWith(history, in.Selected.Move(), maxN) {
		mean, ok := in.NGrams.Mean(key, in.Player)
		if !ok || mean <= globalStatsThreshold {
			continue
		}
		switch length := i + 1; length {
		case 1:
			parts = append(parts, "This move generally performs well, regardless of when it is played.")
		case 2:
			parts = append(parts, "This move generally performs well when played after the previous move.")
		default:
			parts = append(parts, fmt.Sprintf("This move generally performs well after a sequence of %d preceding moves.", length-1))
		}
	}

	window := g.window("NST", NGramScore(in.NGrams, maxN, in.Player), in.Selected, siblings, globalStatsWindow)
	return strings.Join(append([]string{window}, parts...), " ")
}

func maxNGramLength(in Input) int {
	if in.MaxNGramLength < 1 {
		return searcher.DefaultMaxNGramLength
	}
	return in.MaxNGramLength
}

func (g *Generator) amaf(in Input, siblings []*searcher.Node) string {
	if !in.Flags.Has(searcher.AMAFStats) {
		return ""
	}
	evaluate := AMAFScore(in.Player)
	text := g.window("AMAF", evaluate, in.Selected, siblings, amafWindow)
	if evaluate(in.Selected) > amafThreshold {
		text += " This move tends to perform well in game phases that follow the current state."
	}
	return text
}

// window reports the selected move's score and the siblings scoring within width of it.
func (g *Generator) window(name string, evaluate Evaluation, selected *searcher.Node, siblings []*searcher.Node, width float64) string {
	value := evaluate(selected)
	if math.IsNaN(value) {
		return fmt.Sprintf("There are no %s statistics for this move yet.", name)
	}

	similar := lo.Filter(siblings, func(c *searcher.Node, _ int) bool {
		other := evaluate(c)
		return !math.IsNaN(other) && math.Abs(other-value) <= width
	})
	if len(similar) == 0 {
		return fmt.Sprintf("%s statistics rate this move at %.2f and no other move comes close.", name, value)
	}
	return fmt.Sprintf("%s statistics rate this move at %.2f; %s scored similarly.", name, value, moveNames(similar))
}

type criterion struct {
	name     string
	evaluate Evaluation
}

func (g *Generator) outliers(in Input, children []*searcher.Node) string {
	if len(children) < 2 {
		return ""
	}

	criteria := []criterion{{"average score", MeanScore(in.Player)}}
	if in.Flags.Has(searcher.AMAFStats) {
		criteria = append(criteria, criterion{"AMAF score", AMAFScore(in.Player)})
	}
	if in.Actions != nil {
		criteria = append(criteria, criterion{"MAST score", GlobalScore(in.Actions, in.Player)})
	}
	if in.NGrams != nil {
		criteria = append(criteria, criterion{"NST score", NGramScore(in.NGrams, maxNGramLength(in), in.Player)})
	}

	var parts []string
	for _, c := range criteria {
		o := NewOutliers(children, in.Selected, c.evaluate, g.Thresholds)
		parts = append(parts, g.summarize(c.name, o, len(children)))
	}
	return strings.Join(parts, " ")
}

func (g *Generator) summarize(name string, o *Outliers, total int) string {
	others := total - 1
	muchWorse := len(o.Relative(MuchWorse))
	better := append(o.Relative(SlightlyBetter), o.Relative(MuchBetter)...)

	var parts []string
	switch {
	case 10*muchWorse >= 8*others:
		parts = append(parts, fmt.Sprintf("By %s, the selected move is much better than almost every alternative.", name))
	case len(better) > 0 && 10*len(better) <= others:
		parts = append(parts, fmt.Sprintf("By %s, only %s looked better: %s.", name, plural(len(better), "alternative", "alternatives"), moveNames(better)))
	case len(better) > 0:
		parts = append(parts, fmt.Sprintf("By %s, %s looked better than the selected move.", name, plural(len(better), "alternative", "alternatives")))
	default:
		parts = append(parts, fmt.Sprintf("By %s, no alternative looked better than the selected move.", name))
	}
	parts = append(parts, fmt.Sprintf("The selected node is considered %s by the %s criteria.", o.AbsoluteOf(o.Selected()), name))

	veryGood, good := o.Absolute(VeryGood), o.Absolute(Good)
	switch {
	case len(veryGood) == 1 || len(veryGood) > 0 && 10*len(veryGood) < total:
		parts = append(parts, formatCategory(o, VeryGood.String(), veryGood, total, name))
	case len(veryGood) == 0 && (len(good) == 1 || len(good) > 0 && 10*len(good) < total):
		parts = append(parts, formatCategory(o, Good.String(), good, total, name))
	}

	for _, category := range []Absolute{VeryGood, Good, Neutral, Bad, VeryBad} {
		if len(o.Absolute(category)) == total {
			parts = append(parts, fmt.Sprintf("All nodes are in %s category by the %s criteria.", category, name))
		}
	}

	positive := append(veryGood, good...)
	if len(positive) < total && 10*len(positive) > 8*total {
		parts = append(parts, formatCategory(o, "good and very good", positive, total, name))
		if neutral := len(o.Absolute(Neutral)); neutral > 0 {
			parts = append(parts, fmt.Sprintf("%d out of remaining moves were considered neutral.", neutral))
		}
		if len(o.Absolute(Bad))+len(o.Absolute(VeryBad)) > 0 {
			parts = append(parts, "The remaining nodes were bad or very bad.")
		}
	}

	counts := lo.Map([]Absolute{VeryGood, Good, Neutral, Bad, VeryBad}, func(a Absolute, _ int) string {
		return fmt.Sprintf("%d %s", len(o.Absolute(a)), a)
	})
	parts = append(parts, fmt.Sprintf("Overall the moves rate as %s.", strings.Join(counts, ", ")))
	return strings.Join(parts, " ")
}

func formatCategory(o *Outliers, label string, nodes []*searcher.Node, total int, name string) string {
	among := "is not among them"
	if lo.Contains(nodes, o.Selected()) {
		among = "is among them"
	}
	return fmt.Sprintf("There are %d %s moves (out of %d) by the %s criteria; the selected move %s.", len(nodes), label, total, name, among)
}

func (g *Generator) forced(in Input, siblings []*searcher.Node) string {
	average := AverageBranchingFactor(in.Tree)
	var parts []string

	own := NewForcedMoves(in.Selected, in.FinalPolicy, 0, g.ForcedDepth)
	for _, ply := range own.Plies {
		if ply.Node.IsTerminal() {
			continue
		}
		actor := "we"
		if ply.Node.Mover() != in.Player {
			actor = fmt.Sprintf("player %d", ply.Node.Mover())
		}
		switch {
		case ply.Forced():
			parts = append(parts, fmt.Sprintf("At ply %d of this line, %d of %d options for %s are already proven losing, so play there is forced.",
				ply.Depth+1, len(ply.ProvenBad), ply.BranchingFactor, actor))
		case ply.LimitedMobility(average):
			parts = append(parts, fmt.Sprintf("At ply %d of this line, %s will have only %s.",
				ply.Depth+1, actor, plural(ply.BranchingFactor, "option", "options")))
		}
	}

	for _, sibling := range siblings {
		alternative := NewForcedMoves(sibling, in.FinalPolicy, 1, g.ForcedDepth)
		for _, ply := range alternative.Plies {
			if ply.Node.IsTerminal() || ply.Node.Mover() != in.Player {
				continue
			}
			if ply.Forced() || ply.LimitedMobility(average) {
				parts = append(parts, fmt.Sprintf("Playing %s instead would leave us with few safe options later (%d of %d proven losing).",
					sibling.Move(), len(ply.ProvenBad), ply.BranchingFactor))
				break
			}
		}
	}
	return strings.Join(parts, " ")
}
