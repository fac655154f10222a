package lattice

import (
	"sort"
	"strings"
)

// Model is one entry in the mental-model lattice. Symbol is the 1-2 letter
// glyph rendered on compact cards.
type Model struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Founder  string `json:"founder"`
	Brief    string `json:"brief"`
}

var models = []Model{
	{ID: 1, Symbol: "In", Name: "Incentives", Category: "Psychology", Founder: "Charlie Munger", Brief: "Never think about anything else when you should be thinking about the power of incentives."},
	{ID: 2, Symbol: "Iv", Name: "Inversion", Category: "Decision", Founder: "Carl Jacobi", Brief: "Invert, always invert: figure out what guarantees failure and avoid it."},
	{ID: 3, Symbol: "Cc", Name: "Circle of Competence", Category: "Decision", Founder: "Warren Buffett", Brief: "Know the edge of what you actually understand and stay inside it."},
	{ID: 4, Symbol: "Mo", Name: "Margin of Safety", Category: "Engineering", Founder: "Benjamin Graham", Brief: "Build in a buffer so that being wrong does not ruin you."},
	{ID: 5, Symbol: "Ci", Name: "Compound Interest", Category: "Math", Founder: "Albert Einstein", Brief: "Small consistent gains dominate outcomes over long horizons."},
	{ID: 6, Symbol: "Pr", Name: "Probabilistic Thinking", Category: "Math", Founder: "Blaise Pascal", Brief: "Weigh decisions by expected value, not by single vivid outcomes."},
	{ID: 7, Symbol: "Ba", Name: "Base Rates", Category: "Math", Founder: "Daniel Kahneman", Brief: "Start from how things usually turn out before arguing this time is different."},
	{ID: 8, Symbol: "Op", Name: "Opportunity Cost", Category: "Economics", Founder: "Friedrich von Wieser", Brief: "The real price of anything is the best alternative you give up."},
	{ID: 9, Symbol: "Sd", Name: "Supply and Demand", Category: "Economics", Founder: "Alfred Marshall", Brief: "Prices move to balance what is offered against what is wanted."},
	{ID: 10, Symbol: "Ca", Name: "Comparative Advantage", Category: "Economics", Founder: "David Ricardo", Brief: "Specialize where your relative edge is largest, not your absolute one."},
	{ID: 11, Symbol: "So", Name: "Social Proof", Category: "Psychology", Founder: "Robert Cialdini", Brief: "People copy the crowd, especially under uncertainty: discount herd behavior."},
	{ID: 12, Symbol: "Lo", Name: "Loss Aversion", Category: "Psychology", Founder: "Daniel Kahneman", Brief: "Losses hurt roughly twice as much as equivalent gains feel good."},
	{ID: 13, Symbol: "Cb", Name: "Confirmation Bias", Category: "Psychology", Founder: "Peter Wason", Brief: "We hunt for evidence that flatters what we already believe."},
	{ID: 14, Symbol: "Cm", Name: "Commitment and Consistency", Category: "Psychology", Founder: "Robert Cialdini", Brief: "Past public commitments drag future behavior along with them."},
	{ID: 15, Symbol: "Av", Name: "Availability Heuristic", Category: "Psychology", Founder: "Amos Tversky", Brief: "Vivid and recent events feel more likely than they are."},
	{ID: 16, Symbol: "Oc", Name: "Occam's Razor", Category: "Decision", Founder: "William of Ockham", Brief: "Prefer the simplest explanation that fits the facts."},
	{ID: 17, Symbol: "Ha", Name: "Hanlon's Razor", Category: "Decision", Founder: "Robert Hanlon", Brief: "Never attribute to malice what incompetence explains."},
	{ID: 18, Symbol: "Sv", Name: "Second-Order Thinking", Category: "Decision", Founder: "Howard Marks", Brief: "Ask what happens after what happens next."},
	{ID: 19, Symbol: "Fb", Name: "Feedback Loops", Category: "Engineering", Founder: "Norbert Wiener", Brief: "Self-reinforcing loops explain runaway success and runaway failure."},
	{ID: 20, Symbol: "Re", Name: "Redundancy", Category: "Engineering", Founder: "NASA", Brief: "Critical systems need backups; single points of failure eventually fail."},
	{ID: 21, Symbol: "Cr", Name: "Critical Mass", Category: "Physics", Founder: "Enrico Fermi", Brief: "Below a threshold nothing happens; above it the reaction sustains itself."},
	{ID: 22, Symbol: "Eq", Name: "Equilibrium", Category: "Physics", Founder: "Isaac Newton", Brief: "Systems settle where opposing forces balance, until shocked."},
	{ID: 23, Symbol: "Au", Name: "Autocatalysis", Category: "Chemistry", Founder: "Wilhelm Ostwald", Brief: "Some processes produce their own catalyst and accelerate themselves."},
	{ID: 24, Symbol: "Ev", Name: "Natural Selection", Category: "Biology", Founder: "Charles Darwin", Brief: "Whatever is selected for multiplies; whatever is not disappears."},
	{ID: 25, Symbol: "Ne", Name: "Ecological Niche", Category: "Biology", Founder: "G. Evelyn Hutchinson", Brief: "Survival comes from occupying a niche competitors cannot serve as well."},
}

// All returns the catalog in lattice order.
func All() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Find looks up a model by display name. Matching is case-insensitive and
// tolerates the upstream citing a longer phrase that contains a known name,
// e.g. "Incentive-Caused Bias (Incentives)".
func Find(name string) (Model, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Model{}, false
	}
	for _, m := range models {
		if strings.ToLower(m.Name) == needle {
			return m, true
		}
	}
	for _, m := range models {
		if strings.Contains(needle, strings.ToLower(m.Name)) {
			return m, true
		}
	}
	return Model{}, false
}

// Filter returns models whose name, brief, symbol, or founder contains the
// query, optionally restricted to one category. An empty category or "All"
// matches everything.
func Filter(query, category string) []Model {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	matchAll := category == "" || strings.EqualFold(category, "All")

	result := make([]Model, 0, len(models))
	for _, m := range models {
		if !matchAll && !strings.EqualFold(m.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(m.Name), query) &&
			!strings.Contains(strings.ToLower(m.Brief), query) &&
			!strings.Contains(strings.ToLower(m.Symbol), query) &&
			!strings.Contains(strings.ToLower(m.Founder), query) {
			continue
		}
		result = append(result, m)
	}
	return result
}

// Categories returns the distinct category tags in sorted order.
func Categories() []string {
	seen := make(map[string]struct{})
	for _, m := range models {
		seen[m.Category] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for category := range seen {
		result = append(result, category)
	}
	sort.Strings(result)
	return result
}
