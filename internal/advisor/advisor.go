package advisor

import (
	"context"
	"strings"
)

// AdviceResult is the normalized answer shape the rest of the app depends
// on. Every field is guaranteed non-empty after Normalize; Models may be
// empty but is never nil.
type AdviceResult struct {
	Summary        string           `json:"summary"`
	Models         []ModelReference `json:"models"`
	Synthesis      string           `json:"synthesis"`
	ContrarianNote string           `json:"contrarian_note"`
}

// ModelReference is one mental model cited in an answer.
type ModelReference struct {
	Label       string `json:"label"`
	ShortCode   string `json:"short_code"`
	Category    string `json:"category"`
	Attribution string `json:"attribution"`
	Note        string `json:"note"`
}

// Client produces raw advisory text for a question. The raw response carries
// no schema guarantee; callers run it through Normalize.
type Client interface {
	Advise(ctx context.Context, question string) (string, error)
}

// MockClient answers without calling the hosted model. Used in tests and
// when ADVISOR_USE_MOCK is set for local development.
type MockClient struct {
	Raw string
	Err error
}

func (m MockClient) Advise(_ context.Context, question string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if strings.TrimSpace(m.Raw) != "" {
		return m.Raw, nil
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = "your situation"
	}
	return `{
		"advice": "Mock counsel: before acting on ` + jsonEscape(question) + `, write down what would make this decision obviously stupid, then avoid that.",
		"models": [
			{"symbol": "In", "name": "Incentives", "category": "Psychology", "founder": "Charlie Munger", "brief": "Ask who profits from each outcome before trusting any advice you were given."},
			{"symbol": "Iv", "name": "Inversion", "category": "Decision", "founder": "Carl Jacobi", "brief": "List the ways this goes badly and work backwards from them."}
		],
		"lollapalooza": "Incentive pressure and herd behavior compound: when both push the same way the result is far larger than either alone.",
		"inversion": "Do not ask how to succeed here; ask what would guarantee failure and make those moves impossible."
	}`, nil
}

func jsonEscape(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return replacer.Replace(value)
}
