// Package intent implements the entry agent: resolving the user's request
// to a single unambiguous ticker symbol before the research fan-out
// starts, interrupting for human disambiguation when the request names a
// company with more than one listed share class.
package intent

import (
	"regexp"
	"strings"

	"github.com/finresearch/agentflow/interrupt"
)

// ambiguousCandidates maps a fragment found in the user's message
// (uppercased) to the share classes it could refer to. This is a closed,
// hand-curated table rather than a ticker-lookup service: resolving that
// ambiguity for arbitrary companies would need a real symbol directory.
var ambiguousCandidates = map[string][]interrupt.OneOfEntry{
	"GOOG": {
		{Const: "GOOG", Title: "Alphabet Inc. Class C (GOOG)"},
		{Const: "GOOGL", Title: "Alphabet Inc. Class A (GOOGL)"},
	},
	"BRK": {
		{Const: "BRK.A", Title: "Berkshire Hathaway Class A (BRK.A)"},
		{Const: "BRK.B", Title: "Berkshire Hathaway Class B (BRK.B)"},
	},
}

var tickerToken = regexp.MustCompile(`\b[A-Z]{1,5}(\.[A-Z])?\b`)

// resolution is what resolve decides for one message: either a single
// unambiguous symbol, or a set of candidates to ask the human about.
type resolution struct {
	Symbol     string
	Candidates []interrupt.OneOfEntry
}

func (r resolution) ambiguous() bool { return r.Symbol == "" && len(r.Candidates) > 0 }

// resolve inspects message for a ticker reference, returning either a
// single resolved symbol or the candidate set an ambiguous reference maps
// to. An empty resolution means no ticker reference was found at all.
func resolve(message string) resolution {
	for fragment, candidates := range ambiguousCandidates {
		if strings.Contains(strings.ToUpper(message), fragment) {
			return resolution{Candidates: candidates}
		}
	}
	if m := tickerToken.FindString(message); m != "" {
		return resolution{Symbol: m}
	}
	return resolution{}
}
