package agent

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Router resolves which agent should answer a user message. A routing miss is
// not an error: anything below the confidence threshold goes to the hub agent.
type Router struct {
	registry  *Registry
	threshold float64
}

func NewRouter(registry *Registry, threshold float64) *Router {
	return &Router{registry: registry, threshold: threshold}
}

// Resolve classifies intent against the catalog keywords and returns the best
// matching agent id, falling back to the hub agent. One keyword hit yields
// confidence 0.5, each further hit adds 0.25 up to 1.0, so the default
// threshold of 0.5 routes on a single domain keyword.
func (r *Router) Resolve(text string) string {
	words := tokenize(text)
	if len(words) == 0 {
		return HubAgentID
	}

	bestID := HubAgentID
	bestScore := 0.0

	for _, d := range r.registry.List() {
		hits := 0
		for _, kw := range d.Keywords {
			if _, ok := words[kw]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		score := 0.5 + 0.25*float64(hits-1)
		if score > 1 {
			score = 1
		}

		if score > bestScore {
			bestScore = score
			bestID = d.ID
		}
	}

	if bestScore < r.threshold {
		return HubAgentID
	}

	log.Debug().Str("agent_id", bestID).Float64("score", bestScore).Msg("agent.Router: resolved intent")
	return bestID
}

func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	return words
}
