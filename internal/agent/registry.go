package agent

import (
	"errors"
	"fmt"
	"sort"

	"github.com/verityai/caseflow/internal/domain"
)

// ErrUnknownAgent is returned when a requested agent id is not in the catalog.
var ErrUnknownAgent = errors.New("agent: unknown agent") //nolint:gochecknoglobals // sentinel error

// HubAgentID is the generic fallback agent used when no specialist matches.
const HubAgentID = "hub"

// Registry is the static agent catalog. Populated once at startup and
// read-only afterwards, so it is safe to share without locking.
type Registry struct {
	agents map[string]*domain.AgentDescriptor
}

// NewRegistry returns a registry pre-loaded with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{agents: make(map[string]*domain.AgentDescriptor)}
	for _, d := range builtinCatalog() {
		r.agents[d.ID] = d
	}
	return r
}

// Register adds or replaces a descriptor. Must only be called during startup,
// before the registry is shared.
func (r *Registry) Register(d *domain.AgentDescriptor) {
	r.agents[d.ID] = d
}

// Get returns the descriptor for an agent id.
func (r *Registry) Get(id string) (*domain.AgentDescriptor, error) {
	d, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent.Registry.Get(%q): %w", id, ErrUnknownAgent)
	}
	return d, nil
}

// List returns all descriptors sorted by id.
func (r *Registry) List() []*domain.AgentDescriptor {
	out := make([]*domain.AgentDescriptor, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func builtinCatalog() []*domain.AgentDescriptor {
	return []*domain.AgentDescriptor{
		{
			ID:          "claims",
			DisplayName: "Claims Specialist",
			Path:        "/agents/claims",
			Tools:       []string{"policy_lookup", "coverage_check", "fraud_signals"},
			Decisions:   []string{"approve", "deny", "request_info", "escalate"},
			Keywords: []string{
				"claim", "claims", "policy", "coverage", "deductible",
				"damage", "accident", "injury", "reimbursement", "insured",
			},
			Prompt: "You are a claims processing specialist. Answer questions about claim documents, coverage and processing state.",
		},
		{
			ID:          "tenders",
			DisplayName: "Tender Analyst",
			Path:        "/agents/tenders",
			Tools:       []string{"requirement_search", "compliance_check", "bid_scoring"},
			Decisions:   []string{"go", "no_go", "clarify"},
			Keywords: []string{
				"tender", "tenders", "bid", "rfp", "procurement",
				"proposal", "deadline", "requirement", "compliance", "award",
			},
			Prompt: "You are a tender analysis specialist. Answer questions about tender documents, requirements and bid viability.",
		},
		{
			ID:          HubAgentID,
			DisplayName: "Assistant",
			Path:        "/agents/hub",
			Prompt:      "You are a general assistant for a document processing platform.",
		},
	}
}
