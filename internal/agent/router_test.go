package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verityai/caseflow/internal/agent"
)

func TestRouter_Resolve(t *testing.T) {
	t.Parallel()

	router := agent.NewRouter(agent.NewRegistry(), 0.5)

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "single claims keyword routes to claims",
			text: "what is the status of my claim?",
			want: "claims",
		},
		{
			name: "multiple claims keywords route to claims",
			text: "does the policy coverage include water damage?",
			want: "claims",
		},
		{
			name: "tender keywords route to tenders",
			text: "summarize the rfp compliance requirements",
			want: "tenders",
		},
		{
			name: "no domain keywords fall back to hub",
			text: "hello, what can you do?",
			want: agent.HubAgentID,
		},
		{
			name: "empty text falls back to hub",
			text: "",
			want: agent.HubAgentID,
		},
		{
			name: "punctuation and case are ignored",
			text: "CLAIM!!! denied?",
			want: "claims",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, router.Resolve(tt.text))
		})
	}
}

func TestRouter_ThresholdFallsBackToHub(t *testing.T) {
	t.Parallel()

	// A single keyword hit scores 0.5; a stricter threshold needs two.
	router := agent.NewRouter(agent.NewRegistry(), 0.75)

	assert.Equal(t, agent.HubAgentID, router.Resolve("my claim"))
	assert.Equal(t, "claims", router.Resolve("my claim under this policy"))
}

func TestRouter_MostHitsWins(t *testing.T) {
	t.Parallel()

	router := agent.NewRouter(agent.NewRegistry(), 0.5)

	// Two tender keywords beat one claims keyword.
	got := router.Resolve("the tender bid mentions an insurance claim")

	assert.Equal(t, "tenders", got)
}
