package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityai/caseflow/internal/agent"
	"github.com/verityai/caseflow/internal/domain"
)

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	t.Run("built-in agents present", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()

		for _, id := range []string{"claims", "tenders", agent.HubAgentID} {
			d, err := reg.Get(id)
			require.NoError(t, err)
			assert.Equal(t, id, d.ID)
			assert.NotEmpty(t, d.Path)
			assert.NotEmpty(t, d.Prompt)
		}
	})

	t.Run("unknown agent returns ErrUnknownAgent", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()

		d, err := reg.Get("nonexistent")

		require.Error(t, err)
		assert.Nil(t, d)
		assert.ErrorIs(t, err, agent.ErrUnknownAgent)
	})

	t.Run("specialists carry tools and decisions", func(t *testing.T) {
		t.Parallel()

		reg := agent.NewRegistry()

		claims, err := reg.Get("claims")
		require.NoError(t, err)
		assert.Contains(t, claims.Tools, "policy_lookup")
		assert.Contains(t, claims.Decisions, "approve")

		tenders, err := reg.Get("tenders")
		require.NoError(t, err)
		assert.Contains(t, tenders.Tools, "bid_scoring")
		assert.Contains(t, tenders.Decisions, "no_go")
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()
	reg.Register(&domain.AgentDescriptor{
		ID:          "contracts",
		DisplayName: "Contract Reviewer",
		Path:        "/agents/contracts",
		Keywords:    []string{"contract"},
	})

	d, err := reg.Get("contracts")

	require.NoError(t, err)
	assert.Equal(t, "Contract Reviewer", d.DisplayName)
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()

	list := reg.List()

	require.Len(t, list, 3)
	// Sorted by id.
	assert.Equal(t, "claims", list[0].ID)
	assert.Equal(t, agent.HubAgentID, list[1].ID)
	assert.Equal(t, "tenders", list[2].ID)
}
