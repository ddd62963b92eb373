package domain

// AgentDescriptor identifies one specialist agent in the static catalog.
// Loaded once at startup; read-only at runtime.
type AgentDescriptor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Path        string   `json:"path"` // routable path on the upstream completion service
	Tools       []string `json:"tools,omitempty"`
	Decisions   []string `json:"decisions,omitempty"` // decision vocabulary, e.g. approve/deny
	Keywords    []string `json:"keywords,omitempty"`  // intent keywords for routing
	Prompt      string   `json:"prompt,omitempty"`    // default instructions
}
