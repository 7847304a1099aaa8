package models

// AgentResult is the outcome of an agent run on one email
type AgentResult struct {
	EmailID string   `json:"email_id"`
	Steps   []string `json:"steps"`
	Output  string   `json:"output"`
	Error   string   `json:"error,omitempty"`
}
