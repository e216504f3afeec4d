// Package types defines core types for the Synapse agent service.
package types

// Envelope status values.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusNotImplemented = "not_implemented"
)

// Envelope is the uniform response contract returned by the agent router.
type Envelope struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// TriageSuggestion is one element of the triage plan the model returns for
// a batch of issues.
type TriageSuggestion struct {
	IssueNumber        int      `json:"issue_number"`
	Priority           string   `json:"priority"` // high, medium, low
	SuggestedLabels    []string `json:"suggested_labels"`
	SuggestedAssignees []string `json:"suggested_assignees"`
	ActionSummary      string   `json:"action_summary"`
}

// TriageResult reports a completed triage pass over a repository.
type TriageResult struct {
	Status        string             `json:"status"`
	IssuesTriaged int                `json:"issues_triaged"`
	Suggestions   []TriageSuggestion `json:"suggestions"`
}

// Review is the structured pull request review the model returns.
type Review struct {
	Assessment     string   `json:"assessment"`
	Issues         []string `json:"issues"`
	Suggestions    []string `json:"suggestions"`
	Recommendation string   `json:"recommendation"` // approve, request changes
}

// ReviewResult reports a completed review of a single pull request.
type ReviewResult struct {
	Status   string  `json:"status"`
	PRNumber int     `json:"pr_number"`
	Review   *Review `json:"review"`
}

// PostedMessage identifies a message created in Slack.
type PostedMessage struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// Comment identifies a comment created on a GitHub issue or pull request.
type Comment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}
