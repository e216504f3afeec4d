// Package types defines core types for the Synapse agent service.
package types

// ThreadInfo holds Slack coordinates extracted from a free-text request.
// Empty fields mean the model could not find them; never persisted.
type ThreadInfo struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts"`
}

// SummaryMetadata records which thread a summary belongs to.
type SummaryMetadata struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts"`
}

// ThreadSummary stores a generated summary for a Slack thread. Cached
// entries are addressed by the exact (channel, thread_ts) pair that
// produced them and are never mutated in place.
type ThreadSummary struct {
	Summary    string          `json:"summary"`
	Model      string          `json:"model"`
	TokenCount int             `json:"token_count"`
	Metadata   SummaryMetadata `json:"metadata"`
}
