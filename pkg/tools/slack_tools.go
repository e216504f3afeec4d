// Package tools provides the Slack and GitHub tool groups for the Synapse agent.
package tools

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/synapsehq/synapse/pkg/llm"
	"github.com/synapsehq/synapse/pkg/slack"
	"github.com/synapsehq/synapse/pkg/tracking"
	"github.com/synapsehq/synapse/pkg/types"
)

// SlackAPI is the slice of the Slack client the messaging tools depend on.
type SlackAPI interface {
	GetThreadMessages(ctx context.Context, channel, threadTS string) ([]slack.Message, error)
	GetChannelHistory(ctx context.Context, channel string, limit int) ([]slack.Message, error)
	PostMessage(ctx context.Context, channel, text, threadTS string) (*types.PostedMessage, error)
}

// Summarizer produces thread summaries.
type Summarizer interface {
	SummarizeThread(ctx context.Context, messages []llm.ThreadMessage, model string) (*types.ThreadSummary, error)
}

// SummaryCache stores thread summaries between requests.
type SummaryCache interface {
	GetThreadSummary(ctx context.Context, channel, threadTS string) (*types.ThreadSummary, error)
	SetThreadSummary(ctx context.Context, channel, threadTS string, summary *types.ThreadSummary) error
}

// MessagingToolset groups the Slack-facing agent tools.
type MessagingToolset struct {
	slack   SlackAPI
	llm     Summarizer
	cache   SummaryCache
	tracker tracking.Tracker
}

// NewMessagingToolset creates the messaging tool group.
func NewMessagingToolset(slackClient SlackAPI, summarizer Summarizer, cache SummaryCache, tracker tracking.Tracker) *MessagingToolset {
	if tracker == nil {
		tracker = tracking.NopTracker{}
	}
	return &MessagingToolset{
		slack:   slackClient,
		llm:     summarizer,
		cache:   cache,
		tracker: tracker,
	}
}

// SummarizeThread produces an LLM summary of a Slack thread. A cached
// summary for the same (channel, threadTS) pair is returned without any
// Slack or LLM calls.
func (mt *MessagingToolset) SummarizeThread(ctx context.Context, channel, threadTS, model string) (*types.ThreadSummary, error) {
	start := time.Now()
	input := map[string]any{"channel": channel, "thread_ts": threadTS}

	cached, err := mt.cache.GetThreadSummary(ctx, channel, threadTS)
	if err != nil {
		// Cache failures degrade to a miss.
		log.Printf("[tools] summary cache lookup failed: %v", err)
	}
	if cached != nil {
		mt.tracker.LogToolUsage("summarize_thread", input, map[string]any{
			"summary": cached.Summary,
			"cached":  true,
		}, time.Since(start), "cache_hit")
		return cached, nil
	}

	msgs, err := mt.slack.GetThreadMessages(ctx, channel, threadTS)
	if err != nil {
		return nil, logFailure(mt.tracker, "summarize_thread", input, start, err)
	}
	thread := make([]llm.ThreadMessage, 0, len(msgs))
	for _, m := range msgs {
		thread = append(thread, llm.ThreadMessage{User: m.User, Text: m.Text})
	}

	summary, err := mt.llm.SummarizeThread(ctx, thread, model)
	if err != nil {
		return nil, logFailure(mt.tracker, "summarize_thread", input, start, err)
	}
	summary.Metadata = types.SummaryMetadata{Channel: channel, ThreadTS: threadTS}

	if err := mt.cache.SetThreadSummary(ctx, channel, threadTS, summary); err != nil {
		log.Printf("[tools] summary cache write failed: %v", err)
	}

	mt.tracker.LogToolUsage("summarize_thread", input, map[string]any{
		"summary": summary.Summary,
		"cached":  false,
	}, time.Since(start), "success")
	return summary, nil
}

// MonitorChannel scans recent channel history for messages mentioning any
// of the keywords. Matching is case-insensitive substring; source order is
// preserved.
func (mt *MessagingToolset) MonitorChannel(ctx context.Context, channel string, keywords []string, limit int) ([]slack.Message, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 100
	}
	input := map[string]any{"channel": channel, "keywords": keywords, "limit": limit}

	history, err := mt.slack.GetChannelHistory(ctx, channel, limit)
	if err != nil {
		return nil, logFailure(mt.tracker, "monitor_channel", input, start, err)
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	var matched []slack.Message
	for _, msg := range history {
		text := strings.ToLower(msg.Text)
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				matched = append(matched, msg)
				break
			}
		}
	}

	mt.tracker.LogToolUsage("monitor_channel", input, map[string]any{
		"matched": len(matched),
	}, time.Since(start), "success")
	return matched, nil
}

// PostSummary posts a summary as a threaded reply.
func (mt *MessagingToolset) PostSummary(ctx context.Context, channel, threadTS, summary string) (*types.PostedMessage, error) {
	start := time.Now()
	input := map[string]any{"channel": channel, "thread_ts": threadTS}

	posted, err := mt.slack.PostMessage(ctx, channel, "📝 *Thread Summary*\n"+summary, threadTS)
	if err != nil {
		return nil, logFailure(mt.tracker, "post_summary", input, start, err)
	}

	mt.tracker.LogToolUsage("post_summary", input, map[string]any{
		"ts": posted.TS,
	}, time.Since(start), "success")
	return posted, nil
}

// logFailure records a failed tool invocation and passes the error through.
func logFailure(tracker tracking.Tracker, tool string, input map[string]any, start time.Time, err error) error {
	tracker.LogToolUsage(tool, input, map[string]any{"error": err.Error()}, time.Since(start), "error")
	return err
}
