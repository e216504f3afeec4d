package llm

import (
	"fmt"
	"strings"
)

// System prompts, one per operation.
const (
	systemSummarize = "You are a helpful assistant that summarizes Slack threads."
	systemExtract   = "You are a helpful assistant that extracts Slack information."
	systemTriage    = "You are a helpful assistant that triages GitHub issues."
	systemReview    = "You are a helpful assistant that reviews pull requests."
)

// buildSummarizePrompt renders the thread as "{user}: {text}" lines inside
// the summary template. Messages without a user show as "Unknown".
func buildSummarizePrompt(messages []ThreadMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		user := msg.User
		if user == "" {
			user = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", user, msg.Text))
	}

	return fmt.Sprintf(`Please provide a concise summary of the following Slack thread discussion.
Focus on key points, decisions made, and action items. Format the summary with clear sections.

Thread content:
%s

Summary:`, strings.Join(lines, "\n"))
}

func buildExtractPrompt(message string) string {
	return fmt.Sprintf(`Extract the Slack channel ID and thread timestamp from the following message.
If not found, return null for those fields.

Message: %s

Return the result as a JSON object with 'channel' and 'thread_ts' fields.`, message)
}

func buildTriagePrompt(issuesBlock string) string {
	return fmt.Sprintf(`Analyze these GitHub issues and suggest:
1. Priority level (high/medium/low)
2. Appropriate labels
3. Suggested assignees
4. Brief summary of action needed

Issues:
%s

Return a JSON array of objects with fields:
- issue_number
- priority
- suggested_labels
- suggested_assignees
- action_summary`, issuesBlock)
}

func buildReviewPrompt(prBlock string) string {
	return fmt.Sprintf(`Review this pull request and provide:
1. Code quality assessment
2. Potential issues or concerns
3. Suggestions for improvement
4. Overall recommendation (approve/request changes)

PR Details:
%s

Return a JSON object with fields:
- assessment
- issues
- suggestions
- recommendation`, prBlock)
}
