// Package tracking records tool and LLM usage as an append-only run log.
package tracking

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker receives usage reports from tool groups and the LLM client.
// Fire-and-forget: implementations must never fail the caller.
type Tracker interface {
	LogToolUsage(name string, input, output map[string]any, duration time.Duration, status string)
	LogLLMUsage(model, prompt, response string, tokenCount int, duration time.Duration)
}

// Record is one usage entry in the run log.
type Record struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"` // tool_usage | llm_usage
	Experiment string    `json:"experiment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`

	// tool_usage fields
	Tool       string         `json:"tool,omitempty"`
	Status     string         `json:"status,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	InputSize  int            `json:"input_size,omitempty"`
	OutputSize int            `json:"output_size,omitempty"`

	// llm_usage fields
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	Response       string `json:"response,omitempty"`
	TokenCount     int    `json:"token_count,omitempty"`
	PromptLength   int    `json:"prompt_length,omitempty"`
	ResponseLength int    `json:"response_length,omitempty"`
}

// ToolStats aggregates invocations of one tool since process start.
type ToolStats struct {
	Invocations int `json:"invocations"`
	Errors      int `json:"errors"`
	CacheHits   int `json:"cache_hits"`
}

// LLMStats aggregates model calls since process start.
type LLMStats struct {
	Calls       int `json:"calls"`
	TotalTokens int `json:"total_tokens"`
}

// Stats is a snapshot for the stats endpoint. TotalRecords spans the whole
// run log on disk; the tool and LLM counters reset on restart.
type Stats struct {
	Experiment   string               `json:"experiment"`
	TotalRecords int                  `json:"total_records"`
	Tools        map[string]ToolStats `json:"tools"`
	LLM          LLMStats             `json:"llm"`
}

// FileTracker appends records to a sharded JSONL run log and keeps
// in-memory aggregates for the stats endpoint.
type FileTracker struct {
	experiment string
	writer     *Writer

	mu    sync.Mutex
	tools map[string]*ToolStats
	llm   LLMStats
}

type FileTrackerConfig struct {
	Dir                string
	Experiment         string
	MaxRecordsPerShard int
}

// NewFileTracker opens (or resumes) the run log under cfg.Dir.
func NewFileTracker(cfg FileTrackerConfig) (*FileTracker, error) {
	if cfg.Experiment == "" {
		cfg.Experiment = "synapse"
	}
	w, err := OpenWriter(WriterConfig{
		Dir:                cfg.Dir,
		MaxRecordsPerShard: cfg.MaxRecordsPerShard,
		Append:             true,
	})
	if err != nil {
		return nil, err
	}
	return &FileTracker{
		experiment: cfg.Experiment,
		writer:     w,
		tools:      make(map[string]*ToolStats),
	}, nil
}

// LogToolUsage appends one tool_usage record. Internal failures are logged
// and swallowed so tracking never breaks the operation it observes.
func (t *FileTracker) LogToolUsage(name string, input, output map[string]any, duration time.Duration, status string) {
	rec := Record{
		RunID:      uuid.NewString(),
		Kind:       "tool_usage",
		Experiment: t.experiment,
		Timestamp:  time.Now(),
		DurationMS: duration.Milliseconds(),
		Tool:       name,
		Status:     status,
		Input:      input,
		Output:     output,
		InputSize:  jsonSize(input),
		OutputSize: jsonSize(output),
	}
	t.append(rec)

	t.mu.Lock()
	stats, ok := t.tools[name]
	if !ok {
		stats = &ToolStats{}
		t.tools[name] = stats
	}
	stats.Invocations++
	switch status {
	case "error":
		stats.Errors++
	case "cache_hit":
		stats.CacheHits++
	}
	t.mu.Unlock()
}

// LogLLMUsage appends one llm_usage record with the verbatim prompt and
// response text.
func (t *FileTracker) LogLLMUsage(model, prompt, response string, tokenCount int, duration time.Duration) {
	rec := Record{
		RunID:          uuid.NewString(),
		Kind:           "llm_usage",
		Experiment:     t.experiment,
		Timestamp:      time.Now(),
		DurationMS:     duration.Milliseconds(),
		Model:          model,
		Prompt:         prompt,
		Response:       response,
		TokenCount:     tokenCount,
		PromptLength:   len(prompt),
		ResponseLength: len(response),
	}
	t.append(rec)

	t.mu.Lock()
	t.llm.Calls++
	t.llm.TotalTokens += tokenCount
	t.mu.Unlock()
}

func (t *FileTracker) append(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[tracker] marshal record: %v", err)
		return
	}
	if err := t.writer.AppendJSONLine(data); err != nil {
		log.Printf("[tracker] append record: %v", err)
	}
}

// Stats returns an aggregate snapshot.
func (t *FileTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	tools := make(map[string]ToolStats, len(t.tools))
	for name, s := range t.tools {
		tools[name] = *s
	}
	return Stats{
		Experiment:   t.experiment,
		TotalRecords: t.writer.TotalRecords(),
		Tools:        tools,
		LLM:          t.llm,
	}
}

// Close flushes the run log.
func (t *FileTracker) Close() error {
	return t.writer.Close()
}

func jsonSize(m map[string]any) int {
	if len(m) == 0 {
		return 0
	}
	data, err := json.Marshal(m)
	if err != nil {
		return 0
	}
	return len(data)
}

// NopTracker discards everything. Default for tests.
type NopTracker struct{}

func (NopTracker) LogToolUsage(string, map[string]any, map[string]any, time.Duration, string) {}

func (NopTracker) LogLLMUsage(string, string, string, int, time.Duration) {}
