package hermes

import "time"

const (
	SubjectSummaryCreated       = "scribe.summary.created"
	SubjectSummaryPublished     = "scribe.summary.published"
	SubjectSummaryPublishFailed = "scribe.summary.publish_failed"
	SubjectAgentRegistered      = "scribe.agent.registered"
)

// SummaryCreated is emitted once per session, when its summary is first stored.
type SummaryCreated struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

type SummaryPublished struct {
	SessionID string    `json:"session_id"`
	PageID    string    `json:"page_id"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// SummaryPublishFailed carries the created page and failed batch when the
// failure happened after the page was created, so the upload can be resumed.
type SummaryPublishFailed struct {
	SessionID   string    `json:"session_id"`
	PageID      string    `json:"page_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	FailedBatch int       `json:"failed_batch,omitempty"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

type AgentRegistered struct {
	Port      int       `json:"port"`
	Model     string    `json:"model"`
	Notion    bool      `json:"notion"`
	Timestamp time.Time `json:"timestamp"`
}
