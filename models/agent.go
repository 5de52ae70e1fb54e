package models

import "time"

// Plan is the planner agent's JSON verdict: which retrieval agents to run
// for the current query and why.
type Plan struct {
	AgentsNeeded  []string `json:"agents_needed"`
	Justification string   `json:"justification"`
}

// Verifier statuses.
const (
	VerdictApproved = "Approved"
	VerdictDenied   = "Denied"
)

// Verdict is the verifier agent's JSON evaluation of the retrieved data.
// When denied, RewrittenQuery drives the next retrieval attempt.
type Verdict struct {
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Response       string `json:"response"`
	RewrittenQuery string `json:"rewritten_query"`
}

// Citation source kinds.
const (
	CitationDocument = "document"
	CitationDataset  = "dataset"
	CitationWeb      = "web"
)

// Citation points at a source used in an answer. Deduplicated by
// (Title, URL) before rendering.
type Citation struct {
	Source string `bson:"source" json:"source"` // document, dataset, web
	Title  string `bson:"title" json:"title"`
	URL    string `bson:"url,omitempty" json:"url,omitempty"`
	Ref    string `bson:"ref,omitempty" json:"ref,omitempty"` // e.g. page or row locator
}

// Retrieval is what a retrieval agent returns for a query: a context
// summary plus the citations backing it.
type Retrieval struct {
	Agent     string     `json:"agent"`
	Summary   string     `json:"summary"`
	Citations []Citation `json:"citations,omitempty"`
}

// AgentTrace records one orchestrator step for observability and replay.
type AgentTrace struct {
	Agent    string        `bson:"agent" json:"agent"`
	Attempt  int           `bson:"attempt" json:"attempt"`
	Status   string        `bson:"status" json:"status"` // done, error, timeout, skipped
	Detail   string        `bson:"detail,omitempty" json:"detail,omitempty"`
	Duration time.Duration `bson:"duration_ns" json:"duration_ns"`
}
