// Package workflow runs the advisory pipeline: route a query, consult
// specialists, merge their analyses, and gate the result on quality.
package workflow

import (
	"time"

	"github.com/holst/aegis/internal/agent/router"
	"github.com/holst/aegis/internal/agent/specialist"
)

// Stage identifies a pipeline step. The executor is an explicit state
// machine: each stage decides its successor, and every path ends at
// StageDone.
type Stage string

const (
	StageRoute      Stage = "route"
	StageConsult    Stage = "consult"
	StageDirect     Stage = "direct"
	StageGeneral    Stage = "general"
	StageCoordinate Stage = "coordinate"
	StageQuality    Stage = "quality"
	StageRAGQuality Stage = "rag_quality"
	StageDone       Stage = "done"
)

// State accumulates one turn's progress through the pipeline.
type State struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`

	Decision *router.Decision `json:"decision,omitempty"`

	// TeamResponses holds specialist analyses in speaking order,
	// regardless of which specialist finished first.
	TeamResponses []*specialist.Response `json:"team_responses,omitempty"`

	FinalAnswer string `json:"final_answer"`

	QualityScore  float64 `json:"quality_score"`
	QualityPassed bool    `json:"quality_passed"`
	Enhanced      bool    `json:"enhanced"`

	RAGChecked   bool    `json:"rag_checked"`
	RAGGrounded  bool    `json:"rag_grounded"`
	RAGRelevance float64 `json:"rag_relevance"`

	// ErrorCount tracks partial failures that did not abort the turn.
	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Stage Stage `json:"stage"`
}

// recordError notes a partial failure without aborting the turn.
func (s *State) recordError(err error) {
	s.ErrorCount++
	s.LastError = err.Error()
}
