package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
	"github.com/holst/aegis/internal/agent/router"
	"github.com/holst/aegis/internal/agent/specialist"
	"github.com/holst/aegis/internal/agent/tools"
	"github.com/holst/aegis/internal/audit"
	"github.com/holst/aegis/internal/checkpoint"
	"github.com/holst/aegis/internal/conversation"
	"github.com/holst/aegis/internal/metrics"
)

const (
	// transientRetries bounds per-specialist retries on transient provider
	// errors (rate limits, timeouts, overload).
	transientRetries = 2

	// enhanceErrorBudget: past this many partial failures in a turn the
	// quality gate no longer attempts enhancement.
	enhanceErrorBudget = 2

	// metaSummaryThreshold is the combined team-report length (bytes) above
	// which the coordinator appends an executive summary.
	metaSummaryThreshold = 1200

	// summarizeAfterMessages: below this window size the context hint is a
	// mechanical digest instead of a model-generated summary.
	summarizeAfterMessages = 6

	// ragChunkLimit caps each retrieved context chunk fed to the RAG checks.
	ragChunkLimit = 500
)

const generalAssistantPrompt = `You are a helpful, friendly assistant for a cybersecurity advisory service. The current question is not security-related, so answer it conversationally and concisely. Be warm and direct. If the question would be better served by the security team, say so briefly.`

const directAnswerPrompt = `You are a senior cybersecurity advisor. Answer the following question directly and concisely. Use markdown where it aids readability. Stick to established facts and well-known practice; do not speculate.`

// Config assembles an Engine.
type Config struct {
	Provider provider.Provider
	Registry *tools.Registry

	// Store persists per-thread state. Nil means a fresh in-memory store.
	Store checkpoint.Store

	// Roles overrides the built-in role records. Nil uses defaults.
	Roles map[role.Role]role.Config

	// QualityGates enables the LLM-as-a-judge stage.
	QualityGates bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Auditor *audit.Logger
}

// Engine executes the advisory pipeline for one query at a time per thread.
type Engine struct {
	router      *router.Router
	agents      map[role.Role]*specialist.Agent
	provider    provider.Provider
	coordinator role.Config
	gate        *Gate
	store       checkpoint.Store
	summarizer  *conversation.Summarizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     *audit.Logger

	qualityGates bool
}

// New assembles the pipeline: one agent per specialist role, a router, and
// a quality gate, all sharing the given provider.
func New(cfg Config) (*Engine, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("workflow: provider is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("workflow: tool registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = checkpoint.NewMemoryStore()
	}
	roleCfgs := cfg.Roles
	if roleCfgs == nil {
		roleCfgs = role.DefaultConfigs()
	}

	agents := make(map[role.Role]*specialist.Agent, len(role.Specialists))
	for _, ro := range role.Specialists {
		rc, ok := roleCfgs[ro]
		if !ok {
			rc = role.DefaultConfig(ro)
		}
		p := metrics.InstrumentProvider(cfg.Provider, cfg.Metrics, string(ro))
		agents[ro] = specialist.New(rc, p, cfg.Registry, logger)
	}

	coordCfg, ok := roleCfgs[role.Coordinator]
	if !ok {
		coordCfg = role.DefaultConfig(role.Coordinator)
	}

	return &Engine{
		router:       router.New(metrics.InstrumentProvider(cfg.Provider, cfg.Metrics, "router"), logger),
		agents:       agents,
		provider:     metrics.InstrumentProvider(cfg.Provider, cfg.Metrics, "coordinator"),
		coordinator:  coordCfg,
		gate:         NewGate(metrics.InstrumentProvider(cfg.Provider, cfg.Metrics, "quality_gate"), logger),
		store:        store,
		summarizer:   conversation.NewSummarizer(metrics.InstrumentProvider(cfg.Provider, cfg.Metrics, "summarizer"), logger),
		logger:       logger.With("component", "workflow"),
		metrics:      cfg.Metrics,
		auditor:      cfg.Auditor,
		qualityGates: cfg.QualityGates,
	}, nil
}

// Run executes one turn of the pipeline and returns the resulting state.
// Partial failures (a specialist dropping out, the quality gate erroring)
// degrade inside the turn; Run fails only when no answer can be produced.
func (e *Engine) Run(ctx context.Context, query, threadID string) (*State, error) {
	state := &State{
		Query:     query,
		ThreadID:  threadID,
		StartedAt: time.Now(),
		Stage:     StageRoute,
	}
	e.auditor.LogUserQuery(threadID, query)

	snap, err := e.loadSnapshot(ctx, threadID)
	if err != nil {
		// A broken checkpoint store degrades to a fresh thread.
		e.logger.Warn("checkpoint load failed, starting fresh thread", "thread", threadID, "error", err)
		snap = &checkpoint.Snapshot{ThreadID: threadID}
	}

	for state.Stage != StageDone {
		switch state.Stage {
		case StageRoute:
			if err := e.route(ctx, state, snap); err != nil {
				return state, err
			}
		case StageGeneral:
			if err := e.generalResponse(ctx, state, snap); err != nil {
				return state, err
			}
			state.Stage = StageQuality
		case StageDirect:
			if err := e.directResponse(ctx, state, snap); err != nil {
				return state, err
			}
			state.Stage = StageQuality
		case StageConsult:
			e.consult(ctx, state, snap)
			state.Stage = StageCoordinate
		case StageCoordinate:
			e.coordinate(ctx, state)
			state.Stage = StageQuality
		case StageQuality:
			e.checkQuality(ctx, state)
			state.Stage = StageRAGQuality
		case StageRAGQuality:
			e.checkRAGQuality(ctx, state)
			state.Stage = StageDone
		default:
			return state, fmt.Errorf("workflow: unknown stage %q", state.Stage)
		}
	}

	state.CompletedAt = time.Now()
	e.persist(ctx, state, snap)

	duration := state.CompletedAt.Sub(state.StartedAt)
	e.metrics.ObserveTurn(string(state.Decision.Strategy), duration)
	e.auditor.LogTurnComplete(threadID, duration, state.ErrorCount)
	e.logger.Info("turn complete",
		"thread", threadID,
		"strategy", state.Decision.Strategy,
		"specialists", len(state.TeamResponses),
		"quality_score", state.QualityScore,
		"duration", duration,
	)
	return state, nil
}

// TeamResponse is the forgiving entry point: it always produces a
// user-facing string, mapping hard failures to category-specific fallback
// messages.
func (e *Engine) TeamResponse(ctx context.Context, query, threadID string) string {
	state, err := e.Run(ctx, query, threadID)
	if err != nil {
		e.logger.Error("turn failed", "thread", threadID, "error", err)
		e.auditor.LogError(threadID, err)
		return FallbackMessage(err)
	}
	if strings.TrimSpace(state.FinalAnswer) == "" {
		return noAnalysisMessage
	}
	return state.FinalAnswer
}

func (e *Engine) route(ctx context.Context, state *State, snap *checkpoint.Snapshot) error {
	decision, err := e.router.Route(ctx, state.Query, snap.ContextHint, snap.ActiveRole)
	if err != nil {
		return fmt.Errorf("route query: %w", err)
	}
	state.Decision = decision
	e.auditor.LogRoutingDecision(state.ThreadID, string(decision.Strategy), roleNames(decision.Roles), decision.FollowUp)

	switch decision.Strategy {
	case router.StrategyGeneralQuery:
		state.Stage = StageGeneral
	case router.StrategyDirect:
		state.Stage = StageDirect
	default:
		state.Stage = StageConsult
	}
	return nil
}

// consult fans out to every selected specialist concurrently. A failing
// specialist drops out of the merge without aborting its siblings.
func (e *Engine) consult(ctx context.Context, state *State, snap *checkpoint.Snapshot) {
	roles := state.Decision.Roles
	msgs := append(cloneHistory(snap), provider.Message{Role: provider.RoleUser, Content: state.Query})

	results := make([]*specialist.Response, len(roles))
	var mu sync.Mutex

	// Roles with no agent are recorded before dispatch so goroutines never
	// race the error counter.
	type consultTask struct {
		idx   int
		role  role.Role
		agent *specialist.Agent
	}
	tasks := make([]consultTask, 0, len(roles))
	for i, ro := range roles {
		agent, ok := e.agents[ro]
		if !ok {
			state.recordError(fmt.Errorf("no agent for role %s", ro))
			continue
		}
		tasks = append(tasks, consultTask{idx: i, role: ro, agent: agent})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			e.metrics.ConsultationStarted()
			defer e.metrics.ConsultationFinished()

			started := time.Now()
			resp, err := e.respondWithRetry(gctx, task.agent, msgs)
			if err != nil {
				e.logger.Warn("specialist failed", "role", task.role, "error", err)
				e.metrics.ObserveSpecialistFailure(string(task.role))
				e.auditor.LogSpecialistFailure(state.ThreadID, string(task.role), err)
				mu.Lock()
				state.recordError(fmt.Errorf("%s: %w", task.role, err))
				mu.Unlock()
				return nil
			}
			e.auditor.LogSpecialistResponse(state.ThreadID, string(task.role), resp.ConfidenceScore, invocationNames(resp.ToolsUsed), time.Since(started))
			for _, inv := range resp.ToolsUsed {
				e.metrics.ObserveToolCall(inv.ToolName, inv.Success)
				e.auditor.LogToolCall(state.ThreadID, string(task.role), inv.ToolName, inv.Success, inv.DurationMs)
			}
			results[task.idx] = resp
			return nil
		})
	}
	_ = g.Wait()

	var responses []*specialist.Response
	for _, r := range results {
		if r != nil {
			responses = append(responses, r)
		}
	}
	state.TeamResponses = orderBySpeakingOrder(responses)
}

// respondWithRetry retries a specialist on transient provider errors with
// exponential backoff. Permanent errors fail immediately.
func (e *Engine) respondWithRetry(ctx context.Context, agent *specialist.Agent, msgs []provider.Message) (*specialist.Response, error) {
	var resp *specialist.Response
	op := func() error {
		var err error
		resp, err = agent.Respond(ctx, msgs)
		if err != nil && !provider.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transientRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Engine) generalResponse(ctx context.Context, state *State, snap *checkpoint.Snapshot) error {
	msgs := append(cloneHistory(snap), provider.Message{Role: provider.RoleUser, Content: state.Query})
	resp, err := e.provider.Chat(ctx, generalAssistantPrompt, msgs, nil)
	if err != nil {
		return fmt.Errorf("general response: %w", err)
	}
	state.FinalAnswer = resp.Content
	return nil
}

func (e *Engine) directResponse(ctx context.Context, state *State, snap *checkpoint.Snapshot) error {
	msgs := append(cloneHistory(snap), provider.Message{Role: provider.RoleUser, Content: state.Query})
	resp, err := e.provider.Chat(ctx, directAnswerPrompt, msgs, nil)
	if err != nil {
		return fmt.Errorf("direct response: %w", err)
	}
	state.FinalAnswer = resp.Content
	return nil
}

// checkQuality runs the LLM-as-a-judge gate. General queries skip it, and
// a failing score triggers at most one enhancement pass.
func (e *Engine) checkQuality(ctx context.Context, state *State) {
	if !e.qualityGates {
		state.QualityPassed = true
		state.QualityScore = 1.0
		return
	}
	if state.Decision.Strategy == router.StrategyGeneralQuery {
		state.QualityPassed = true
		state.QualityScore = 10.0
		return
	}

	lead := leadRole(state.TeamResponses)
	verdict := e.gate.Validate(ctx, state.Query, state.FinalAnswer, lead)
	state.QualityScore = verdict.Score
	state.QualityPassed = verdict.Passed

	if !verdict.Passed && state.ErrorCount < enhanceErrorBudget {
		e.logger.Info("quality below threshold, enhancing response",
			"score", verdict.Score, "role", lead)
		state.FinalAnswer = e.gate.Enhance(ctx, state.Query, state.FinalAnswer, verdict.Feedback)
		state.Enhanced = true
		// The enhanced response is assumed to pass; re-judging would loop.
		state.QualityPassed = true
	}

	e.metrics.ObserveQuality(state.QualityScore, state.Enhanced)
	e.auditor.LogQualityVerdict(state.ThreadID, state.QualityScore, state.QualityPassed, state.Enhanced)
}

// checkRAGQuality evaluates groundedness and retrieval relevance, but only
// when specialists actually retrieved external context.
func (e *Engine) checkRAGQuality(ctx context.Context, state *State) {
	if !e.qualityGates {
		return
	}
	var chunks []string
	for _, resp := range state.TeamResponses {
		for _, inv := range resp.ToolsUsed {
			if inv.ResultText == "" {
				continue
			}
			chunk := inv.ResultText
			if len(chunk) > ragChunkLimit {
				chunk = chunk[:ragChunkLimit]
			}
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return
	}

	grounded := e.gate.CheckGroundedness(ctx, state.FinalAnswer, chunks)
	relevance := e.gate.CheckRelevance(ctx, state.Query, chunks)

	state.RAGChecked = true
	state.RAGGrounded = grounded.Grounded
	state.RAGRelevance = relevance.Score

	e.logger.Info("retrieval quality",
		"grounded", grounded.Grounded,
		"relevance", relevance.Score,
		"chunks", len(chunks),
	)
}

func (e *Engine) loadSnapshot(ctx context.Context, threadID string) (*checkpoint.Snapshot, error) {
	snap, err := e.store.Get(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return &checkpoint.Snapshot{ThreadID: threadID}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// persist appends the turn to the thread history, refreshes the continuity
// hint, and stores the snapshot. Persistence failures are logged, not
// returned: the user already has their answer.
func (e *Engine) persist(ctx context.Context, state *State, snap *checkpoint.Snapshot) {
	hist := conversation.NewHistory(0)
	hist.Restore(snap.Messages)
	hist.AddUser(state.Query)

	lead := snap.ActiveRole
	if len(state.TeamResponses) > 0 {
		lead = leadRole(state.TeamResponses)
	}
	var toolNames []string
	for _, resp := range state.TeamResponses {
		toolNames = append(toolNames, invocationNames(resp.ToolsUsed)...)
	}
	hist.AddAssistant(state.FinalAnswer, lead, toolNames, topConfidence(state.TeamResponses))

	snap.Messages = hist.ProviderMessages()
	snap.ActiveRole = lead
	snap.TurnCount++
	snap.UpdatedAt = time.Now()

	if hist.Len() > summarizeAfterMessages {
		snap.ContextHint = e.summarizer.Summarize(ctx, hist.Messages(), lead)
	} else {
		snap.ContextHint = conversation.FallbackSummary(hist.Messages())
	}

	if err := e.store.Put(ctx, state.ThreadID, snap); err != nil {
		e.logger.Warn("checkpoint store failed", "thread", state.ThreadID, "error", err)
	}
}

func cloneHistory(snap *checkpoint.Snapshot) []provider.Message {
	out := make([]provider.Message, 0, len(snap.Messages)+1)
	return append(out, snap.Messages...)
}

func roleNames(roles []role.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func invocationNames(invs []specialist.Invocation) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.ToolName
	}
	return out
}

func topConfidence(responses []*specialist.Response) float64 {
	var top float64
	for _, r := range responses {
		if r.ConfidenceScore > top {
			top = r.ConfidenceScore
		}
	}
	return top
}
