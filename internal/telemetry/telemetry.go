package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/scout/config"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_runs_started_total",
		Help: "Research workflow runs started",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_runs_finished_total",
		Help: "Research workflow runs finished, by outcome",
	}, []string{"outcome"})
	searchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_search_requests_total",
		Help: "Web search rounds executed",
	})
	answerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_answer_rejections_total",
		Help: "Candidate answers rejected by the evaluator",
	})
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_llm_tokens_total",
		Help: "LLM tokens consumed, by model and direction",
	}, []string{"model", "direction"})
)

// Telemetry provides monitoring and cost tracking for research runs
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds aggregate run counters
type Metrics struct {
	mu sync.RWMutex

	TotalRuns          int64
	CompletedRuns      int64
	ExitedRuns         int64
	FailedRuns         int64
	AverageRunDuration time.Duration

	SearchRounds     map[string]int64 // provider -> rounds
	AnswerRejections int64
	QuestionsGivenUp int64

	LLMRequests   map[string]int64 // model -> requests
	LLMTokensUsed map[string]int64 // model -> tokens
}

// CostTracker tracks LLM spend per model and operation
type CostTracker struct {
	mu sync.RWMutex

	ModelCosts     map[string]float64
	OperationCosts map[string]float64
	TotalCost      float64
}

// RunEvent records one complete workflow run
type RunEvent struct {
	RunID     string
	Topic     string
	PlanName  string
	Outcome   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Questions int
	Error     string
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			SearchRounds:  make(map[string]int64),
			LLMRequests:   make(map[string]int64),
			LLMTokensUsed: make(map[string]int64),
		},
		costTracker: &CostTracker{
			ModelCosts:     make(map[string]float64),
			OperationCosts: make(map[string]float64),
		},
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startPeriodicLogs()
	}

	return t
}

// RecordRunStart marks a workflow run as started.
func (t *Telemetry) RecordRunStart() {
	runsStarted.Inc()
	t.metrics.mu.Lock()
	t.metrics.TotalRuns++
	t.metrics.mu.Unlock()
}

// RecordRunEvent records a finished workflow run.
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	runsFinished.WithLabelValues(event.Outcome).Inc()

	t.metrics.mu.Lock()
	switch event.Outcome {
	case "completed":
		t.metrics.CompletedRuns++
	case "exited":
		t.metrics.ExitedRuns++
	default:
		t.metrics.FailedRuns++
	}
	finished := t.metrics.CompletedRuns + t.metrics.ExitedRuns + t.metrics.FailedRuns
	if finished > 0 {
		total := t.metrics.AverageRunDuration*time.Duration(finished-1) + event.Duration
		t.metrics.AverageRunDuration = total / time.Duration(finished)
	}
	t.metrics.mu.Unlock()

	if t.config.Enabled {
		t.logger.Printf("run %s (%s) finished: outcome=%s questions=%d duration=%s",
			event.RunID, event.PlanName, event.Outcome, event.Questions, event.Duration)
	}
}

// RecordSearchRound records one search round against a provider.
func (t *Telemetry) RecordSearchRound(provider string) {
	searchRequests.Inc()
	t.metrics.mu.Lock()
	t.metrics.SearchRounds[provider]++
	t.metrics.mu.Unlock()
}

// RecordAnswerRejection records an evaluator rejection.
func (t *Telemetry) RecordAnswerRejection() {
	answerRejections.Inc()
	t.metrics.mu.Lock()
	t.metrics.AnswerRejections++
	t.metrics.mu.Unlock()
}

// RecordGiveUp records a question that exhausted its retry budget.
func (t *Telemetry) RecordGiveUp() {
	t.metrics.mu.Lock()
	t.metrics.QuestionsGivenUp++
	t.metrics.mu.Unlock()
}

// RecordLLMUsage records token consumption and cost for one completion.
func (t *Telemetry) RecordLLMUsage(model, operation string, inputTokens, outputTokens int64, cost float64) {
	llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))

	t.metrics.mu.Lock()
	t.metrics.LLMRequests[model]++
	t.metrics.LLMTokensUsed[model] += inputTokens + outputTokens
	t.metrics.mu.Unlock()

	if t.config.CostTracking {
		t.costTracker.mu.Lock()
		t.costTracker.ModelCosts[model] += cost
		t.costTracker.OperationCosts[operation] += cost
		t.costTracker.TotalCost += cost
		t.costTracker.mu.Unlock()
	}
}

// Snapshot returns a copy of the aggregate metrics for reporting.
func (t *Telemetry) Snapshot() Metrics {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()
	snap := Metrics{
		TotalRuns:          t.metrics.TotalRuns,
		CompletedRuns:      t.metrics.CompletedRuns,
		ExitedRuns:         t.metrics.ExitedRuns,
		FailedRuns:         t.metrics.FailedRuns,
		AverageRunDuration: t.metrics.AverageRunDuration,
		AnswerRejections:   t.metrics.AnswerRejections,
		QuestionsGivenUp:   t.metrics.QuestionsGivenUp,
		SearchRounds:       make(map[string]int64, len(t.metrics.SearchRounds)),
		LLMRequests:        make(map[string]int64, len(t.metrics.LLMRequests)),
		LLMTokensUsed:      make(map[string]int64, len(t.metrics.LLMTokensUsed)),
	}
	for k, v := range t.metrics.SearchRounds {
		snap.SearchRounds[k] = v
	}
	for k, v := range t.metrics.LLMRequests {
		snap.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		snap.LLMTokensUsed[k] = v
	}
	return snap
}

// TotalCost returns the accumulated LLM spend.
func (t *Telemetry) TotalCost() float64 {
	t.costTracker.mu.RLock()
	defer t.costTracker.mu.RUnlock()
	return t.costTracker.TotalCost
}

func (t *Telemetry) startPeriodicLogs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		snap := t.Snapshot()
		t.logger.Printf("runs: total=%d completed=%d exited=%d failed=%d rejections=%d cost=$%.4f",
			snap.TotalRuns, snap.CompletedRuns, snap.ExitedRuns, snap.FailedRuns,
			snap.AnswerRejections, t.TotalCost())
	}
}
