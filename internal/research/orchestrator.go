package research

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
)

var researchTracer trace.Tracer = otel.Tracer("scout/internal/research")

// Request identifies one workflow run.
type Request struct {
	RunID    string
	Topic    string
	PlanName string
}

// Dependencies carries the collaborators the orchestrator sequences. Planner,
// IntentSelector, Searcher, Answerer, Evaluator, Summarizer and Workspace are
// required; Notes and Progress are optional.
type Dependencies struct {
	Planner    Planner
	Intents    IntentSelector
	Searcher   Searcher
	Answerer   Answerer
	Evaluator  Evaluator
	Summarizer Summarizer
	Workspace  Workspace
	Notes      NoteSink
	Progress   ProgressSink
}

// Orchestrator drives the research workflow: plan generation, the plan
// confirmation loop, the per-question answer loop and report synthesis.
// Execution within a run is strictly sequential.
type Orchestrator struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	deps      Dependencies
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *config.Config, tele *telemetry.Telemetry, deps Dependencies) (*Orchestrator, error) {
	if deps.Planner == nil || deps.Intents == nil || deps.Searcher == nil ||
		deps.Answerer == nil || deps.Evaluator == nil || deps.Summarizer == nil || deps.Workspace == nil {
		return nil, fmt.Errorf("orchestrator: missing required dependency")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    log.New(os.Stdout, "[ORCHESTRATOR] ", log.LstdFlags),
		telemetry: tele,
		deps:      deps,
	}, nil
}

// Run executes the full workflow for a topic. The returned Result is tagged
// with an Outcome so callers can tell a user exit apart from a failure; the
// collaborator or persistence error, if any, is carried in Result.Err.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	startTime := time.Now()
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	ctx, span := researchTracer.Start(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("run.id", req.RunID),
			attribute.String("run.topic", req.Topic),
			attribute.String("run.plan_name", req.PlanName),
		))
	defer span.End()

	o.telemetry.RecordRunStart()
	o.logger.Printf("starting research run %s: topic=%q plan=%q", req.RunID, req.Topic, req.PlanName)

	result, questions := o.run(ctx, req)

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	span.SetAttributes(attribute.String("run.outcome", string(result.Outcome)))

	o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
		RunID:     req.RunID,
		Topic:     req.Topic,
		PlanName:  req.PlanName,
		Outcome:   string(result.Outcome),
		StartTime: startTime,
		EndTime:   time.Now(),
		Duration:  time.Since(startTime),
		Questions: questions,
		Error:     errString(result.Err),
	})
	o.updateProgress(ctx, req, "done", 0, questions, 0, string(result.Outcome))

	return result
}

func (o *Orchestrator) run(ctx context.Context, req Request) (Result, int) {
	// Phase 1: plan generation and confirmation.
	plan, res, ok := o.planPhase(ctx, req)
	if !ok {
		return res, 0
	}

	// Phase 2: answer every plan step.
	if res, ok := o.answerPhase(ctx, req, plan); !ok {
		return res, len(plan)
	}

	// Phase 3: synthesize the report.
	return o.synthesisPhase(ctx, req), len(plan)
}

// planPhase generates the initial plan, persists it and loops on user intent
// until the plan is confirmed, revised again, or abandoned. The third return
// value is false when the workflow must stop.
func (o *Orchestrator) planPhase(ctx context.Context, req Request) ([]string, Result, bool) {
	ctx, span := researchTracer.Start(ctx, "research.plan")
	defer span.End()

	o.updateProgress(ctx, req, "planning", 0, 0, 0, "")

	plan, err := o.deps.Planner.GeneratePlan(ctx, req.Topic)
	if err != nil {
		return nil, o.fail(span, fmt.Errorf("plan generation: %w", err)), false
	}
	if max := o.cfg.Research.MaxPlanSteps; len(plan) > max {
		plan = plan[:max]
	}
	if err := o.deps.Workspace.SavePlan(req.PlanName, plan); err != nil {
		return nil, o.fail(span, fmt.Errorf("persisting plan: %w", err)), false
	}
	span.AddEvent("plan.generated", trace.WithAttributes(attribute.Int("plan.steps", len(plan))))
	o.logger.Printf("plan for %q has %d steps", req.Topic, len(plan))

	for {
		o.updateProgress(ctx, req, "confirming", 0, len(plan), 0, "")
		o.logger.Printf("awaiting decision on the plan for %q (confirm / update / exit)", req.Topic)

		intent, err := o.deps.Intents.SelectIntent(ctx, IntentOptions())
		if err != nil {
			return nil, o.fail(span, fmt.Errorf("selecting intent: %w", err)), false
		}

		switch intent {
		case IntentConfirm:
			return plan, Result{}, true

		case IntentUpdate:
			current, err := o.deps.Workspace.LoadPlan(req.PlanName)
			if err != nil {
				return nil, o.fail(span, fmt.Errorf("reading plan: %w", err)), false
			}
			revised, err := o.deps.Planner.RevisePlan(ctx, req.Topic, current)
			if err != nil {
				return nil, o.fail(span, fmt.Errorf("plan revision: %w", err)), false
			}
			if max := o.cfg.Research.MaxPlanSteps; len(revised) > max {
				revised = revised[:max]
			}
			if err := o.deps.Workspace.SavePlan(req.PlanName, revised); err != nil {
				return nil, o.fail(span, fmt.Errorf("persisting revised plan: %w", err)), false
			}
			plan = revised
			o.logger.Printf("plan revised, now %d steps", len(plan))

		case IntentExit:
			// Best effort: an undeletable plan file should not mask the exit.
			if err := o.deps.Workspace.DeletePlan(req.PlanName); err != nil {
				o.logger.Printf("warning: could not delete plan file: %v", err)
			}
			o.logger.Printf("research on %q abandoned by user", req.Topic)
			return nil, Result{Outcome: OutcomeExited}, false

		default:
			return nil, o.fail(span, fmt.Errorf("unknown intent %q", intent)), false
		}
	}
}

// answerPhase runs the bounded search/answer/evaluate loop for every plan
// step, appending accepted answers to the answers document in plan order.
func (o *Orchestrator) answerPhase(ctx context.Context, req Request, plan []string) (Result, bool) {
	ctx, span := researchTracer.Start(ctx, "research.answer",
		trace.WithAttributes(attribute.Int("plan.steps", len(plan))))
	defer span.End()

	if err := o.deps.Workspace.CreateAnswers(req.PlanName, req.Topic); err != nil {
		return o.fail(span, fmt.Errorf("creating answers file: %w", err)), false
	}

	for i, question := range plan {
		o.logger.Printf("question %d/%d: %s", i+1, len(plan), question)
		answer, err := o.answerQuestion(ctx, req, question, i+1, len(plan))
		if err != nil {
			return o.fail(span, err), false
		}
		if err := o.deps.Workspace.AppendAnswer(req.PlanName, question, answer); err != nil {
			return o.fail(span, fmt.Errorf("appending answer: %w", err)), false
		}
		if o.deps.Notes != nil {
			if err := o.deps.Notes.Add(question, answer); err != nil {
				o.logger.Printf("warning: notes index rejected answer: %v", err)
			}
		}
	}
	return Result{}, true
}

// answerQuestion retries search/answer/evaluate until the evaluator accepts
// or the attempt budget runs out. Each rejection grows the history by exactly
// one (query, reasoning) pair; the query itself never changes, only the
// history handed to the searcher. On exhaustion the last answer is kept as a
// best-effort result.
func (o *Orchestrator) answerQuestion(ctx context.Context, req Request, question string, index, total int) (string, error) {
	ctx, span := researchTracer.Start(ctx, "research.question",
		trace.WithAttributes(attribute.String("question", question)))
	defer span.End()

	var history []PreviousSearch
	var lastAnswer string

	maxAttempts := o.cfg.Research.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		o.updateProgress(ctx, req, "researching", index, total, attempt, "")

		content, err := o.deps.Searcher.Search(ctx, question, history)
		if err != nil {
			return "", fmt.Errorf("web search: %w", err)
		}
		answer, err := o.deps.Answerer.Answer(ctx, content, question)
		if err != nil {
			return "", fmt.Errorf("answer extraction: %w", err)
		}
		lastAnswer = answer

		eval, err := o.deps.Evaluator.Evaluate(ctx, question, answer)
		if err != nil {
			return "", fmt.Errorf("answer evaluation: %w", err)
		}
		if eval.Good {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return answer, nil
		}

		o.telemetry.RecordAnswerRejection()
		history = append(history, PreviousSearch{Query: question, Reasoning: eval.Reasoning})
		o.logger.Printf("answer rejected (attempt %d/%d): %s", attempt, maxAttempts, eval.Reasoning)
	}

	// Retry budget exhausted: keep the best-effort answer rather than looping
	// forever on a collaborator that never says yes.
	o.telemetry.RecordGiveUp()
	span.SetAttributes(attribute.Int("attempts", maxAttempts), attribute.Bool("gave_up", true))
	o.logger.Printf("giving up on %q after %d attempts, keeping last answer", question, maxAttempts)
	return lastAnswer, nil
}

// synthesisPhase reads the accumulated answers and produces the final report.
func (o *Orchestrator) synthesisPhase(ctx context.Context, req Request) Result {
	ctx, span := researchTracer.Start(ctx, "research.synthesize")
	defer span.End()

	o.updateProgress(ctx, req, "synthesizing", 0, 0, 0, "")

	fullText, err := o.deps.Workspace.ReadAnswers(req.PlanName)
	if err != nil {
		return o.fail(span, fmt.Errorf("reading answers: %w", err))
	}
	report, err := o.deps.Summarizer.Summarize(ctx, fullText, req.Topic)
	if err != nil {
		return o.fail(span, fmt.Errorf("summarization: %w", err))
	}
	if err := o.deps.Workspace.SaveReport(req.PlanName, report); err != nil {
		return o.fail(span, fmt.Errorf("persisting report: %w", err))
	}

	o.logger.Printf("report written to %s", o.deps.Workspace.ReportPath(req.PlanName))
	return Result{Outcome: OutcomeCompleted, Report: report}
}

func (o *Orchestrator) fail(span trace.Span, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Printf("run failed: %v", err)
	return Result{Outcome: OutcomeFailed, Err: err}
}

func (o *Orchestrator) updateProgress(ctx context.Context, req Request, phase string, question, questions, attempt int, outcome string) {
	if o.deps.Progress == nil {
		return
	}
	p := Progress{
		RunID:       req.RunID,
		Topic:       req.Topic,
		PlanName:    req.PlanName,
		Phase:       phase,
		Question:    question,
		Questions:   questions,
		Attempt:     attempt,
		LastOutcome: outcome,
	}
	if err := o.deps.Progress.Update(ctx, p); err != nil {
		o.logger.Printf("warning: progress update failed: %v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
