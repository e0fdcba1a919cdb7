package research

import (
	"context"
)

// Intent is the classified decision governing the plan confirmation loop.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentUpdate  Intent = "update"
	IntentExit    Intent = "exit"
)

// IntentOption pairs an intent key with its natural-language description.
type IntentOption struct {
	Key         Intent `json:"key"`
	Description string `json:"description"`
}

// IntentOptions returns the fixed enumerated option set presented on every
// confirmation round.
func IntentOptions() []IntentOption {
	return []IntentOption{
		{Key: IntentConfirm, Description: "The plan looks good; start researching"},
		{Key: IntentUpdate, Description: "Revise the plan based on my feedback"},
		{Key: IntentExit, Description: "Abandon this research and delete the plan"},
	}
}

// PreviousSearch records one unsuccessful search attempt for a question.
type PreviousSearch struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
}

// Evaluation is the judge's verdict on a candidate answer.
type Evaluation struct {
	Good      bool   `json:"good"`
	Reasoning string `json:"reasoning"`
}

// Outcome tags how a workflow run ended, so callers can tell a user exit
// apart from a persistence failure.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExited    Outcome = "exited"
	OutcomeFailed    Outcome = "failed"
)

// Result is the terminal state of one workflow run.
type Result struct {
	Outcome Outcome
	Report  string
	Err     error
}

// Text returns the report for completed runs and the empty string otherwise.
func (r Result) Text() string {
	if r.Outcome != OutcomeCompleted {
		return ""
	}
	return r.Report
}

// Planner generates and revises ordered research plans for a topic.
type Planner interface {
	GeneratePlan(ctx context.Context, topic string) ([]string, error)
	RevisePlan(ctx context.Context, topic string, current []string) ([]string, error)
}

// IntentSelector classifies the user's decision over the enumerated options.
type IntentSelector interface {
	SelectIntent(ctx context.Context, options []IntentOption) (Intent, error)
}

// Searcher retrieves content for a query. The history of prior failed
// attempts is passed so the searcher can steer away from unproductive angles.
type Searcher interface {
	Search(ctx context.Context, query string, previous []PreviousSearch) (string, error)
}

// Answerer extracts an answer to a question from retrieved content.
type Answerer interface {
	Answer(ctx context.Context, content, question string) (string, error)
}

// Evaluator judges whether an answer actually settles the question.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) (Evaluation, error)
}

// Summarizer condenses the accumulated answers into the final report.
type Summarizer interface {
	Summarize(ctx context.Context, fullText, topic string) (string, error)
}

// Workspace persists the flat-file run artifacts: the plan, the accumulated
// answers document and the final report.
type Workspace interface {
	SavePlan(planName string, steps []string) error
	LoadPlan(planName string) ([]string, error)
	DeletePlan(planName string) error
	CreateAnswers(planName, topic string) error
	AppendAnswer(planName, question, answer string) error
	ReadAnswers(planName string) (string, error)
	SaveReport(planName, report string) error
	ReportPath(planName string) string
}

// NoteSink receives answered sections as they land; used to feed the
// retrieval index consulted during synthesis.
type NoteSink interface {
	Add(question, answer string) error
}

// Progress describes where a run currently is; pushed to the progress
// repository after every phase change.
type Progress struct {
	RunID       string `json:"run_id"`
	Topic       string `json:"topic"`
	PlanName    string `json:"plan_name"`
	Phase       string `json:"phase"` // planning, confirming, researching, synthesizing, done
	Question    int    `json:"question"`
	Questions   int    `json:"questions"`
	Attempt     int    `json:"attempt"`
	LastOutcome string `json:"last_outcome,omitempty"`
}

// ProgressSink persists live run progress. Implementations must be cheap;
// failures are logged and never fail the run.
type ProgressSink interface {
	Update(ctx context.Context, p Progress) error
}
