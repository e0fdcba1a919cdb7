package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace persists run artifacts as flat files under a data directory:
// the serialized plan, the accumulated answers document and the final report.
type Workspace struct {
	dataDir string
}

// New creates a workspace rooted at dataDir, creating it if needed.
func New(dataDir string) (*Workspace, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Workspace{dataDir: dataDir}, nil
}

// PlanPath returns the plan file path for a plan name.
func (w *Workspace) PlanPath(planName string) string {
	return filepath.Join(w.dataDir, planName+".txt")
}

// AnswersPath returns the answers document path for a plan name.
func (w *Workspace) AnswersPath(planName string) string {
	return filepath.Join(w.dataDir, planName+"_research_answers.md")
}

// ReportPath returns the report file path for a plan name.
func (w *Workspace) ReportPath(planName string) string {
	return filepath.Join(w.dataDir, planName+"_research_report.txt")
}

// SavePlan overwrites the plan file with the given ordered steps as
// indented JSON.
func (w *Workspace) SavePlan(planName string, steps []string) error {
	data, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	if err := os.WriteFile(w.PlanPath(planName), data, 0o644); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	return nil
}

// LoadPlan reads the plan file back into ordered steps.
func (w *Workspace) LoadPlan(planName string) ([]string, error) {
	data, err := os.ReadFile(w.PlanPath(planName))
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	var steps []string
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	return steps, nil
}

// DeletePlan removes the plan file.
func (w *Workspace) DeletePlan(planName string) error {
	return os.Remove(w.PlanPath(planName))
}

// CreateAnswers starts a fresh answers document with its title heading.
func (w *Workspace) CreateAnswers(planName, topic string) error {
	header := fmt.Sprintf("# Detailed Exploration of %s\n\n", topic)
	if err := os.WriteFile(w.AnswersPath(planName), []byte(header), 0o644); err != nil {
		return fmt.Errorf("creating answers file: %w", err)
	}
	return nil
}

// AppendAnswer appends one question section to the answers document.
func (w *Workspace) AppendAnswer(planName, question, answer string) error {
	f, err := os.OpenFile(w.AnswersPath(planName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening answers file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "## %s\n\n%s\n\n", question, answer); err != nil {
		return fmt.Errorf("appending answer: %w", err)
	}
	return nil
}

// ReadAnswers returns the whole answers document.
func (w *Workspace) ReadAnswers(planName string) (string, error) {
	data, err := os.ReadFile(w.AnswersPath(planName))
	if err != nil {
		return "", fmt.Errorf("reading answers file: %w", err)
	}
	return string(data), nil
}

// SaveReport writes the final report. Written once, never appended.
func (w *Workspace) SaveReport(planName, report string) error {
	if err := os.WriteFile(w.ReportPath(planName), []byte(report), 0o644); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

// ReadReport returns the persisted report.
func (w *Workspace) ReadReport(planName string) (string, error) {
	data, err := os.ReadFile(w.ReportPath(planName))
	if err != nil {
		return "", fmt.Errorf("reading report file: %w", err)
	}
	return string(data), nil
}
