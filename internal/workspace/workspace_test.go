package workspace

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	return w
}

func TestSaveAndLoadPlanRoundTrip(t *testing.T) {
	w := newTestWorkspace(t)
	steps := []string{"History", "Current tech"}
	if err := w.SavePlan("p1", steps); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	data, err := os.ReadFile(w.PlanPath("p1"))
	if err != nil {
		t.Fatalf("read plan file: %v", err)
	}
	// Indented JSON array of strings on disk.
	if !strings.Contains(string(data), "\n  \"History\"") {
		t.Fatalf("plan file not indented JSON: %s", data)
	}
	var parsed []string
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("plan file not valid JSON: %v", err)
	}

	loaded, err := w.LoadPlan("p1")
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	if len(loaded) != 2 || loaded[0] != "History" || loaded[1] != "Current tech" {
		t.Fatalf("unexpected plan: %v", loaded)
	}
}

func TestSavePlanOverwrites(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.SavePlan("p1", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.SavePlan("p1", []string{"x"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err := w.LoadPlan("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "x" {
		t.Fatalf("expected wholesale replacement, got %v", loaded)
	}
}

func TestDeletePlan(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.SavePlan("p1", []string{"a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.DeletePlan("p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(w.PlanPath("p1")); !os.IsNotExist(err) {
		t.Fatalf("plan file still present")
	}
	if err := w.DeletePlan("p1"); err == nil {
		t.Fatalf("expected error deleting missing plan")
	}
}

func TestAnswersDocumentLayout(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.CreateAnswers("p1", "solar panel efficiency"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.AppendAnswer("p1", "History", "It began long ago."); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := w.AppendAnswer("p1", "Current tech", "PERC and TOPCon dominate."); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	text, err := w.ReadAnswers("p1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "# Detailed Exploration of solar panel efficiency\n\n" +
		"## History\n\nIt began long ago.\n\n" +
		"## Current tech\n\nPERC and TOPCon dominate.\n\n"
	if text != want {
		t.Fatalf("answers document mismatch:\n got: %q\nwant: %q", text, want)
	}
}

func TestCreateAnswersResetsDocument(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.CreateAnswers("p1", "topic"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.AppendAnswer("p1", "q", "a"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.CreateAnswers("p1", "topic"); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	text, _ := w.ReadAnswers("p1")
	if strings.Contains(text, "## q") {
		t.Fatalf("recreate should truncate, got %q", text)
	}
}

func TestSaveAndReadReport(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.SaveReport("p1", "FINAL REPORT"); err != nil {
		t.Fatalf("save report: %v", err)
	}
	got, err := w.ReadReport("p1")
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if got != "FINAL REPORT" {
		t.Fatalf("report mismatch: %q", got)
	}
}

func TestPathsDeriveFromPlanName(t *testing.T) {
	w := newTestWorkspace(t)
	if !strings.HasSuffix(w.PlanPath("p1"), "p1.txt") {
		t.Fatalf("plan path: %s", w.PlanPath("p1"))
	}
	if !strings.HasSuffix(w.AnswersPath("p1"), "p1_research_answers.md") {
		t.Fatalf("answers path: %s", w.AnswersPath("p1"))
	}
	if !strings.HasSuffix(w.ReportPath("p1"), "p1_research_report.txt") {
		t.Fatalf("report path: %s", w.ReportPath("p1"))
	}
}
