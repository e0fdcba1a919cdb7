package agents

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mohammad-safakhou/scout/internal/notes"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/provider"
)

const summarizerSystemPrompt = `You write research reports. Input is a set of
researched question/answer sections on one topic.
- Synthesize across sections; do not just restate them in order.
- Lead with the findings that matter, then supporting detail.
- Plain text report, no markdown fences.`

// Summarizer condenses the accumulated answers into the final report. When a
// notes index is attached, the sections most relevant to the topic are
// surfaced to the model as emphasis hints.
type Summarizer struct {
	llm    provider.Provider
	tele   *telemetry.Telemetry
	notes  *notes.Index
	logger *log.Logger
}

// NewSummarizer creates the synthesis agent. idx may be nil.
func NewSummarizer(llm provider.Provider, tele *telemetry.Telemetry, idx *notes.Index) *Summarizer {
	return &Summarizer{
		llm:    llm,
		tele:   tele,
		notes:  idx,
		logger: log.New(os.Stdout, "[SUMMARIZER] ", log.LstdFlags),
	}
}

// Summarize produces the report for the topic from the full answers text.
func (s *Summarizer) Summarize(ctx context.Context, fullText, topic string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "TOPIC: %s\n\nRESEARCH NOTES:\n%s", topic, fullText)

	if s.notes != nil {
		hits, err := s.notes.Query(topic, 5)
		if err != nil {
			s.logger.Printf("notes lookup failed: %v", err)
		} else if len(hits) > 0 {
			b.WriteString("\nMOST RELEVANT SECTIONS:\n")
			for _, h := range hits {
				fmt.Fprintf(&b, "- %s\n", h.Question)
			}
		}
	}

	report, usage, err := s.llm.Generate(ctx, summarizerSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("summarizer completion: %w", err)
	}
	s.tele.RecordLLMUsage(s.llm.Model(), "synthesis", usage.InputTokens, usage.OutputTokens, 0)
	return strings.TrimSpace(report), nil
}
