package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/agents"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/internal/workspace"
)

func researchCMD() *cobra.Command {
	var topic string
	var planName string
	var cfgPath string
	var auto bool

	var cmd = &cobra.Command{
		Use:   "research",
		Short: "Run one research workflow from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("--topic is required")
			}
			if planName == "" {
				planName = slugify(topic)
			}
			cfg := config.LoadConfig(cfgPath)

			ws, err := workspace.New(cfg.Storage.File.DataDir)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)

			var intents research.IntentSelector
			if auto {
				intents = &agents.AutoIntent{}
			} else {
				intents = &stdinIntentSelector{ws: ws, planName: planName, in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			}

			deps, idx, err := agents.BuildDependencies(cfg, tele, intents, ws, nil)
			if err != nil {
				return err
			}
			defer idx.Close()

			orch, err := research.NewOrchestrator(cfg, tele, deps)
			if err != nil {
				return err
			}

			res := orch.Run(cmd.Context(), research.Request{
				RunID:    uuid.New().String(),
				Topic:    topic,
				PlanName: planName,
			})
			switch res.Outcome {
			case research.OutcomeCompleted:
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\nReport saved to %s\n", res.Text(), ws.ReportPath(planName))
				return nil
			case research.OutcomeExited:
				fmt.Fprintln(cmd.OutOrStdout(), "Research abandoned; plan deleted.")
				return nil
			default:
				return res.Err
			}
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "topic to research")
	cmd.Flags().StringVarP(&planName, "plan", "p", "", "plan name (default derived from topic)")
	cmd.Flags().BoolVar(&auto, "auto", false, "confirm the generated plan without prompting")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}

func slugify(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "research"
	}
	return b.String()
}

// stdinIntentSelector shows the current plan and the enumerated choices,
// then reads the user's pick from the terminal.
type stdinIntentSelector struct {
	ws       research.Workspace
	planName string
	in       *bufio.Reader
	out      io.Writer
}

func (s *stdinIntentSelector) SelectIntent(ctx context.Context, options []research.IntentOption) (research.Intent, error) {
	steps, err := s.ws.LoadPlan(s.planName)
	if err != nil {
		return "", fmt.Errorf("loading plan for review: %w", err)
	}
	fmt.Fprintln(s.out, "\nProposed research plan:")
	for i, step := range steps {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintln(s.out)
	for i, opt := range options {
		fmt.Fprintf(s.out, "  [%d] %s - %s\n", i+1, opt.Key, opt.Description)
	}

	for {
		fmt.Fprintf(s.out, "Choose 1-%d: ", len(options))
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				// Unattended stdin: treat end of input as an exit.
				return research.IntentExit, nil
			}
			return "", fmt.Errorf("reading choice: %w", err)
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || n < 1 || n > len(options) {
			fmt.Fprintln(s.out, "Invalid choice.")
			continue
		}
		return options[n-1].Key, nil
	}
}
