package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/umbralabs/umbra/pkg/diagnostics"
	"github.com/umbralabs/umbra/pkg/logger"
)

// newSessionCmd creates the session command: print the last persisted
// session snapshot.
func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the last session's diagnostic snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSession()
		},
	}
}

func showSession() error {
	if err := resolvePaths(); err != nil {
		printError("%v", err)
		return err
	}

	log := logger.CreateLoggerWithOutput("error", nil)
	store, err := diagnostics.NewSessionStore(workDir, log)
	if err != nil {
		printError("%v", err)
		return err
	}

	snap, err := store.Load()
	if err != nil {
		printError("%v", err)
		return err
	}
	if snap == nil {
		fmt.Println("no session has been recorded yet")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("session %s\n", snap.SessionID)
	fmt.Printf("  game version: %s\n", snap.GameVersion)
	fmt.Printf("  language:     %s\n", snap.Language)
	fmt.Printf("  state:        %s\n", snap.State)
	fmt.Printf("  started:      %s\n", snap.StartedAt.Format("2006-01-02 15:04:05"))
	if !snap.ReadyAt.IsZero() {
		fmt.Printf("  ready:        %s\n", snap.ReadyAt.Format("2006-01-02 15:04:05"))
	}

	bold.Println("steps:")
	for _, step := range snap.Steps {
		line := fmt.Sprintf("  %-18s %-9s %s", step.Subsystem, step.Status, step.Duration)
		switch step.Status {
		case diagnostics.StepFailed:
			color.Red("%s  %s", line, step.Error)
		case diagnostics.StepSkipped:
			color.Yellow("%s", line)
		default:
			fmt.Println(line)
		}
	}
	return nil
}
