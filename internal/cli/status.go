package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/rgpipe/internal/logging"
	"github.com/vvka-141/rgpipe/internal/services"
	"github.com/vvka-141/rgpipe/internal/tui"
	"github.com/vvka-141/rgpipe/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts and recent loads",
	Long: `Status prints the current row count of every table in the selected layout
and the most recent entries of the ingest_run journal.

Examples:
  rgpipe status -d lab
  rgpipe status --sqlite retinal.db --runs 20`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

type statusFlagValues struct {
	targetFlags
	runs int
}

var statusFlags statusFlagValues

func init() {
	rootCmd.AddCommand(statusCmd)
	addTargetFlags(statusCmd, &statusFlags.targetFlags)

	statusCmd.Flags().IntVar(&statusFlags.runs, "runs", 10,
		"Number of journal entries to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	if statusFlags.runs < 0 {
		return fmt.Errorf("invalid argument: --runs cannot be negative")
	}

	s, err := resolveSettings(cmd, &statusFlags.targetFlags, logger)
	if err != nil {
		return err
	}
	logger.Verbose("Target: %s", s.Describe)

	ctx, cancel := commandContext(s.Timeout, "status")
	defer cancel()

	svc := services.NewIngestService(s.Open, ui.NewInteractiveApprover(), logger)
	st, err := svc.Status(ctx, s.Variant, statusFlags.runs)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	styled := tui.StdoutIsTerminal()
	out := cmd.OutOrStdout()
	for _, t := range statusTables(st) {
		if err := t.Render(out, styled); err != nil {
			return err
		}
	}
	return nil
}
