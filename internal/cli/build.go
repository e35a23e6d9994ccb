package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/rgpipe/internal/logging"
	"github.com/vvka-141/rgpipe/internal/services"
	"github.com/vvka-141/rgpipe/internal/tui"
	"github.com/vvka-141/rgpipe/internal/ui"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Create the retinal tables",
	Long: `Build creates the tables of the selected layout if they do not exist.

Layouts:
  grouped   subject, session, stimulation, spike_group, spike (default)
  flat      subject, stimulation, session, spike

With --clean the existing tables are dropped first. Dropping asks you to type
the target name; --force replaces the prompt with a short countdown, which is
required when no terminal is attached.

Examples:
  rgpipe build -d lab
  rgpipe build --sqlite retinal.db --variant flat
  rgpipe build -d lab --clean --force`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

type buildFlagValues struct {
	targetFlags
	clean, force bool
}

var buildFlags buildFlagValues

func init() {
	rootCmd.AddCommand(buildCmd)
	addTargetFlags(buildCmd, &buildFlags.targetFlags)

	buildCmd.Flags().BoolVar(&buildFlags.clean, "clean", false,
		"Drop the layout's tables before creating them\n"+
			"Requires interactive confirmation unless --force is used")
	buildCmd.Flags().BoolVar(&buildFlags.force, "force", false,
		"Skip the interactive approval prompt for --clean")
}

// selectApprover picks the approver for a build. A clean build without a
// terminal and without --force cannot be confirmed and fails up front.
func selectApprover(cfg rgpipe.BuildConfig, interactive bool) (rgpipe.Approver, error) {
	if cfg.Force {
		return ui.NewForcedApprover(), nil
	}
	if cfg.Clean && !interactive {
		return nil, fmt.Errorf("build --clean needs --force when no terminal is attached: %w", rgpipe.ErrApprovalDenied)
	}
	return ui.NewInteractiveApprover(), nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	s, err := resolveSettings(cmd, &buildFlags.targetFlags, logger)
	if err != nil {
		return err
	}

	cfg := rgpipe.BuildConfig{
		Variant: s.Variant,
		Clean:   buildFlags.clean,
		Force:   buildFlags.force,
		Timeout: s.Timeout,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	approver, err := selectApprover(cfg, tui.IsInteractive())
	if err != nil {
		return err
	}
	logger.Verbose("Target: %s", s.Describe)

	ctx, cancel := commandContext(cfg.Timeout, "build")
	defer cancel()

	svc := services.NewIngestService(s.Open, approver, logger)
	if err := svc.Build(ctx, cfg); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s tables ready\n", tui.SymbolCheck, cfg.Variant)
	return nil
}
