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

var loadCmd = &cobra.Command{
	Use:   "load <manifest>",
	Short: "Append the sources listed in a manifest",
	Long: `Load reads every source listed in the manifest, in order, and appends its
rows to the target tables. Ids continue from the largest id already stored,
and subjects already present are reused by name.

Each table is appended in one batch. A failure stops the load; tables
appended before it keep their rows. Loading the same file twice stores its
sessions twice; the ingest_run journal shows what was loaded when.

Manifest (JSON or YAML):
  sources:
    - {type: file/json, path: data/2021-03-01.json}
    - {type: file/yaml, path: data/2021-03-02.yaml.zst, compression: zstd}

Examples:
  rgpipe load manifest.yaml -d lab
  rgpipe load manifest.yaml --sqlite retinal.db
  rgpipe load manifest.yaml --dry-run -v`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

type loadFlagValues struct {
	targetFlags
	dryRun bool
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)
	addTargetFlags(loadCmd, &loadFlags.targetFlags)

	loadCmd.Flags().BoolVar(&loadFlags.dryRun, "dry-run", false,
		"Decode and flatten every source without connecting or writing")
}

func runLoad(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	s, err := resolveSettings(cmd, &loadFlags.targetFlags, logger)
	if err != nil {
		return err
	}

	cfg := rgpipe.LoadConfig{
		ManifestPath: args[0],
		Variant:      s.Variant,
		DryRun:       loadFlags.dryRun,
		Timeout:      s.Timeout,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.DryRun {
		logger.Verbose("Target: %s", s.Describe)
	}

	ctx, cancel := commandContext(cfg.Timeout, "load")
	defer cancel()

	svc := services.NewIngestService(s.Open, ui.NewInteractiveApprover(), logger)
	summary, loadErr := svc.Load(ctx, cfg)
	if summary != nil && len(summary.Sources) > 0 {
		if err := loadTable(summary).Render(cmd.OutOrStdout(), tui.StdoutIsTerminal()); err != nil {
			logger.Error("render summary: %v", err)
		}
	}
	if loadErr != nil {
		return fmt.Errorf("load failed: %w", loadErr)
	}
	return nil
}
