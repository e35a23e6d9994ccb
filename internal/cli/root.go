package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rgpipe",
	Short: "Load retinal recording sessions into relational tables",
	Long: `rgpipe reads retinal electrophysiology recordings (subjects, sessions,
stimulations and spike times) from JSON or YAML files listed in a manifest,
assigns ids that continue from what the target already holds, and appends
the rows to PostgreSQL or SQLite, one table at a time.

Workflow:
  rgpipe build                  # create the tables
  rgpipe load manifest.yaml     # append every listed source
  rgpipe status                 # row counts and recent loads

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration, manifest or source type
  11 - Database connection failed
  12 - User denied drop approval
  13 - Appending rows to a table failed
  14 - Data source file not found
  15 - Malformed session record`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for rgpipe")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("config", "",
		"Path to rgpipe.yaml (default: ./rgpipe.yaml, ignored if missing)")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return ""
	}
	return path
}
