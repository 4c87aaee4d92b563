// Command scenariolab runs, resumes, branches and inspects scenario
// simulations defined in YAML.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// CLI flags shared by the execution commands.
var (
	checkpointDir string // Base directory for checkpoint artifacts
	transcriptDir string // Base directory for markdown transcripts (empty disables)
	analyticsDB   string // SQLite DSN for the analytics recorder (empty disables)
	serveAddr     string // Listen address for the control/monitor API (empty disables)
	logLevel      string // Log verbosity level
	maxModelCalls int    // Hard cap on model calls per run (0 disables)
)

var rootCmd = &cobra.Command{
	Use:   "scenariolab",
	Short: "Turn-based multi-actor scenario simulation engine",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, resumeCmd, branchCmd} {
		cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "checkpoints", "Base directory for checkpoint artifacts")
		cmd.Flags().StringVar(&transcriptDir, "transcript-dir", "", "Base directory for markdown transcripts (empty disables)")
		cmd.Flags().StringVar(&analyticsDB, "analytics-db", "", "SQLite database for run analytics (empty disables)")
		cmd.Flags().StringVar(&serveAddr, "serve-addr", "", "Listen address for the control/monitor API (empty disables)")
		cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
		cmd.Flags().IntVar(&maxModelCalls, "max-model-calls", 0, "Hard cap on model calls per run (0 disables)")
	}
	rootCmd.AddCommand(runCmd, resumeCmd, branchCmd, inspectCmd, versionCmd)
}

// newLogger builds the text logger execution commands share.
func newLogger() logging.Logger {
	level := logging.LogLevelInfo
	switch logLevel {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, "text", false)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "scenariolab: "+format+"\n", args...)
	os.Exit(1)
}
