// MacroBrief: deterministic ground truth and narrative safety for a daily
// macro market brief.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagConfigDir string
	flagDate      string
	flagVerbose   bool
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	rootCmd := &cobra.Command{
		Use:   "macrobrief",
		Short: "MacroBrief - daily macro brief with deterministic ground truth",
		Long: `MacroBrief computes a deterministic ground-truth bundle (scores,
positioning signals, event context, gate directives) from extracted market
documents, generates narratives against it, and scrubs and audits every
narrative before rendering and delivery.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "config", "Directory with YAML configuration files")
	rootCmd.PersistentFlags().StringVar(&flagDate, "date", "", "Run date (YYYY-MM-DD, default today UTC)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(groundTruthCmd())
	rootCmd.AddCommand(scrubCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// resolveDate parses --date or defaults to today UTC.
func resolveDate() (time.Time, error) {
	if flagDate == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", flagDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", flagDate, err)
	}
	return t, nil
}

// configPath returns the path for one config file, or "" when it does not
// exist so loaders fall back to defaults.
func configPath(name string) string {
	path := flagConfigDir + "/" + name
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
