package main

import (
	"errors"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var cfgFile string

// configError marks a failure that must exit with code 1, per the
// configuration-error taxonomy: bad threshold, unknown probe name, unreadable
// config file.
type configError struct{ err error }

func (c configError) Error() string { return c.err.Error() }
func (c configError) Unwrap() error { return c.err }

// runtimeFatalError marks a failure that must exit with code 2: sink
// initialization failures are the only such case.
type runtimeFatalError struct{ err error }

func (r runtimeFatalError) Error() string { return r.err.Error() }
func (r runtimeFatalError) Unwrap() error { return r.err }

func exitCodeForError(err error) int {
	var cfgErr configError
	var fatalErr runtimeFatalError
	switch {
	case errors.As(err, &cfgErr):
		return 1
	case errors.As(err, &fatalErr):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:     "vigil",
	Short:   "Endpoint detection and response sensor for Linux hosts",
	Long:    `vigil ingests security events from host probes, matches them against indicators of compromise and behavioral rules, scores and correlates them into threats, and drives an automated response ladder.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, $HOME/.vigil, /etc/vigil)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(baselineCmd)
}
