package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// noColor disables ANSI colors in CLI output.
var noColor bool

var rootCmd = &cobra.Command{
	Use:   "peerfuse",
	Short: "Find compatible study partners",
	Long: `peerfuse matches students by availability, complementary strengths and
weaknesses, and study preferences, and generates study material on demand.

Run "peerfuse start" to launch the local server, then use the other commands
against it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(profileCmd, usersCmd, matchCmd, scoreCmd)
	rootCmd.AddCommand(sessionCmd, feedbackCmd, studyCmd)
	rootCmd.AddCommand(configCmd, tokenCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("peerfuse version %s\n", version))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
