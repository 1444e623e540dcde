// Package main provides the parley CLI, a terminal front door to the
// conversation session client: login, conversation management, and
// streaming chat against a parley-compatible backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parley/internal/logger"
	"parley/internal/version"
)

var (
	logLevel string
	logFile  string
	baseURL  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley - streaming chat client",
	Long: `parley is a client for a conversational chat backend. It manages your
login session and conversations, sends messages, and streams assistant
replies to the terminal as they are generated.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logger.Configure(logLevel, logFile, false)
	},
}

var versionCheck string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(_ *cobra.Command, _ []string) error {
		info, err := version.GetInfo()
		if err != nil {
			fmt.Printf("parley v%s\n", version.GetVersion())
			return nil
		}
		fmt.Printf("parley v%s (%s, %s, %s)\n", info.Version, info.GitCommit, info.Platform, info.GoVersion)

		// Scripts can gate on a minimum version without parsing the output
		if versionCheck != "" {
			cmp, err := version.Compare(version.GetBaseVersion(), versionCheck)
			if err != nil {
				return err
			}
			if cmp < 0 {
				return fmt.Errorf("parley v%s does not meet required v%s", version.GetBaseVersion(), versionCheck)
			}
			fmt.Printf("meets required v%s\n", versionCheck)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend API base URL (overrides PARLEY_BASE_URL)")

	versionCmd.Flags().StringVar(&versionCheck, "check", "", "Fail unless this version meets the given minimum (semver)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(exportCmd)
}
