// Omctl controls an OpenMotics installation from the command line.
//
// It talks either to the gateway on the local network or to the OpenMotics
// cloud, lists outputs, shutters, sensors and thermostats, switches them,
// and follows the live event stream.
//
// Usage:
//
//	omctl [command] [flags]
//
// Connection settings come from named profiles in the configuration file
// (see 'omctl config'), overridden by flags. Passwords and client secrets
// are never stored there: they are read from OPENMOTICS_PASSWORD,
// OPENMOTICS_CLIENT_SECRET or OPENMOTICS_TOKEN (optionally via a .env file)
// or prompted for.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/internal/ui"
	"github.com/openmotics-go/openmotics/internal/version"
	"github.com/openmotics-go/openmotics/pkg/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		printFailure(err)
		os.Exit(1)
	}
}

// printFailure renders a command error with a hint for the errors the
// client classifies.
func printFailure(err error) {
	p := ui.NewPrinter(os.Stderr)
	var hints []string
	if hint := client.TroubleshootingHint(err); hint != "" {
		hints = append(hints, hint)
	}
	p.PrintError(client.ShortMessage(err), err, hints)
}

// Global flags
var (
	profileName    string
	hostFlag       string
	portFlag       int
	cloudFlag      bool
	installationID int
	verifyTLS      bool
	envFile        string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "omctl",
	Short: "OpenMotics command line client",
	Long: `A command line client for OpenMotics home automation installations.

Talks to the gateway on the local network or to the OpenMotics cloud.
Connection settings come from the selected profile and the flags below.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "Configuration profile (default: current profile)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Gateway host, overrides the profile")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Gateway port, overrides the profile")
	rootCmd.PersistentFlags().BoolVar(&cloudFlag, "cloud", false, "Use the OpenMotics cloud instead of the local gateway")
	rootCmd.PersistentFlags().IntVar(&installationID, "installation", 0, "Cloud installation id, overrides the profile")
	rootCmd.PersistentFlags().BoolVar(&verifyTLS, "verify-tls", false, "Verify the gateway TLS certificate, overrides the profile")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with OPENMOTICS_* variables, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile reads OPENMOTICS_* variables from path. Variables already set
// in the environment win; a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "omctl %s\n", version.Full())
	},
}
