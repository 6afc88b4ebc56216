// Gadget Core serves the IMF gadget inventory API.
//
// Gadgets move through a fixed lifecycle (Available, Deployed, then
// Destroyed or Decommissioned). Mutating operations require a bearer token
// obtained from /login. Every committed change is fanned out to the
// WebSocket feed, Prometheus, and optionally MQTT and InfluxDB.
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
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is read when present; a missing file means env-only config.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configFile is the --config flag shared by every subcommand.
var configFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gadgetcore",
		Short:         "IMF gadget inventory API",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotenv(".env")
		},
		// Bare invocation serves, matching the container entrypoint.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $GADGETS_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("gadgetcore " + versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// loadDotenv loads variables from path without overriding the environment.
// A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// getConfigPath returns the config file to read and whether it was named
// explicitly. Only an explicitly named file must exist.
func getConfigPath() (string, bool) {
	if configFile != "" {
		return configFile, true
	}
	if path := os.Getenv("GADGETS_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}
