// Package main implements the digipin CLI for converting coordinates to
// DIGIPIN codes and managing conversion history.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/fyrsmithlabs/digipin/internal/logging"
)

var (
	// configPath overrides ~/.config/digipin/config.yaml
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "digipin",
	Short: "Convert coordinates to and from DIGIPIN codes",
	Long: `digipin converts latitude/longitude pairs to DIGIPIN codes and back.

Every successful conversion is recorded in a bounded history that is shared
with the interactive panel and the digipind HTTP daemon.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/digipin/config.yaml)")
}

// newApp loads configuration and wires the components for one command.
// Logs and notifications go to the command's stderr.
func newApp(cmd *cobra.Command, opts ...app.Option) (*app.App, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	base := []app.Option{
		app.WithVersion(version),
		app.WithLogWriter(cmd.ErrOrStderr()),
	}
	return app.New(cmd.Context(), cfg, append(base, opts...)...)
}

// withApp runs fn with a wired App tagged with the CLI source and closes it
// afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error, opts ...app.Option) error {
	a, err := newApp(cmd, opts...)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	cmd.SetContext(logging.WithSource(cmd.Context(), logging.SourceCLI))
	return fn(a)
}
