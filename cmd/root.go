package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "browserbox",
	Short: "Ephemeral browser sandboxes for end-to-end tests",
	Long: `browserbox provisions and tears down browser sandboxes for UI tests.

Each sandbox is a container with:
  - One browser and its automation server (WebDriver on 4444)
  - A virtual display viewable through noVNC (7900)
  - An optional ffmpeg recording sidecar
  - Host ports derived from the worker slot, so parallel workers never collide`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)

		path := config.ResolvePath(configPath)
		if path == "" {
			return nil
		}
		cfg, err := config.Load(path)
		if err != nil {
			return errors.ConfigError("failed to load configuration", err)
		}
		logging.Debug("loaded config", "path", path)
		app.SetDefault(app.New(app.WithConfig(cfg)))
		return nil
	},
}

// Execute runs the root command and reports the error to the user.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $"+config.EnvConfig+" or ./"+config.DefaultConfigFile+")")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
