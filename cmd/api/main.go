// Command api serves the CiteMe workspace API.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"citeme/api/internal/config"
	"citeme/api/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "citeme-api",
	Short: "Citation workspace API",
	Long: `citeme-api keeps one workspace per browser profile: the document being
written, its citation forms and the generated preview. It forwards citation
requests to the generator service and exports the result.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", os.Getenv("CITEME_CONFIG"), "YAML config file overlaid on the environment")
}

// loadConfig reads the config named by --config and initializes logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return cfg, err
	}
	if path != "" {
		logging.Info("using config file", "path", path)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "err", err)
		os.Exit(1)
	}
}
