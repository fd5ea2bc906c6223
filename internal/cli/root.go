package cli

import (
	"fmt"
	"os"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/version"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "urduscribe",
	Short: "Transcribe Urdu speech from audio and video files",
	Long: `urduscribe turns Urdu speech into text.

Transcription runs on a local whisper model or on a remote
OpenAI backend, selected in the config file or with --backend.

Examples:
  urduscribe transcribe interview.m4a
  urduscribe transcribe lecture.mp4 --backend remote
  urduscribe serve -p 8080
  urduscribe models download small`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.config/urduscribe/config.yml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config when given, else the default location.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", configFile, err)
		}
		return cfg, nil
	}
	return config.LoadOrDefault(), nil
}

func warnNoConfig() {
	if configFile == "" && !config.Exists() {
		fmt.Fprintf(os.Stderr, "\033[33mconfig file not found, using defaults. Run 'urduscribe init'.\033[0m\n")
	}
}
