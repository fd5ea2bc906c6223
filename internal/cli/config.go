package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage urduscribe configuration",
	Long:  "View and modify urduscribe settings and the remote API key",
}

// urduscribe config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		for _, key := range configKeyNames() {
			fmt.Fprintf(out, "  %-26s %s\n", key, configKeys[key].get(cfg))
		}
		fmt.Fprintf(out, "\n  %-26s %s\n", "config file", config.SavePath())

		credential := "not set"
		if cfg.APIKey() != "" {
			credential = "set"
		}
		fmt.Fprintf(out, "  %-26s %s (%s)\n", "api key", credential, cfg.Remote.APIKeyEnv)
		return nil
	},
}

// urduscribe config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.SavePath())
	},
}

// urduscribe config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Run 'urduscribe config show' to list the supported keys.

Examples:
  urduscribe config set language ur
  urduscribe config set backend remote
  urduscribe config set local_asr.model medium
  urduscribe config set session.live_delay 150ms`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// urduscribe config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k, ok := configKeys[args[0]]
		if !ok {
			return unknownConfigKey(args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), k.get(cfg))
		return nil
	},
}

// urduscribe config unset KEY - reset a config value to its default
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if _, ok := configKeys[key]; !ok {
			return unknownConfigKey(key)
		}

		cfg := config.LoadOrDefault()
		defaults := config.DefaultConfig()
		if err := setConfigValue(cfg, key, configKeys[key].get(defaults)); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
		return nil
	},
}

// urduscribe config check - validate config.yml against the schema
var configCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check config.yml for unknown keys and invalid values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = config.SavePath()
		}
		if err := config.CheckFile(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
		return nil
	},
}

// urduscribe config apikey - store the remote API key outside config.yml
var configAPIKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Store the remote API key",
	Long: `Prompt for the remote API key and store it in a .env file next to
config.yml, readable only by you. The key is never written to config.yml.
A variable already set in the environment takes precedence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		path, err := config.EnvPath()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: ", cfg.Remote.APIKeyEnv)
		key, err := readSecret()
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("no key entered")
		}

		if err := cfg.SaveAPIKey(path, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
		return nil
	},
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// configKey reads and writes one config.yml setting.
type configKey struct {
	get func(*config.Config) string
	set func(*config.Config, string) error
}

func stringKey(field func(*config.Config) *string) configKey {
	return configKey{
		get: func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(field func(*config.Config) *int) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid number: %s", v)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(field func(*config.Config) *time.Duration) configKey {
	return configKey{
		get: func(c *config.Config) string { return field(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return fmt.Errorf("invalid duration: %s (e.g. 150ms, 10m)", v)
			}
			*field(c) = d
			return nil
		},
	}
}

var configKeys = map[string]configKey{
	"language":              stringKey(func(c *config.Config) *string { return &c.Language }),
	"backend":               stringKey(func(c *config.Config) *string { return &c.Backend }),
	"transcript_language":   stringKey(func(c *config.Config) *string { return &c.TranscriptLanguage }),
	"local_asr.model":       stringKey(func(c *config.Config) *string { return &c.LocalASR.Model }),
	"local_asr.models_dir":  stringKey(func(c *config.Config) *string { return &c.LocalASR.ModelsDir }),
	"local_asr.device":      stringKey(func(c *config.Config) *string { return &c.LocalASR.Device }),
	"local_asr.precision":   stringKey(func(c *config.Config) *string { return &c.LocalASR.Precision }),
	"local_asr.threads":     intKey(func(c *config.Config) *int { return &c.LocalASR.Threads }),
	"local_asr.beam_size":   intKey(func(c *config.Config) *int { return &c.LocalASR.BeamSize }),
	"local_asr.whisper_cli": stringKey(func(c *config.Config) *string { return &c.LocalASR.WhisperCLI }),
	"remote.provider":       stringKey(func(c *config.Config) *string { return &c.Remote.Provider }),
	"remote.model":          stringKey(func(c *config.Config) *string { return &c.Remote.Model }),
	"remote.base_url":       stringKey(func(c *config.Config) *string { return &c.Remote.BaseURL }),
	"remote.api_key_env":    stringKey(func(c *config.Config) *string { return &c.Remote.APIKeyEnv }),
	"remote.timeout":        durationKey(func(c *config.Config) *time.Duration { return &c.Remote.Timeout }),
	"media.ffmpeg_path":     stringKey(func(c *config.Config) *string { return &c.Media.FFmpegPath }),
	"media.temp_dir":        stringKey(func(c *config.Config) *string { return &c.Media.TempDir }),
	"session.live_delay":    durationKey(func(c *config.Config) *time.Duration { return &c.Session.LiveDelay }),
	"server.port":           intKey(func(c *config.Config) *int { return &c.Server.Port }),
	"server.session_ttl":    durationKey(func(c *config.Config) *time.Duration { return &c.Server.SessionTTL }),
	"server.max_upload_mb": {
		get: func(c *config.Config) string { return strconv.FormatInt(c.Server.MaxUploadMB, 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid number: %s", v)
			}
			c.Server.MaxUploadMB = n
			return nil
		},
	},
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for name := range configKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setConfigValue sets a config value by key
func setConfigValue(cfg *config.Config, key, value string) error {
	k, ok := configKeys[key]
	if !ok {
		return unknownConfigKey(key)
	}
	return k.set(cfg, value)
}

func unknownConfigKey(key string) error {
	return fmt.Errorf("unknown config key: %s\nRun 'urduscribe config show' to see supported keys", key)
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configAPIKeyCmd)

	rootCmd.AddCommand(configCmd)
}
