package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "urduscribe"
)

// Backend kinds.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// DefaultAPIKeyEnv is the environment variable holding the remote API key.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// ConfigDir returns the standard config directory for urduscribe.
// Windows: %APPDATA%\urduscribe\
// macOS/Linux: ~/.config/urduscribe/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/urduscribe/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// UI language for status and error messages ("en" or "ur")
	Language string `yaml:"language,omitempty"`

	// Backend selects the transcription strategy: "local" or "remote"
	Backend string `yaml:"backend,omitempty"`

	// TranscriptLanguage is the language hint passed to the backend
	TranscriptLanguage string `yaml:"transcript_language,omitempty"`

	LocalASR LocalASRConfig `yaml:"local_asr,omitempty"`
	Remote   RemoteConfig   `yaml:"remote,omitempty"`
	Media    MediaConfig    `yaml:"media,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`

	// Server configuration for `urduscribe serve`
	Server ServerConfig `yaml:"server,omitempty"`
}

// LocalASRConfig holds settings for the local whisper.cpp backend.
type LocalASRConfig struct {
	// Model is the size tier: tiny, base, small, medium, large-v3
	Model string `yaml:"model,omitempty"`

	// ModelsDir overrides where ggml model files are stored
	ModelsDir string `yaml:"models_dir,omitempty"`

	// Device forces "cuda" or "cpu"; empty means detect
	Device string `yaml:"device,omitempty"`

	// Precision forces "float16" or "int8"; empty means pick from device
	Precision string `yaml:"precision,omitempty"`

	Threads  int `yaml:"threads,omitempty"`
	BeamSize int `yaml:"beam_size,omitempty"`

	// WhisperCLI is the whisper.cpp CLI binary used by non-cgo builds
	WhisperCLI string `yaml:"whisper_cli,omitempty"`
}

// RemoteConfig holds settings for the remote generative backend.
type RemoteConfig struct {
	// Provider is "openai" (transcriptions endpoint) or "openai-chat"
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself is never written to the config file.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Timeout bounds a single remote request
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MediaConfig holds media normalization settings.
type MediaConfig struct {
	// FFmpegPath selects a system ffmpeg binary instead of the embedded one
	FFmpegPath string `yaml:"ffmpeg_path,omitempty"`

	// TempDir is the parent directory for per-session temp files
	TempDir string `yaml:"temp_dir,omitempty"`
}

// SessionConfig holds transcript session settings.
type SessionConfig struct {
	// LiveDelay is an optional pause between partial transcript updates
	LiveDelay time.Duration `yaml:"live_delay,omitempty"`
}

// ServerConfig holds HTTP server settings for `urduscribe serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// MaxUploadMB caps the size of an uploaded file (default: 200)
	MaxUploadMB int64 `yaml:"max_upload_mb,omitempty"`

	// SessionTTL is how long a finished session stays available for download
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
}

// APIKey returns the remote API key from the environment.
// A .env file in the working directory, then one in the config directory,
// is loaded first if present. Variables already set are never overridden.
func (c *Config) APIKey() string {
	_ = godotenv.Load()
	if path, err := EnvPath(); err == nil {
		_ = godotenv.Load(path)
	}
	return strings.TrimSpace(os.Getenv(c.apiKeyEnv()))
}

func (c *Config) apiKeyEnv() string {
	if c.Remote.APIKeyEnv == "" {
		return DefaultAPIKeyEnv
	}
	return c.Remote.APIKeyEnv
}

// EnvPath returns the .env file kept next to the config file.
func EnvPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".env"), nil
}

// SaveAPIKey stores the API key in the .env file at path under the
// configured variable name, keeping other entries. The file is readable by
// the owner only.
func (c *Config) SaveAPIKey(path, key string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[c.apiKeyEnv()] = strings.TrimSpace(key)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	// Check cgroup
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	// Check for kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Language:           "en",
		Backend:            BackendLocal,
		TranscriptLanguage: "ur",
		LocalASR: LocalASRConfig{
			Model:    "small",
			BeamSize: 5,
		},
		Remote: RemoteConfig{
			Provider:  "openai",
			APIKeyEnv: DefaultAPIKeyEnv,
			Timeout:   5 * time.Minute,
		},
		Server: ServerConfig{
			Port:        8080,
			MaxUploadMB: 200,
			SessionTTL:  10 * time.Minute,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.TranscriptLanguage == "" {
		c.TranscriptLanguage = d.TranscriptLanguage
	}
	if c.LocalASR.Model == "" {
		c.LocalASR.Model = d.LocalASR.Model
	}
	if c.LocalASR.BeamSize <= 0 {
		c.LocalASR.BeamSize = d.LocalASR.BeamSize
	}
	if c.Remote.Provider == "" {
		c.Remote.Provider = d.Remote.Provider
	}
	if c.Remote.APIKeyEnv == "" {
		c.Remote.APIKeyEnv = d.Remote.APIKeyEnv
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Server.Port <= 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
}

// applyEnv lets the hosting environment override backend selection.
func (c *Config) applyEnv() {
	if v := os.Getenv("URDUSCRIBE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("URDUSCRIBE_MODEL"); v != "" {
		c.LocalASR.Model = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendLocal, BackendRemote)
	}
	switch c.LocalASR.Precision {
	case "", "float16", "int8":
	default:
		return fmt.Errorf("unknown precision %q (want float16 or int8)", c.LocalASR.Precision)
	}
	switch c.LocalASR.Device {
	case "", "cuda", "cpu":
	default:
		return fmt.Errorf("unknown device %q (want cuda or cpu)", c.LocalASR.Device)
	}
	return nil
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/urduscribe/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.LocalASR.ModelsDir = expandPath(cfg.LocalASR.ModelsDir)
	cfg.Media.TempDir = expandPath(cfg.Media.TempDir)
	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/urduscribe/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveFile(configPath, cfg)
}

// SaveFile writes the config to an explicit path.
func SaveFile(configPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# urduscribe configuration file\n# Run 'urduscribe init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return "config.yml"
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
		cfg.applyEnv()
	}
	return cfg
}
