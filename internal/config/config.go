package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for XDG directories
	AppName = "vpkctl"
	// ConfigFileName is the name of the config file (without extension)
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension
	ConfigFileExt = "toml"
	// EnvPrefix prefixes every environment override (VPKCTL_LIBRARY_DIR, ...)
	EnvPrefix = "VPKCTL"
)

var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// Config holds the effective configuration
type Config struct {
	LibraryDir         string         `mapstructure:"library_dir"`
	GamePath           string         `mapstructure:"game_path"`
	AutoUpdateWorkshop bool           `mapstructure:"auto_update_workshop"`
	Download           DownloadConfig `mapstructure:"download"`
	HTTP               HTTPConfig     `mapstructure:"http"`
	UI                 UIConfig       `mapstructure:"ui"`
}

// DownloadConfig tunes the download service
type DownloadConfig struct {
	Chunks       int           `mapstructure:"chunks"`
	SaveInterval time.Duration `mapstructure:"save_interval"`
}

// HTTPConfig tunes the shared HTTP client
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// UIConfig holds presentation toggles
type UIConfig struct {
	NerdFonts bool `mapstructure:"nerd_fonts"`
}

// LoadOptions overrides where configuration is read from
type LoadOptions struct {
	// ConfigDir replaces the XDG config directory when set
	ConfigDir string
	// EnvFile is a dotenv file loaded before the environment is read.
	// Defaults to ".env" in the working directory.
	EnvFile string
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		LibraryDir:         filepath.Join(dataHome(), AppName, "library"),
		AutoUpdateWorkshop: true,
		Download: DownloadConfig{
			Chunks:       8,
			SaveInterval: time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: AppName + "/1.0",
		},
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/vpkctl
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, AppName)
}

// DataDir returns $XDG_DATA_HOME/vpkctl
func DataDir() string {
	return filepath.Join(dataHome(), AppName)
}

func dataHome() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, ".local", "share")
	}
	return dir
}

// Load reads the configuration file, the dotenv file and the environment.
// It returns the config and the path of the file that was read, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, "", fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := newViper()

	path := filePath(opts.ConfigDir)
	resolved := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
		resolved = path
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Download.Chunks < 1 {
		cfg.Download.Chunks = 1
	}

	return &cfg, resolved, nil
}

// Set validates value for key and writes it to the config file
func Set(configDir, key, value string) error {
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	parsed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, value, err)
	}

	v := viper.New()
	path := filePath(configDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.Set(key, parsed)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Keys returns every known key in sorted order
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path returns the config file location for configDir (XDG default when empty)
func Path(configDir string) string {
	return filePath(configDir)
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindDuration
)

var keyKinds = map[string]valueKind{
	"library_dir":            kindString,
	"game_path":              kindString,
	"auto_update_workshop":   kindBool,
	"download.chunks":        kindInt,
	"download.save_interval": kindDuration,
	"http.timeout":           kindDuration,
	"http.user_agent":        kindString,
	"ui.nerd_fonts":          kindBool,
}

func parseValue(kind valueKind, value string) (interface{}, error) {
	switch kind {
	case kindBool:
		return strconv.ParseBool(value)
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("must be positive")
		}
		return n, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("library_dir", defaults.LibraryDir)
	v.SetDefault("game_path", defaults.GamePath)
	v.SetDefault("auto_update_workshop", defaults.AutoUpdateWorkshop)
	v.SetDefault("download.chunks", defaults.Download.Chunks)
	v.SetDefault("download.save_interval", defaults.Download.SaveInterval)
	v.SetDefault("http.timeout", defaults.HTTP.Timeout)
	v.SetDefault("http.user_agent", defaults.HTTP.UserAgent)
	v.SetDefault("ui.nerd_fonts", defaults.UI.NerdFonts)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func filePath(configDir string) string {
	if configDir == "" {
		configDir = ConfigDir()
	}
	return filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
}
