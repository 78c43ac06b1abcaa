package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// MaxRecentFiles bounds the recent file list
const MaxRecentFiles = 10

type Config struct {
	Window        WindowConfig        `toml:"window" json:"window"`
	Macro         MacroConfig         `toml:"macro" json:"macro"`
	Clipboard     ClipboardConfig     `toml:"clipboard" json:"clipboard"`
	FolderMonitor FolderMonitorConfig `toml:"folder_monitor" json:"folder_monitor"`
	Logging       LoggingConfig       `toml:"logging" json:"logging"`
	Web           WebConfig           `toml:"web" json:"web"`
	RecentFiles   []string            `toml:"recent_files" json:"recent_files"`

	path string
}

type WindowConfig struct {
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`
	X      int `toml:"x" json:"x"`
	Y      int `toml:"y" json:"y"`
}

type MacroConfig struct {
	Delay     int    `toml:"delay" json:"delay"`
	LoopCount int    `toml:"loop_count" json:"loop_count"`
	StopKey   string `toml:"stop_key" json:"stop_key"`
}

type ClipboardConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	OutputFile string `toml:"output_file" json:"output_file"`
}

type FolderMonitorConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	FolderPath string `toml:"folder_path" json:"folder_path"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	Dir   string `toml:"dir" json:"dir"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	Port    int  `toml:"port" json:"port"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			X:      100,
			Y:      100,
		},
		Macro: MacroConfig{
			Delay:     100,
			LoopCount: 1,
			StopKey:   "f12",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8787,
		},
		RecentFiles: []string{},
	}
}

// Default returns the built-in configuration, not bound to any file
func Default() *Config {
	return defaultConfig()
}

// Dir returns the per-user configuration directory, creating it if needed
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	dir := filepath.Join(base, "macroflow")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// legacyPath is where older versions kept a JSON config
func legacyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".macro_app", "config.json")
}

// Load loads the configuration from the TOML file.
// If the file doesn't exist it is created from a legacy JSON config when one
// is found, or from default values.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return load(configPath, legacyPath())
}

// LoadFrom loads the configuration from path, creating it with defaults
func LoadFrom(path string) (*Config, error) {
	return load(path, "")
}

func load(path, legacy string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if legacy != "" {
			if err := mergeLegacy(legacy, cfg); err != nil {
				return nil, err
			}
		}
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.path = path
	cfg.RecentFiles = normalizeRecent(cfg.RecentFiles)
	return cfg, nil
}

// mergeLegacy overlays an old JSON config onto cfg. A missing file is not an error.
func mergeLegacy(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read legacy config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode legacy config: %w", err)
	}
	cfg.RecentFiles = normalizeRecent(cfg.RecentFiles)
	return nil
}

// Path returns the file this configuration is saved to
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration back to its file
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(c)
}

// AddRecentFile moves path to the front of the recent list
func (c *Config) AddRecentFile(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	recent := slices.DeleteFunc(slices.Clone(c.RecentFiles), func(p string) bool {
		return p == path
	})
	c.RecentFiles = normalizeRecent(append([]string{path}, recent...))
}

// normalizeRecent drops duplicates and trims the list to MaxRecentFiles
func normalizeRecent(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == MaxRecentFiles {
			break
		}
	}
	return out
}
