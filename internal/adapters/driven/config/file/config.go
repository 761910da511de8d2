package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full atlas configuration. Values are read once at
// startup and never mutated.
type Config struct {
	// DataDir is where the SQLite database lives. Empty selects
	// ~/.atlas/data.
	DataDir string `toml:"data_dir"`

	// ListenAddr is the HTTP API bind address.
	ListenAddr string `toml:"listen_addr"`

	// Workers is the number of task workers.
	Workers int `toml:"workers"`

	// PollIntervalSeconds is how often idle workers poll the task
	// queue, in seconds.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`

	// Verbose enables debug logging.
	Verbose bool `toml:"verbose"`

	// Notion holds the source credentials.
	Notion NotionConfig `toml:"notion"`
}

// NotionConfig configures the Notion block source.
type NotionConfig struct {
	// Token is the default integration token. The ATLAS_NOTION_TOKEN
	// environment variable takes precedence so the secret can stay out
	// of the file.
	Token string `toml:"token"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8600",
		Workers:             2,
		PollIntervalSeconds: 1,
	}
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Load reads the configuration file, applying defaults for absent keys
// and the environment override for the Notion token. If configDir is
// empty, defaults to ~/.atlas. A missing file yields the defaults.
func Load(configDir string) (Config, error) {
	cfg := Default()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".atlas")
	}

	path := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if token := os.Getenv("ATLAS_NOTION_TOKEN"); token != "" {
		cfg.Notion.Token = token
	}

	if cfg.Workers < 1 {
		cfg.Workers = Default().Workers
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = Default().PollIntervalSeconds
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	return cfg, nil
}
