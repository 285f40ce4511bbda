package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ytpoint/point-monitor/pkg/points"
)

// Default returns a configuration with sensible default values.
//
// The default rates convert 100 yen of superchat, 10 likes, or one new
// subscriber into one point each; manual and visitor counters count 1:1.
func Default() *Config {
	return &Config{
		Points: points.Rates{
			SuperchatRate:  0.01,
			ConcurrentRate: 1,
			LikeRate:       0.1,
			SubscriberRate: 1,
			ManualRate:     1,
			VisitorRate:    1,
		},
		Polling: PollingConfig{
			Interval: 5 * time.Second,
		},
		Worker: WorkerConfig{
			Command:     "platform-worker",
			CallTimeout: 30 * time.Second,
		},
		Currency: CurrencyConfig{
			Fallback: "JPY",
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			PortMin: 1430,
			PortMax: 1460,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/point-monitor/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "point-monitor", "config.yaml")
}
