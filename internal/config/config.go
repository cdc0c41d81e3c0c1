package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Logging    LoggingConfig    `yaml:"logging"`
	Navigation NavigationConfig `yaml:"navigation"`
	Wander     WanderConfig     `yaml:"wander"`
	Action     ActionConfig     `yaml:"action"`
	Journal    JournalConfig    `yaml:"journal"`
	Debug      DebugConfig      `yaml:"debug"`
}

// ListenConfig is where the host bridge accepts WebSocket connections.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

type NavigationConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	StopDistance float64       `yaml:"stop_distance"`
}

// WanderConfig holds StartRandomWalk defaults. A negative duration wanders
// until stopped.
type WanderConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxDistance float64       `yaml:"max_distance"`
	Duration    time.Duration `yaml:"duration"`
}

type ActionConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
	ReleaseDelay    time.Duration `yaml:"release_delay"`
	NearbyRadius    float64       `yaml:"nearby_radius"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type DebugConfig struct {
	Console bool `yaml:"console"`
	// Simulate runs the built-in ground-plane host when no engine is attached.
	Simulate      bool          `yaml:"simulate"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = "127.0.0.1"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 7070
	}
	if c.Listen.Path == "" {
		c.Listen.Path = "/motor"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Navigation.TickInterval <= 0 {
		c.Navigation.TickInterval = 100 * time.Millisecond
	}
	if c.Navigation.StopDistance <= 0 {
		c.Navigation.StopDistance = 1.0
	}
	if c.Wander.Interval <= 0 {
		c.Wander.Interval = 5 * time.Second
	}
	if c.Wander.MaxDistance <= 0 {
		c.Wander.MaxDistance = 7
	}
	if c.Wander.Duration == 0 {
		c.Wander.Duration = 30 * time.Second
	}
	if c.Action.DefaultDuration <= 0 {
		c.Action.DefaultDuration = 3 * time.Second
	}
	if c.Action.ReleaseDelay <= 0 {
		c.Action.ReleaseDelay = 500 * time.Millisecond
	}
	if c.Action.NearbyRadius <= 0 {
		c.Action.NearbyRadius = 5
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "data/journal"
	}
	if c.Debug.FrameInterval <= 0 {
		c.Debug.FrameInterval = 50 * time.Millisecond
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
