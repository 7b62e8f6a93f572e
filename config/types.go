package config

import "time"

// Config is the full configuration of a jobcenter process.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Center  CenterConfig  `koanf:"center"`
	Frame   FrameConfig   `koanf:"frame"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// CenterConfig holds the settings turned into a core.Config.
type CenterConfig struct {
	// Name labels logs and metrics; empty means a random UUID.
	Name    string `koanf:"name"`
	Workers int    `koanf:"workers" validate:"min=1,max=1024"`

	// Routes overrides Workers with one worker per route. Routes are
	// separated by ';' and categories within a route by ',', for example
	// "generic,io;generic-slow".
	Routes string `koanf:"routes"`

	Strict  bool `koanf:"strict"`
	History int  `koanf:"history" validate:"min=1"`

	IdleInitial time.Duration `koanf:"idle_initial" validate:"gt=0"`
	IdleMax     time.Duration `koanf:"idle_max" validate:"gtefield=IdleInitial"`
	IdleRatio   float64       `koanf:"idle_ratio" validate:"gte=1"`
}

// FrameConfig configures the main-thread FrameLoop.
type FrameConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Budget   time.Duration `koanf:"budget" validate:"gt=0,ltefield=Interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string        `koanf:"addr" validate:"omitempty,hostname_port"`
	Poll time.Duration `koanf:"poll" validate:"gt=0"`
}
