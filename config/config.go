package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/Swind/go-job-center/core"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
// JOBCENTER_CENTER_IDLE_RATIO maps to center.idle_ratio.
const DefaultEnvPrefix = "JOBCENTER_"

var validate = validator.New()

// LoadOptions selects the sources read by Load.
type LoadOptions struct {
	// Path of a YAML config file; empty skips the file layer.
	Path string

	// Flags bound with BindFlags; nil skips the flag layer.
	Flags *pflag.FlagSet

	// EnvPrefix defaults to DefaultEnvPrefix.
	EnvPrefix string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	idle := core.DefaultIdleBackoff()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Center: CenterConfig{
			Workers:     runtime.NumCPU(),
			History:     100,
			IdleInitial: idle.Initial,
			IdleMax:     idle.Max,
			IdleRatio:   idle.Ratio,
		},
		Frame: FrameConfig{
			Interval: core.DefaultFrameInterval,
			Budget:   core.DefaultFrameBudget,
		},
		Metrics: MetricsConfig{
			Poll: time.Second,
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig into koanf keys.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"center.name":         def.Center.Name,
		"center.workers":      def.Center.Workers,
		"center.routes":       def.Center.Routes,
		"center.strict":       def.Center.Strict,
		"center.history":      def.Center.History,
		"center.idle_initial": def.Center.IdleInitial,
		"center.idle_max":     def.Center.IdleMax,
		"center.idle_ratio":   def.Center.IdleRatio,

		"frame.interval": def.Frame.Interval,
		"frame.budget":   def.Frame.Budget,

		"metrics.addr": def.Metrics.Addr,
		"metrics.poll": def.Metrics.Poll,
	}
}

// Load merges defaults, the YAML file, environment variables and flags, in
// that order of precedence, and validates the result.
func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("error loading defaults: %w", err)
	}

	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return Config{}, fmt.Errorf("error checking config file %s: %w", opts.Path, err)
		}
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("error loading config file %s: %w", opts.Path, err)
		}
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	if err := k.Load(env.Provider(prefix, ".", func(key string) string {
		return envKey(prefix, key)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("error loading environment variables: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("error loading command-line flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps JOBCENTER_SECTION_SOME_KEY to section.some_key.
func envKey(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, prefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// Validate checks the struct tags of cfg and the route syntax.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", core.ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if _, err := ParseRoutes(c.Center.Routes); err != nil {
		return err
	}
	return nil
}

// ParseRoutes parses the route syntax of CenterConfig.Routes. An empty
// string yields no routes.
func ParseRoutes(s string) ([][]core.Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var routes [][]core.Category
	for _, part := range strings.Split(s, ";") {
		var route []core.Category
		for _, name := range strings.Split(part, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			cat, err := core.ParseCategory(name)
			if err != nil {
				return nil, fmt.Errorf("%w: route %q: %v", core.ErrInvalidConfig, part, err)
			}
			if cat == core.CategoryMainThread {
				return nil, fmt.Errorf("%w: route %q: workers cannot service %s", core.ErrInvalidConfig, part, cat)
			}
			route = append(route, cat)
		}
		if len(route) == 0 {
			return nil, fmt.Errorf("%w: empty route in %q", core.ErrInvalidConfig, s)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// ToCenterConfig converts the center section into a core.Config. Handlers,
// metrics and tracer are left for the caller to set.
func (c Config) ToCenterConfig() (core.Config, error) {
	routes, err := ParseRoutes(c.Center.Routes)
	if err != nil {
		return core.Config{}, err
	}
	cfg := core.DefaultConfig()
	cfg.Name = c.Center.Name
	cfg.WorkerCount = c.Center.Workers
	cfg.Routes = routes
	cfg.Strict = c.Center.Strict
	cfg.HistoryCapacity = c.Center.History
	cfg.IdleBackoff = core.IdleBackoff{
		Initial: c.Center.IdleInitial,
		Max:     c.Center.IdleMax,
		Ratio:   c.Center.IdleRatio,
	}
	return cfg, nil
}
