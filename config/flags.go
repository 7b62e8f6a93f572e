package config

import "github.com/spf13/pflag"

// flagKeys maps flag names defined by BindFlags to koanf keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"name":           "center.name",
	"workers":        "center.workers",
	"routes":         "center.routes",
	"strict":         "center.strict",
	"history":        "center.history",
	"frame-interval": "frame.interval",
	"frame-budget":   "frame.budget",
	"metrics-addr":   "metrics.addr",
	"metrics-poll":   "metrics.poll",
}

// BindFlags defines command-line flags overriding config file and
// environment settings. Only flags the user sets take effect.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()

	flags.String("log-level", def.Log.Level, "Log level (trace, debug, info, warn, error, disabled)")
	flags.String("log-format", def.Log.Format, "Log format (console, json)")

	flags.String("name", def.Center.Name, "Center name (default random UUID)")
	flags.Int("workers", def.Center.Workers, "Number of background workers")
	flags.String("routes", def.Center.Routes, `Per-worker category routes, e.g. "generic,io;generic-slow"`)
	flags.Bool("strict", def.Center.Strict, "Panic on contract violations")
	flags.Int("history", def.Center.History, "Execution history capacity")

	flags.Duration("frame-interval", def.Frame.Interval, "Main-thread frame interval")
	flags.Duration("frame-budget", def.Frame.Budget, "Main-thread job budget per frame")

	flags.String("metrics-addr", def.Metrics.Addr, "Prometheus listen address, e.g. :9090 (empty disables)")
	flags.Duration("metrics-poll", def.Metrics.Poll, "Stats snapshot poll interval")
}
