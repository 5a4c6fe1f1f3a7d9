package cli

import "github.com/spf13/pflag"

// CLIArgs holds all configurable options passed via the command line,
// populated once in ParseFlags() and then passed around the app (teacher's
// CLIArgs/ParseFlags shape, trimmed to this engine's surface).
type CLIArgs struct {
	ConfigPath string // Path to the engine's JSON config file

	// Command selects what the invocation does: "tick", "start", "status",
	// or "serve".
	Command string

	// TimeRange is the symbolic range for an active scan, e.g. "7days",
	// used by --command=start.
	TimeRange string

	// MetricsPort overrides the config's metrics port; 0 means use config.
	MetricsPort int
}

// ParseFlags reads command-line flags into CLIArgs using spf13/pflag.
func ParseFlags() CLIArgs {
	var args CLIArgs

	pflag.StringVar(&args.ConfigPath, "config", "config.json", "Path to engine config JSON")
	pflag.StringVar(&args.Command, "command", "tick", "Command: tick | start | status | serve")
	pflag.StringVar(&args.TimeRange, "range", "1day", "Symbolic time range for --command=start, e.g. 7days")
	pflag.IntVar(&args.MetricsPort, "metrics-port", 0, "Override metrics/health HTTP port (0 = use config)")

	pflag.Parse()
	return args
}
