package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the parsed command line
type AppOptions struct {
	ConfigFile string
	ReplayFile string
	RecordDir  string
	MqttMode   bool
	HttpMode   bool
	HttpPort   int
	LogLevel   string
	LogFormat  string
}

// Runner is the set of modes the binary can dispatch to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunReplay() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "scanrisk: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("scanrisk", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.ReplayFile, "replay", "", "Replay recorded {pose, scan} JSON lines and exit")
	fs.StringVar(&opts.RecordDir, "record", "", "Directory for cycles.csv (overrides recorder.dir)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode (scan/pose in, safety field out)")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for field inspection")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (default from config, 8080)")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text or json")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return err
	}
	if opts.LogFormat != "text" && opts.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", opts.LogFormat)
	}

	fmt.Fprintf(out, "scanrisk version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.ReplayFile != "" {
		return app.RunReplay()
	}
	if opts.MqttMode || opts.HttpMode {
		return app.RunService()
	}

	fmt.Fprintln(out, "Use --replay=FILE to run recorded cycles through the estimator")
	fmt.Fprintln(out, "Use --mqtt to run the live risk service")
	fmt.Fprintln(out, "Use --http to serve the latest field over HTTP")
	fmt.Fprintln(out, "Use --mqtt --http to run both together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - planner tuning, map source, MQTT topics")
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
