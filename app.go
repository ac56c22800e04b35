package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/scanrisk/risk"
)

// maxReplayLine bounds one recorded {pose, scan} line
const maxReplayLine = 4 << 20

// App encapsulates the application state and dependencies
type App struct {
	Config       *risk.Config
	StateTracker *risk.StateTracker
	Estimator    *risk.RiskEstimator
	MQTTClient   *risk.MQTTClient
	Publisher    *risk.Publisher
	Recorder     *risk.CycleRecorder
	Logger       *slog.Logger
	Out          io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile string
	ReplayFile string
	RecordDir  string
	HttpPort   int
	MqttMode   bool
	HttpMode   bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: risk.NewStateTracker(),
		Logger:       slog.Default(),
		Out:          os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.ReplayFile = opts.ReplayFile
	a.RecordDir = opts.RecordDir
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	a.Logger = newLogger(os.Stderr, opts.LogLevel, opts.LogFormat)
	slog.SetDefault(a.Logger)
}

// replayFrame is one line of a replay file
type replayFrame struct {
	Pose risk.Pose       `json:"pose"`
	Scan *risk.ScanFrame `json:"scan"`
}

// RunReplay feeds every recorded line of ReplayFile through a fresh
// estimator and prints a summary per processed cycle
func (a *App) RunReplay() error {
	config, err := risk.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", a.ConfigFile, err)
	}
	a.Config = config

	src, err := config.Map.Source()
	if err != nil {
		return err
	}
	timeout, err := config.Map.Timeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	grid, err := src.FetchGrid(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("loading static map: %w", err)
	}

	if err := a.setupEstimator(grid); err != nil {
		return err
	}
	if err := a.openRecorder(); err != nil {
		return err
	}
	defer a.closeRecorder()

	f, err := os.Open(a.ReplayFile)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	processed, err := replayCycles(f, a.Estimator, a.printCycle, a.recordCycle)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "Replayed %d processed cycles (%d static points)\n", processed, a.Estimator.StaticPoints())
	if a.Recorder != nil {
		fmt.Fprintf(a.Out, "Recorded to %s\n", a.Recorder.Path())
	}
	return nil
}

// replayCycles runs each {pose, scan} line of r through est and tells the
// observers about every processed cycle. Blank lines are skipped.
func replayCycles(r io.Reader, est *risk.RiskEstimator, observers ...risk.CycleObserver) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxReplayLine)

	processed := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var frame replayFrame
		if err := json.Unmarshal([]byte(text), &frame); err != nil {
			return processed, fmt.Errorf("line %d: parsing frame: %w", line, err)
		}
		if frame.Scan == nil {
			return processed, fmt.Errorf("line %d: %w", line, risk.ErrEmptyScan)
		}

		res, ok, err := est.Cycle(frame.Pose, frame.Scan)
		if err != nil {
			return processed, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		processed++
		for _, obs := range observers {
			obs(res)
		}
	}
	if err := scanner.Err(); err != nil {
		return processed, fmt.Errorf("reading replay: %w", err)
	}
	return processed, nil
}

func (a *App) printCycle(r *risk.CycleResult) {
	minSafety, minIdx := r.MinSafety()
	fmt.Fprintf(a.Out, "cycle %d: dynamic=%d clusters=%d dropped=%d min_safety=%.3f@%d corrected=%v\n",
		r.Cycle, r.Dynamic, len(r.Clusters), r.Dropped, minSafety, minIdx, r.Corrected)
}

func (a *App) recordCycle(r *risk.CycleResult) {
	if err := a.Recorder.Record(r); err != nil {
		a.Logger.Warn("recording cycle failed", "cycle", r.Cycle, "error", err)
	}
}

func (a *App) openRecorder() error {
	dir := a.RecordDir
	if dir == "" && a.Config != nil {
		dir = a.Config.Recorder.Dir
	}
	rec, err := risk.NewCycleRecorder(dir)
	if err != nil {
		return err
	}
	a.Recorder = rec
	return nil
}

func (a *App) closeRecorder() {
	if err := a.Recorder.Close(); err != nil {
		a.Logger.Warn("closing recorder failed", "error", err)
	}
}

// setupEstimator builds the estimator from the loaded config, installs the
// static map and marks it loaded for /health
func (a *App) setupEstimator(grid *risk.OccupancyGrid) error {
	opts := []risk.EstimatorOption{risk.WithLogger(a.Logger)}
	if a.Publisher != nil {
		opts = append(opts, risk.WithSink(a.Publisher))
	}
	est, err := risk.NewRiskEstimator(a.Config.Planner, opts...)
	if err != nil {
		return err
	}
	if err := est.SetStaticMap(grid); err != nil {
		return fmt.Errorf("installing static map: %w", err)
	}
	a.Estimator = est
	a.StateTracker.SetMapLoaded(est.StaticPoints())
	a.Logger.Info("static map installed",
		"width", grid.Info.Width, "height", grid.Info.Height, "points", est.StaticPoints())
	return nil
}

// RunService runs the live pipeline until SIGINT or SIGTERM
func (a *App) RunService() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	fmt.Fprintln(a.Out, "Starting scanrisk service...")

	config, err := risk.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", a.ConfigFile, err)
	}
	a.Config = config
	a.Logger.Info("loaded config", "path", a.ConfigFile)

	port := config.HTTP.Port
	if a.HttpPort > 0 {
		port = a.HttpPort
	}

	// 1. Static map: block until one is available
	src, err := config.Map.Source()
	if err != nil {
		return err
	}
	retry, err := config.Map.RetryDelay()
	if err != nil {
		return err
	}
	grid, err := risk.AcquireMap(ctx, src, retry, a.Logger)
	if err != nil {
		return fmt.Errorf("acquiring static map: %w", err)
	}

	// 2. MQTT transport for scan/pose in and field out
	if a.MqttMode {
		mqttClient, err := risk.InitMQTT(&config.MQTT, a.StateTracker.UpdateScan, a.StateTracker.UpdatePose, a.Logger)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient
		a.Publisher = risk.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishTopic, a.Logger)
		defer a.MQTTClient.Disconnect()
	}

	// 3. Estimator, recorder and control loop
	if err := a.setupEstimator(grid); err != nil {
		return err
	}
	if err := a.openRecorder(); err != nil {
		return err
	}
	defer a.closeRecorder()

	interval, err := config.Planner.Interval()
	if err != nil {
		return err
	}
	loop := &risk.ControlLoop{
		Estimator: a.Estimator,
		State:     a.StateTracker,
		Interval:  interval,
		Logger:    a.Logger,
		Observers: []risk.CycleObserver{a.recordCycle},
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()

	// 4. HTTP inspection endpoints
	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			Handler:           newHTTPServer(a.StateTracker, a.Estimator, a.Logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.Logger.Info("starting HTTP server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	a.printServiceInfo(port, interval)

	<-ctx.Done()

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("HTTP shutdown failed", "error", err)
		}
		cancel()
	}
	<-loopDone
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo(port int, interval time.Duration) {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")
	fmt.Fprintf(a.Out, "Control loop every %s, processing every %d cycle(s)\n", interval, a.Config.Planner.ProcessEvery)

	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintf(a.Out, "  Scan topic:    %s\n", a.Config.MQTT.ScanTopic)
		fmt.Fprintf(a.Out, "  Pose topic:    %s\n", a.Config.MQTT.PoseTopic)
		fmt.Fprintf(a.Out, "  Publishing to: %s\n", a.Publisher.Topic())
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", port)
		fmt.Fprintln(a.Out, "  GET /health           - Health check")
		fmt.Fprintln(a.Out, "  GET /field.json       - Latest cycle result")
		fmt.Fprintln(a.Out, "  GET /clusters.geojson - Clusters and robot as GeoJSON")
		fmt.Fprintln(a.Out, "  GET /field.png        - Polar plot of the safety field (?style=vector)")
		fmt.Fprintln(a.Out, "  GET /field.svg        - Vector polar plot")
	}

	if a.Recorder != nil {
		fmt.Fprintf(a.Out, "\nRecording cycles to %s\n", a.Recorder.Path())
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}
