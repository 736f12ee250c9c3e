// Command gostt-ptt is a push-to-talk dictation daemon: hold the hotkey,
// speak, release, and the transcript lands on the clipboard or is pasted
// into the focused application.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/gostt-ptt/internal/applog"
	"github.com/chaz8081/gostt-ptt/internal/audio"
	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/hotkey"
	"github.com/chaz8081/gostt-ptt/internal/inject"
	"github.com/chaz8081/gostt-ptt/internal/models"
	"github.com/chaz8081/gostt-ptt/internal/notify"
	"github.com/chaz8081/gostt-ptt/internal/observe"
	"github.com/chaz8081/gostt-ptt/internal/session"
	"github.com/chaz8081/gostt-ptt/internal/transcribe"
)

const sampleRate = 16000

var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to the settings file (.json, .yaml)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	dumpDir := flag.String("dump-audio", "", "write each recording as WAV into this directory")
	modelsDir := flag.String("models-dir", config.DefaultModelsDir(), "directory holding ggml whisper models")
	openLog := flag.Bool("open-log", false, "open the log file in the default viewer and exit")
	watchInterval := flag.Duration("watch-interval", 2*time.Second, "how often to check the settings file for edits")
	flag.Parse()

	logPath := config.DefaultLogPath()
	if *openLog {
		if err := applog.OpenInViewer(logPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, logFile, err := applog.Open(logPath, config.ParseLogLevel(*logLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Model downloads go through HuggingFace; opt out of its telemetry once.
	os.Setenv("HF_HUB_DISABLE_TELEMETRY", "1")

	if err := run(*configPath, *modelsDir, *dumpDir, *metricsAddr, *watchInterval); err != nil {
		slog.Error("gostt-ptt: exiting", "err", err)
		logFile.Close()
		os.Exit(1)
	}
	slog.Info("gostt-ptt: goodbye")
	logFile.Close()
	// Exit directly to avoid gohook's C cleanup crash.
	// The OS reclaims the event hook on process exit.
	os.Exit(0)
}

func run(configPath, modelsDir, dumpDir, metricsAddr string, watchInterval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(configPath)
	slog.Info("gostt-ptt: starting", "version", version, "config", configPath,
		"hotkey", cfg.Hotkey, "model", cfg.Model, "compute_type", cfg.ComputeType,
		"language", cfg.Language, "output", cfg.OutputMode)

	metrics := observe.Discard()
	if metricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("gostt-ptt: metrics shutdown", "err", err)
			}
		}()
		if metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
	}

	recorder, err := audio.NewRecorder(sampleRate)
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer recorder.Close()

	engine := transcribe.NewEngine(whisperBuilder(ctx, modelsDir), engineSettings(cfg))
	defer engine.Close()

	var dispOpts []transcribe.DispatcherOption
	if dumpDir != "" {
		dispOpts = append(dispOpts, transcribe.WithDumpDir(dumpDir))
	}
	var ctrl *session.Controller
	dispatcher := transcribe.NewDispatcher(engine, sampleRate, func(c transcribe.Completion) { ctrl.Deliver(c) }, dispOpts...)

	output := inject.NewOutput(inject.NewClipboard(), inject.RobotKeys{})
	indicator := notify.NewDesktop(cfg)
	listener := hotkey.NewListener(cfg.Hotkey)
	sink := &settingsSink{path: configPath, listener: listener, engine: engine, latest: cfg.Clone()}

	ctrl = session.New(cfg, recorder, dispatcher, output, indicator, sink, session.WithMetrics(metrics))
	watcher := config.NewWatcher(configPath, ctrl.UpdateSettings, config.WithInterval(watchInterval))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(ctx) })
	g.Go(func() error {
		listener.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		listener.Stop()
		return nil
	})
	g.Go(func() error {
		forwardEdges(ctx, listener.Events(), ctrl)
		return nil
	})
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error {
		return handleSignals(ctx, ctrl, func() { reloadSettings(configPath, ctrl.UpdateSettings) })
	})
	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, metricsAddr, observe.Serve) })
	}

	slog.Info("gostt-ptt: ready", "hotkey", listener.Key().Name)
	err = g.Wait()

	if serr := config.Save(configPath, sink.current()); serr != nil {
		slog.Warn("gostt-ptt: save settings", "err", serr)
	}
	return err
}

// serveMetrics runs serve and logs its failure instead of returning it;
// metrics are optional and a bind failure must not stop dictation.
func serveMetrics(ctx context.Context, addr string, serve func(context.Context, string) error) error {
	if err := serve(ctx, addr); err != nil {
		slog.Error("gostt-ptt: metrics server", "addr", addr, "err", err)
	}
	return nil
}

// reloadSettings re-reads the settings file and hands it to update. A
// missing or malformed file is logged and skipped so the current settings,
// and the file they are persisted to, stay intact.
func reloadSettings(path string, update func(*config.Config)) bool {
	cfg, err := config.Read(path)
	if err != nil {
		slog.Warn("gostt-ptt: reload skipped", "path", path, "err", err)
		return false
	}
	update(cfg)
	return true
}

// forwardEdges turns hotkey edges into controller messages.
func forwardEdges(ctx context.Context, edges <-chan hotkey.Edge, ctrl *session.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-edges:
			if !ok {
				return
			}
			switch e {
			case hotkey.Pressed:
				ctrl.Pressed()
			case hotkey.Released:
				ctrl.Released()
			}
		}
	}
}

func engineSettings(cfg *config.Config) transcribe.EngineSettings {
	return transcribe.EngineSettings{
		Model:       cfg.Model,
		ComputeType: cfg.ComputeType,
		Device:      cfg.Device,
	}
}

// whisperBuilder resolves (and if needed downloads) the model file, then
// loads it.
func whisperBuilder(ctx context.Context, modelsDir string) transcribe.Builder {
	return func(s transcribe.EngineSettings) (transcribe.Transcriber, error) {
		path, err := models.Resolve(ctx, modelsDir, s.Model, s.ComputeType)
		if err != nil {
			return nil, &transcribe.ModelLoadError{Model: s.Model, Err: err}
		}
		start := time.Now()
		tr, err := transcribe.NewWhisperTranscriber(path, 0)
		if err != nil {
			return nil, err
		}
		slog.Info("gostt-ptt: model loaded", "path", path, "device", s.Device, "took", time.Since(start).Round(time.Millisecond))
		return tr, nil
	}
}

// settingsSink applies accepted settings changes outside the controller.
type settingsSink struct {
	path     string
	listener *hotkey.Listener
	engine   *transcribe.Engine

	mu     sync.Mutex
	latest *config.Config
}

func (s *settingsSink) Persist(cfg *config.Config) error {
	s.mu.Lock()
	s.latest = cfg.Clone()
	s.mu.Unlock()
	return config.Save(s.path, cfg)
}

func (s *settingsSink) Rebind(key string) {
	s.listener.Rebind(key)
}

func (s *settingsSink) Invalidate(cfg *config.Config) {
	s.engine.Invalidate(engineSettings(cfg))
}

func (s *settingsSink) current() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Clone()
}
