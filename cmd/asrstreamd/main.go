// Command asrstreamd is the main entry point for the streaming speech
// recognition TCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/asrstreamd/internal/app"
	"github.com/MrWong99/asrstreamd/internal/config"
	"github.com/MrWong99/asrstreamd/internal/health"
	"github.com/MrWong99/asrstreamd/internal/logging"
	"github.com/MrWong99/asrstreamd/internal/observe"
	"github.com/MrWong99/asrstreamd/pkg/classifier"
	"github.com/MrWong99/asrstreamd/pkg/classifier/silero"
	"github.com/MrWong99/asrstreamd/pkg/transcriber"
	"github.com/MrWong99/asrstreamd/pkg/transcriber/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	modelsDir := flag.String("models-dir", "models", "directory holding the VAD and whisper model files")
	adminAddr := flag.String("admin-addr", ":9090", "address for the /healthz, /readyz and /metrics HTTP endpoints")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "asrstreamd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "asrstreamd: %v\n", err)
		}
		return 1
	}

	logger, closeLog, err := logging.New(cfg.Logging.LogPath, toLoggingLevel(cfg.Logging.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "asrstreamd: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("asrstreamd starting",
		"config", *configPath,
		"listen", fmt.Sprintf("%s:%d", cfg.Network.IP, cfg.Network.Port),
		"channels", cfg.Model.Channel,
		"device", cfg.Model.Device,
	)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "asrstreamd",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinBackends(reg, *modelsDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Backends{
		Registry:        reg,
		ClassifierName:  "silero",
		TranscriberName: "whisper",
	})
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	admin := newAdminServer(*adminAddr, application)
	go func() {
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "err", err)
		}
	}()

	slog.Info("server ready", "addr", application.Addr(), "admin_addr", *adminAddr)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin server shutdown error", "err", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newAdminServer builds the small internal HTTP mux exposing liveness,
// readiness, and Prometheus metrics alongside the TCP listener. Readiness
// reports healthy iff the engine pool still has at least one slot — an
// empty pool means app.New itself never fully started.
func newAdminServer(addr string, application *app.App) *http.Server {
	mux := http.NewServeMux()
	health.New(health.Checker{
		Name: "pool",
		Check: func(ctx context.Context) error {
			if application.Pool().Size() == 0 {
				return fmt.Errorf("engine pool is empty")
			}
			return nil
		},
	}).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}

// registerBuiltinBackends wires the two backend kinds this server ships
// with: a silero VAD classifier and a whisper.cpp transcriber, both loaded
// from modelsDir. Additional backends (a different VAD model, a cloud STT
// API) register here the same way, keyed by a new name, without touching
// internal/app.
func registerBuiltinBackends(reg *config.Registry, modelsDir string) {
	reg.RegisterClassifier("silero", func(cfg config.VADConfig) (classifier.Classifier, error) {
		threshold := 0.5
		if cfg.Mode > 0 {
			threshold = float64(cfg.Mode) / 10
		}
		return silero.Load(filepath.Join(modelsDir, "silero_vad.onnx"), threshold)
	})

	reg.RegisterTranscriber("whisper", func(cfg config.ModelConfig) (transcriber.Transcriber, error) {
		modelPath := filepath.Join(modelsDir, cfg.Size+".bin")
		return whisper.Load(modelPath, whisper.WithLanguage(cfg.Language))
	})
}

func toLoggingLevel(l config.LogLevel) logging.Level {
	switch l {
	case config.LogDebug:
		return logging.LevelDebug
	case config.LogWarn:
		return logging.LevelWarn
	case config.LogError:
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
