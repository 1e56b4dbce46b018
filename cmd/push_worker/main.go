package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"model_pusher/client"
	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
	"model_pusher/pusher/schema"

	_ "model_pusher/pusher/executor/aiplatform"

	"github.com/caarlos0/env/v10"
	slogmulti "github.com/samber/slog-multi"
)

type workerEnv struct {
	ConfigPath string `env:"CONFIG_PATH,required"`
	JobToken   string `env:"JOB_TOKEN,required"`
}

/**
 * ==========================================================================
 * ==== All variables used by the push worker must be loaded here.       ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() (*workerEnv, error) {
	cfg := &workerEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(logFile *os.File, cfg *config.PushConfig) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, nil)

	// default fields used for filtering logs per push
	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{
		slog.String("service_type", "push_worker"),
		slog.String("push_id", cfg.PushId.String()),
		slog.String("model_name", cfg.ModelName),
		slog.String("target", cfg.Target),
	})
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
}

// The reason we have a separate runApp function is because the defer calls
// don't run if we exit with log.Fatalf, so instead we return an err here and
// fail outside.
func runApp() error {
	workerVars, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg, err := config.LoadPushConfig(workerVars.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not read push config: %w", err)
	}

	reporter := client.NewPushReporter(cfg.ModelPusherEndpoint, workerVars.JobToken, cfg.PushId.String())

	logFile, err := os.OpenFile(filepath.Join(filepath.Dir(workerVars.ConfigPath), "push_worker.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		reportErr := reporter.UpdateStatus(schema.Failed, nil)
		if reportErr != nil {
			slog.Error("error reporting push status", "error", reportErr)
		}
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	initLogging(logFile, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fail := func(pushErr error) error {
		if reportErr := reporter.Log("error", pushErr.Error()); reportErr != nil {
			slog.Error("error reporting push log", "error", reportErr)
		}
		if reportErr := reporter.UpdateStatus(schema.Failed, nil); reportErr != nil {
			slog.Error("error reporting push status", "error", reportErr)
		}
		return pushErr
	}

	spec, err := executor.Resolve(cfg.Target)
	if err != nil {
		return fail(fmt.Errorf("could not resolve executor: %w", err))
	}

	exec, err := spec.New()
	if err != nil {
		return fail(fmt.Errorf("could not create executor: %w", err))
	}

	err = reporter.UpdateStatus(schema.InProgress, nil)
	if err != nil {
		return fmt.Errorf("error reporting push status: %w", err)
	}

	result, err := exec.Push(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("push failed: %w", err))
	}

	err = reporter.UpdateStatus(schema.Complete, map[string]string{
		"version":     result.Version,
		"pushed_path": result.PushedPath,
	})
	if err != nil {
		return fmt.Errorf("error reporting push completion: %w", err)
	}

	slog.Info("push worker finished", "version", result.Version, "pushed_path", result.PushedPath)

	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("push worker failed: %v", err)
	}
}
