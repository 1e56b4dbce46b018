package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"model_pusher/pusher/config"
)

// FilesystemTarget is always available, it requires no platform integration.
const FilesystemTarget = "filesystem"

func init() {
	Register(Spec{
		Target: FilesystemTarget,
		New: func() (Executor, error) {
			return &FilesystemExecutor{}, nil
		},
	})
}

// FilesystemExecutor copies the model artifact into a versioned directory
// under the push destination's base directory. Versions are millisecond
// timestamps so that the latest push sorts last.
type FilesystemExecutor struct{}

func (e *FilesystemExecutor) Push(ctx context.Context, cfg *config.PushConfig) (PushResult, error) {
	if err := ctx.Err(); err != nil {
		return PushResult{}, err
	}

	dest := cfg.Pusher.PushDestination.Filesystem
	if dest == nil {
		return PushResult{}, errors.New("push destination does not have a filesystem variant")
	}

	info, err := os.Stat(cfg.ModelDir)
	if err != nil {
		slog.Error("error locating model artifact", "model_dir", cfg.ModelDir, "error", err)
		return PushResult{}, fmt.Errorf("error locating model artifact %v: %w", cfg.ModelDir, err)
	}
	if !info.IsDir() {
		return PushResult{}, fmt.Errorf("model artifact %v is not a directory", cfg.ModelDir)
	}

	version := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pushedPath := filepath.Join(dest.BaseDirectory, version)

	err = os.MkdirAll(pushedPath, 0777)
	if err != nil {
		slog.Error("error creating serving directory", "path", pushedPath, "error", err)
		return PushResult{}, fmt.Errorf("error creating serving directory %v: %w", pushedPath, err)
	}

	err = os.CopyFS(pushedPath, os.DirFS(cfg.ModelDir))
	if err != nil {
		slog.Error("error copying model artifact", "model_dir", cfg.ModelDir, "path", pushedPath, "error", err)
		return PushResult{}, fmt.Errorf("error copying model artifact to %v: %w", pushedPath, err)
	}

	slog.Info("model pushed to filesystem destination", "model_name", cfg.ModelName, "path", pushedPath, "version", version)

	return PushResult{Version: version, PushedPath: pushedPath}, nil
}
