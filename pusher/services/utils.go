package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"model_pusher/pusher/config"
	"model_pusher/pusher/storage"

	"github.com/google/uuid"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// pushDir is the storage directory holding the job config for a push.
func pushDir(pushId uuid.UUID) string {
	return filepath.Join("pushes", pushId.String())
}

func pushConfigPath(pushId uuid.UUID) string {
	return filepath.Join(pushDir(pushId), "push_config.json")
}

func savePushConfig(cfg *config.PushConfig, store storage.Storage) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		slog.Error("error serializing push config", "push_id", cfg.PushId, "error", err)
		return "", fmt.Errorf("error serializing push config: %w", err)
	}

	path := pushConfigPath(cfg.PushId)
	err = store.Write(path, bytes.NewReader(data))
	if err != nil {
		slog.Error("error saving push config", "push_id", cfg.PushId, "error", err)
		return "", fmt.Errorf("error saving push config: %w", err)
	}

	return filepath.Join(store.Location(), path), nil
}
