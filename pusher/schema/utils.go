package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPushNotFound   = errors.New("push not found")
	ErrDbAccessFailed = errors.New("db access failed")
)

func GetPush(pushId uuid.UUID, db *gorm.DB, loadLogs bool) (Push, error) {
	var push Push

	var result *gorm.DB = db
	if loadLogs {
		result = result.Preload("Logs")
	}
	result = result.First(&push, "id = ?", pushId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return push, ErrPushNotFound
		}
		slog.Error("sql error in get push", "push_id", pushId, "error", result.Error)
		return push, ErrDbAccessFailed
	}

	return push, nil
}
