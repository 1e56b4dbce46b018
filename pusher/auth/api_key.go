package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"model_pusher/pusher/schema"

	"gorm.io/gorm"
)

func GenerateApiKey(db *gorm.DB, role string) (string, error) {
	if role != schema.AdminRole && role != schema.UserRole {
		return "", fmt.Errorf("invalid role for key, must be 'admin' or 'user'")
	}

	b := make([]byte, 48)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	apiKey := base64.StdEncoding.EncodeToString(b)

	entry := schema.ApiKey{Key: apiKey, Role: role}

	result := db.Create(&entry)
	if result.Error != nil {
		return "", fmt.Errorf("database error creating api key: %v", result.Error)
	}

	return apiKey, nil
}

func tokenFromHeader(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.EqualFold(bearer[0:6], "BEARER") {
		return bearer[7:]
	}
	return ""
}

type roleAuthMiddleware struct {
	db        *gorm.DB
	next      http.Handler
	adminOnly bool
}

func (auth *roleAuthMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := tokenFromHeader(r)
	if key == "" {
		http.Error(w, "api key is missing in request", http.StatusUnauthorized)
		return
	}

	var keyEntry schema.ApiKey
	result := auth.db.Find(&keyEntry, "key = ?", key)
	if result.Error != nil {
		http.Error(w, fmt.Sprintf("db error retrieving api key: %v", result.Error), http.StatusInternalServerError)
		return
	}

	if result.RowsAffected != 1 {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	if auth.adminOnly && keyEntry.Role != schema.AdminRole {
		http.Error(w, "api key must have admin permissions to access endpoint", http.StatusUnauthorized)
		return
	}

	auth.next.ServeHTTP(w, r)
}

func AdminOnlyAuth(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &roleAuthMiddleware{db: db, next: next, adminOnly: true}
	}
}

func AllUsersAuth(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &roleAuthMiddleware{db: db, next: next, adminOnly: false}
	}
}
