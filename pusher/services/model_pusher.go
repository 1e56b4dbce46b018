package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sort"
	"time"

	"model_pusher/pusher/auth"
	"model_pusher/pusher/deployer"
	"model_pusher/pusher/schema"
	"model_pusher/pusher/storage"
	"model_pusher/pusher/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type ModelPusher struct {
	push PushService

	db        *gorm.DB
	storage   storage.Storage
	deployers map[string]deployer.Deployer
	stop      chan bool
}

func NewModelPusher(
	db *gorm.DB, store storage.Storage, deployers map[string]deployer.Deployer, runner Runner, endpoint string, secret []byte,
) ModelPusher {
	jobAuth := auth.NewJwtManager(slices.Concat(secret, []byte("job")))

	return ModelPusher{
		push: PushService{
			db:        db,
			storage:   store,
			runner:    runner,
			deployers: deployers,
			jobAuth:   jobAuth,
			endpoint:  endpoint,
		},
		db:        db,
		storage:   store,
		deployers: deployers,
		stop:      make(chan bool, 1),
	}
}

func (m *ModelPusher) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/push", m.push.Routes())

	r.Get("/targets", m.ListTargets)
	r.Get("/usage", m.Usage)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// AdminApiKey creates a fresh admin key on startup so that the service is
// never reachable without credentials.
func (m *ModelPusher) AdminApiKey() string {
	key, err := auth.GenerateApiKey(m.db, schema.AdminRole)
	if err != nil {
		panic(err)
	}
	return key
}

type targetInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

func (m *ModelPusher) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets := make([]targetInfo, 0, len(m.deployers))
	for name, d := range m.deployers {
		info := targetInfo{Name: name, Available: true}
		if _, err := d.ExecutorSpec(); err != nil {
			info.Available = false
			info.Error = err.Error()
		}
		targets = append(targets, info)
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	utils.WriteJsonResponse(w, targets)
}

type usageResponse struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

func (m *ModelPusher) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := m.storage.Usage()
	if err != nil {
		http.Error(w, "error getting storage usage", http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, usageResponse{TotalBytes: usage.TotalBytes, FreeBytes: usage.FreeBytes})
}

// staleTimeout is how long a push may sit in starting or in_progress before
// the sweeper assumes its worker died.
const staleTimeout = 2 * time.Hour

func (m *ModelPusher) sweepStalePushes() {
	cutoff := time.Now().Add(-staleTimeout)

	result := m.db.Model(&schema.Push{}).
		Where("status IN ?", []string{schema.Starting, schema.InProgress}).
		Where("created_at < ?", cutoff).
		Update("status", schema.Failed)

	if result.Error != nil {
		slog.Error("status sync: sql error sweeping stale pushes", "error", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		slog.Info("status sync: marked stale pushes as failed", "count", result.RowsAffected)
	}
}

func (m *ModelPusher) PushStatusSync(interval time.Duration) {
	slog.Info("status sync: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepStalePushes()
		case <-m.stop:
			slog.Info("status sync: process stopped")
			return
		}
	}
}

func (m *ModelPusher) StopPushStatusSync() {
	close(m.stop)
}
