package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"model_pusher/pusher/auth"
	"model_pusher/pusher/config"
	"model_pusher/pusher/deployer"
	"model_pusher/pusher/schema"
	"model_pusher/pusher/storage"
	"model_pusher/pusher/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	pushesStartedMetric   = promauto.NewCounter(prometheus.CounterOpts{Name: "pusher_pushes_started", Help: "Pushes started"})
	pushesCompletedMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "pusher_pushes_completed", Help: "Pushes completed successfully"})
	pushesFailedMetric    = promauto.NewCounter(prometheus.CounterOpts{Name: "pusher_pushes_failed", Help: "Pushes that failed"})
	pushDurationMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "pusher_push_duration_seconds", Help: "Duration of successful pushes"})
)

type PushService struct {
	db      *gorm.DB
	storage storage.Storage
	runner  Runner

	deployers map[string]deployer.Deployer

	jobAuth *auth.JwtManager

	endpoint string
}

func (s *PushService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnlyAuth(s.db))

		r.Post("/", s.Start)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AllUsersAuth(s.db))

		r.Get("/list", s.List)
		r.Get("/{push_id}", s.GetReport)
		r.Get("/{push_id}/status", s.GetStatus)
		r.Get("/{push_id}/config", s.GetConfig)
		r.Delete("/{push_id}", s.Cancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.jobAuth.Verifier())
		r.Use(s.jobAuth.Authenticator())

		r.Post("/{push_id}/update-status", s.UpdateStatus)
		r.Post("/{push_id}/log", s.JobLog)
	})

	return r
}

type startRequest struct {
	ModelName string `json:"model_name"`
	ModelDir  string `json:"model_dir"`
	Target    string `json:"target"`
}

type startResponse struct {
	PushId   uuid.UUID `json:"push_id"`
	JobToken string    `json:"job_token"`
}

func (s *PushService) startPush(params startRequest) (startResponse, error) {
	d, ok := s.deployers[params.Target]
	if !ok {
		return startResponse{}, CodedError(fmt.Errorf("no deployment target named %q is configured", params.Target), http.StatusNotFound)
	}

	spec, err := d.ExecutorSpec()
	if err != nil {
		slog.Error("unable to resolve executor for push", "target", params.Target, "error", err)
		return startResponse{}, CodedError(err, http.StatusInternalServerError)
	}

	exists, err := s.storage.Exists(params.ModelDir)
	if err != nil {
		return startResponse{}, CodedError(errors.New("error checking model artifact"), http.StatusInternalServerError)
	}
	if !exists {
		return startResponse{}, CodedError(fmt.Errorf("model artifact %v not found on shared storage", params.ModelDir), http.StatusUnprocessableEntity)
	}

	pushId := uuid.New()

	pushConfig := &config.PushConfig{
		PushId:              pushId,
		ModelName:           params.ModelName,
		ModelDir:            filepath.Join(s.storage.Location(), params.ModelDir),
		Target:              params.Target,
		Pusher:              d.BuildPusherConfig(),
		ModelPusherEndpoint: s.endpoint,
	}

	_, err = savePushConfig(pushConfig, s.storage)
	if err != nil {
		return startResponse{}, CodedError(errors.New("error creating push config"), http.StatusInternalServerError)
	}

	token, err := s.jobAuth.CreatePushJwt(pushId, 24*time.Hour)
	if err != nil {
		return startResponse{}, CodedError(errors.New("error setting up push"), http.StatusInternalServerError)
	}

	push := schema.Push{
		Id:        pushId,
		ModelName: params.ModelName,
		Target:    params.Target,
		ModelDir:  params.ModelDir,
		Status:    schema.Starting,
		CreatedAt: time.Now(),
	}

	if result := s.db.Create(&push); result.Error != nil {
		slog.Error("sql error creating push record", "push_id", pushId, "error", result.Error)
		return startResponse{}, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	// the record must be committed before the runner starts, the runner
	// reports progress against it
	if err := s.runner.StartPush(spec, pushConfig); err != nil {
		slog.Error("error starting push", "push_id", pushId, "error", err)
		if result := s.db.Model(&push).Update("status", schema.Failed); result.Error != nil {
			slog.Error("sql error updating push status on failed start", "push_id", pushId, "error", result.Error)
		}
		return startResponse{}, CodedError(errors.New("error starting push"), http.StatusInternalServerError)
	}

	pushesStartedMetric.Inc()

	slog.Info("push started", "push_id", pushId, "model_name", params.ModelName, "target", params.Target)

	return startResponse{PushId: pushId, JobToken: token}, nil
}

func (s *PushService) Start(w http.ResponseWriter, r *http.Request) {
	var params startRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.ModelName == "" || params.ModelDir == "" || params.Target == "" {
		http.Error(w, "model_name, model_dir, and target are required", http.StatusBadRequest)
		return
	}

	res, err := s.startPush(params)
	if err != nil {
		http.Error(w, fmt.Sprintf("error starting push: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type statusResponse struct {
	Status   string   `json:"status"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (s *PushService) GetStatus(w http.ResponseWriter, r *http.Request) {
	pushId, err := utils.URLParamUUID(r, "push_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	push, err := schema.GetPush(pushId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrPushNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := statusResponse{Status: push.Status, Errors: []string{}, Warnings: []string{}}
	for _, log := range push.Logs {
		if log.Level == "error" {
			res.Errors = append(res.Errors, log.Message)
		} else if log.Level == "warning" {
			res.Warnings = append(res.Warnings, log.Message)
		}
	}

	utils.WriteJsonResponse(w, res)
}

type pushReport struct {
	PushId     uuid.UUID  `json:"push_id"`
	ModelName  string     `json:"model_name"`
	Target     string     `json:"target"`
	Status     string     `json:"status"`
	Version    string     `json:"version,omitempty"`
	PushedPath string     `json:"pushed_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Completed  *time.Time `json:"completed_at,omitempty"`
}

func reportForPush(push schema.Push) pushReport {
	return pushReport{
		PushId:     push.Id,
		ModelName:  push.ModelName,
		Target:     push.Target,
		Status:     push.Status,
		Version:    push.Version,
		PushedPath: push.PushedPath,
		CreatedAt:  push.CreatedAt,
		Completed:  push.CompletedAt,
	}
}

func (s *PushService) GetReport(w http.ResponseWriter, r *http.Request) {
	pushId, err := utils.URLParamUUID(r, "push_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	push, err := schema.GetPush(pushId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrPushNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, reportForPush(push))
}

// GetConfig returns the job config that was handed to the push worker, read
// back from shared storage.
func (s *PushService) GetConfig(w http.ResponseWriter, r *http.Request) {
	pushId, err := utils.URLParamUUID(r, "push_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, err := s.storage.Read(pushConfigPath(pushId))
	if err != nil {
		http.Error(w, fmt.Sprintf("no config found for push %v", pushId), http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error writing push config response", "push_id", pushId, "error", err)
	}
}

func (s *PushService) List(w http.ResponseWriter, r *http.Request) {
	var pushes []schema.Push
	query := s.db.Order("created_at desc")

	if target := r.URL.Query().Get("target"); target != "" {
		query = query.Where("target = ?", target)
	}
	if modelName := r.URL.Query().Get("model_name"); modelName != "" {
		query = query.Where("model_name = ?", modelName)
	}

	result := query.Find(&pushes)
	if result.Error != nil {
		slog.Error("sql error listing pushes", "error", result.Error)
		http.Error(w, "error listing pushes", http.StatusInternalServerError)
		return
	}

	reports := make([]pushReport, 0, len(pushes))
	for _, push := range pushes {
		reports = append(reports, reportForPush(push))
	}

	utils.WriteJsonResponse(w, reports)
}

func (s *PushService) Cancel(w http.ResponseWriter, r *http.Request) {
	pushId, err := utils.URLParamUUID(r, "push_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		push, err := schema.GetPush(pushId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrPushNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if push.Status != schema.NotStarted && push.Status != schema.Starting {
			return CodedError(fmt.Errorf("cannot cancel push %v with status %v", pushId, push.Status), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&push).Update("status", schema.Stopped)
		if result.Error != nil {
			slog.Error("sql error updating push status on cancel", "push_id", pushId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error cancelling push: %v", err), GetResponseCode(err))
		return
	}

	// the push never ran, so its job config dir has no further use
	if err := s.storage.Delete(pushDir(pushId)); err != nil {
		slog.Error("error removing config for cancelled push", "push_id", pushId, "error", err)
	}

	slog.Info("push cancelled", "push_id", pushId)

	utils.WriteSuccess(w)
}

type updateStatusRequest struct {
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func validStatus(status string) bool {
	switch status {
	case schema.NotStarted, schema.Starting, schema.InProgress, schema.Complete, schema.Failed, schema.Stopped:
		return true
	}
	return false
}

// UpdateStatus is called by push workers, the push id comes from the job
// token, not the url, so a worker can only update its own push.
func (s *PushService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	pushId, err := auth.PushIdFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !validStatus(params.Status) {
		http.Error(w, fmt.Sprintf("invalid status %q", params.Status), http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{"status": params.Status}
	if version, ok := params.Metadata["version"]; ok {
		updates["version"] = version
	}
	if pushedPath, ok := params.Metadata["pushed_path"]; ok {
		updates["pushed_path"] = pushedPath
	}
	if params.Status == schema.Complete || params.Status == schema.Failed {
		now := time.Now()
		updates["completed_at"] = &now
	}

	result := s.db.Model(&schema.Push{}).Where("id = ?", pushId).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating push status", "push_id", pushId, "error", result.Error)
		http.Error(w, "error updating push status", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected != 1 {
		http.Error(w, "push not found", http.StatusNotFound)
		return
	}

	slog.Info("push status updated", "push_id", pushId, "status", params.Status)

	utils.WriteSuccess(w)
}

type jobLogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (s *PushService) JobLog(w http.ResponseWriter, r *http.Request) {
	pushId, err := auth.PushIdFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params jobLogRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	entry := schema.PushLog{Id: uuid.New(), PushId: pushId, Level: params.Level, Message: params.Message}
	result := s.db.Create(&entry)
	if result.Error != nil {
		slog.Error("sql error recording push log", "push_id", pushId, "error", result.Error)
		http.Error(w, "error recording push log", http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}
