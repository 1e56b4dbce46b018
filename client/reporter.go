package client

import "fmt"

// PushReporter is used by the push worker to report progress back to the
// model pusher service's internal endpoints.
type PushReporter struct {
	BaseClient
	PushId string
}

func NewPushReporter(endpoint, jobToken, pushId string) *PushReporter {
	return &PushReporter{BaseClient: NewBaseClient(endpoint, jobToken), PushId: pushId}
}

type updateStatusRequest struct {
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r *PushReporter) UpdateStatus(status string, metadata map[string]string) error {
	body := updateStatusRequest{Status: status, Metadata: metadata}
	return r.Post(fmt.Sprintf("/api/v1/push/%v/update-status", r.PushId)).Json(body).Do(nil)
}

type logRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (r *PushReporter) Log(level, message string) error {
	return r.Post(fmt.Sprintf("/api/v1/push/%v/log", r.PushId)).Json(logRequest{Level: level, Message: message}).Do(nil)
}
