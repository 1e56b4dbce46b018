package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"model_pusher/pusher/config"

	"github.com/google/uuid"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
	}
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers["Authorization"] = fmt.Sprintf("Bearer %v", token)
	return r
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no
// result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		return fmt.Errorf("%v request to endpoint %v returned status %d: %v", r.method, r.endpoint, w.Code, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(w.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing response from endpoint %v: %w", r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api    http.Handler
	apiKey string
}

func (c *client) get(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "GET", endpoint).Auth(c.apiKey)
}

func (c *client) post(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "POST", endpoint).Auth(c.apiKey)
}

func (c *client) delete(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "DELETE", endpoint).Auth(c.apiKey)
}

type startPushResponse struct {
	PushId   uuid.UUID `json:"push_id"`
	JobToken string    `json:"job_token"`
}

func (c *client) startPush(modelName, modelDir, target string) (startPushResponse, error) {
	body := map[string]string{"model_name": modelName, "model_dir": modelDir, "target": target}

	var res startPushResponse
	err := c.post("/push/").Json(body).Do(&res)
	return res, err
}

type statusResponse struct {
	Status   string   `json:"status"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (c *client) pushStatus(pushId uuid.UUID) (statusResponse, error) {
	var res statusResponse
	err := c.get(fmt.Sprintf("/push/%v/status", pushId)).Do(&res)
	return res, err
}

type pushReport struct {
	PushId     uuid.UUID  `json:"push_id"`
	ModelName  string     `json:"model_name"`
	Target     string     `json:"target"`
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	PushedPath string     `json:"pushed_path"`
	CreatedAt  time.Time  `json:"created_at"`
	Completed  *time.Time `json:"completed_at"`
}

func (c *client) pushReport(pushId uuid.UUID) (pushReport, error) {
	var res pushReport
	err := c.get(fmt.Sprintf("/push/%v", pushId)).Do(&res)
	return res, err
}

func (c *client) listPushes(query string) ([]pushReport, error) {
	var res []pushReport
	err := c.get("/push/list" + query).Do(&res)
	return res, err
}

func (c *client) pushConfig(pushId uuid.UUID) (config.PushConfig, error) {
	var res config.PushConfig
	err := c.get(fmt.Sprintf("/push/%v/config", pushId)).Do(&res)
	return res, err
}

func (c *client) cancelPush(pushId uuid.UUID) error {
	return c.delete(fmt.Sprintf("/push/%v", pushId)).Do(nil)
}

func (c *client) updateStatus(pushId uuid.UUID, jobToken, status string, metadata map[string]string) error {
	body := map[string]interface{}{"status": status, "metadata": metadata}
	return newHttpTestRequest(c.api, "POST", fmt.Sprintf("/push/%v/update-status", pushId)).Auth(jobToken).Json(body).Do(nil)
}

func (c *client) pushLog(pushId uuid.UUID, jobToken, level, message string) error {
	body := map[string]string{"level": level, "message": message}
	return newHttpTestRequest(c.api, "POST", fmt.Sprintf("/push/%v/log", pushId)).Auth(jobToken).Json(body).Do(nil)
}

type targetInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Error     string `json:"error"`
}

func (c *client) listTargets() ([]targetInfo, error) {
	var res []targetInfo
	err := c.get("/targets").Do(&res)
	return res, err
}
