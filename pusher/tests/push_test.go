package tests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
	"model_pusher/pusher/schema"
	"model_pusher/pusher/services"

	"github.com/google/uuid"
)

func TestPushWorkerLifecycle(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	if len(env.runner.started) != 1 {
		t.Fatalf("expected 1 started push, got %d", len(env.runner.started))
	}
	started := env.runner.started[0]
	if started.target != executor.FilesystemTarget {
		t.Fatalf("push started with wrong executor %v", started.target)
	}
	dest := started.config.Pusher.PushDestination.Filesystem
	if dest == nil || dest.BaseDirectory != filepath.Join(env.servingDir, "local") {
		t.Fatalf("push started with wrong destination %+v", dest)
	}

	status, err := c.pushStatus(res.PushId)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Starting {
		t.Fatalf("expected status starting, got %v", status.Status)
	}

	// the worker reports progress using its job token
	err = c.updateStatus(res.PushId, res.JobToken, schema.InProgress, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = c.updateStatus(res.PushId, res.JobToken, schema.Complete, map[string]string{
		"version":     "1724000000000",
		"pushed_path": filepath.Join(env.servingDir, "local", "1724000000000"),
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.pushReport(res.PushId)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != schema.Complete || report.Version != "1724000000000" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Completed == nil {
		t.Fatal("expected completed timestamp to be set")
	}
}

func TestPushConfigSavedToStorage(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(env.storage.Location(), "pushes", res.PushId.String(), "push_config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}

	var saved config.PushConfig
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}

	if saved.PushId != res.PushId || saved.ModelName != "model-a" || saved.Target != "local" {
		t.Fatalf("unexpected saved config %+v", saved)
	}
	if saved.Pusher.PushDestination.Filesystem == nil {
		t.Fatal("saved config missing push destination")
	}
}

func TestStartPushUnknownTarget(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	_, err := c.startPush("model-a", modelDir, "nowhere")
	if err == nil {
		t.Fatal("expected error for unknown target")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestStartPushMissingIntegration(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	// the ai-platform executor is not linked into the test binary
	_, err := c.startPush("model-a", modelDir, "cloud")
	if err == nil {
		t.Fatal("expected error for missing integration")
	}
	if !strings.Contains(err.Error(), "ai-platform") {
		t.Fatalf("expected missing executor error, got %v", err)
	}

	if len(env.runner.started) != 0 {
		t.Fatal("no push should have been started")
	}
}

func TestStartPushMissingArtifact(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	_, err := c.startPush("model-a", "models/does-not-exist", "local")
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestPushRequiresApiKey(t *testing.T) {
	env := setupTestEnv(t, false)

	noKey := client{api: env.api}
	modelDir := env.writeModelArtifact(t, "model-a")

	_, err := noKey.startPush("model-a", modelDir, "local")
	if err == nil {
		t.Fatal("expected error without api key")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestStatusUpdateRequiresJobToken(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	err = c.updateStatus(res.PushId, "not-a-real-token", schema.Complete, nil)
	if err == nil {
		t.Fatal("expected error with invalid job token")
	}
}

func TestCancelPush(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.cancelPush(res.PushId); err != nil {
		t.Fatal(err)
	}

	status, err := c.pushStatus(res.PushId)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != schema.Stopped {
		t.Fatalf("expected status stopped, got %v", status.Status)
	}

	configDir := filepath.Join(env.storage.Location(), "pushes", res.PushId.String())
	if _, err := os.Stat(configDir); !os.IsNotExist(err) {
		t.Fatal("config for cancelled push should be removed from storage")
	}

	// cannot cancel a push that is no longer pending
	if err := c.cancelPush(res.PushId); err == nil {
		t.Fatal("expected error cancelling stopped push")
	}
}

func TestGetPushConfig(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := c.pushConfig(res.PushId)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PushId != res.PushId || cfg.ModelName != "model-a" || cfg.Target != "local" {
		t.Fatalf("unexpected push config %+v", cfg)
	}
	if cfg.Pusher.PushDestination.Filesystem == nil {
		t.Fatal("push config missing push destination")
	}

	if _, err := c.pushConfig(uuid.New()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 for unknown push, got %v", err)
	}
}

// a push cancelled while still starting must not be picked up by the runner
// or have its final status overwritten.
func TestCancelledPushNotRunByLocalRunner(t *testing.T) {
	env := setupTestEnv(t, false)

	modelDir := env.writeModelArtifact(t, "model-a")

	pushId := uuid.New()
	push := schema.Push{
		Id:        pushId,
		ModelName: "model-a",
		Target:    "local",
		ModelDir:  modelDir,
		Status:    schema.Stopped,
		CreatedAt: time.Now(),
	}
	if res := env.db.Create(&push); res.Error != nil {
		t.Fatal(res.Error)
	}

	spec, err := executor.Resolve(executor.FilesystemTarget)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(env.servingDir, "local")
	cfg := &config.PushConfig{
		PushId:    pushId,
		ModelName: "model-a",
		ModelDir:  filepath.Join(env.storage.Location(), modelDir),
		Target:    "local",
		Pusher: config.PusherConfig{
			PushDestination: config.PushDestination{Filesystem: &config.Filesystem{BaseDirectory: dest}},
		},
	}

	runner := services.NewLocalRunner(env.db)
	if err := runner.StartPush(spec, cfg); err != nil {
		t.Fatal(err)
	}

	// give the runner goroutine time to decline the push
	time.Sleep(500 * time.Millisecond)

	updated, err := schema.GetPush(pushId, env.db, false)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != schema.Stopped {
		t.Fatalf("expected push to stay stopped, got %v", updated.Status)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("nothing should have been pushed to %v", dest)
	}
}

func TestStalePushesMarkedFailed(t *testing.T) {
	env := setupTestEnv(t, false)

	makePush := func(status string, createdAt time.Time) uuid.UUID {
		push := schema.Push{
			Id:        uuid.New(),
			ModelName: "model-a",
			Target:    "local",
			ModelDir:  "models/model-a",
			Status:    status,
			CreatedAt: createdAt,
		}
		if res := env.db.Create(&push); res.Error != nil {
			t.Fatal(res.Error)
		}
		return push.Id
	}

	backdated := time.Now().Add(-3 * time.Hour)
	staleStarting := makePush(schema.Starting, backdated)
	staleInProgress := makePush(schema.InProgress, backdated)
	fresh := makePush(schema.Starting, time.Now())

	go env.modelPusher.PushStatusSync(10 * time.Millisecond)
	defer env.modelPusher.StopPushStatusSync()

	deadline := time.Now().Add(5 * time.Second)
	for {
		a, err := schema.GetPush(staleStarting, env.db, false)
		if err != nil {
			t.Fatal(err)
		}
		b, err := schema.GetPush(staleInProgress, env.db, false)
		if err != nil {
			t.Fatal(err)
		}
		if a.Status == schema.Failed && b.Status == schema.Failed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stale pushes not swept, statuses %v and %v", a.Status, b.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	current, err := schema.GetPush(fresh, env.db, false)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != schema.Starting {
		t.Fatalf("recent push should be untouched, got %v", current.Status)
	}
}

func TestPushLogsReturnedInStatus(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.pushLog(res.PushId, res.JobToken, "warning", "serving dir already has versions"); err != nil {
		t.Fatal(err)
	}
	if err := c.pushLog(res.PushId, res.JobToken, "error", "destination unwritable"); err != nil {
		t.Fatal(err)
	}
	if err := c.updateStatus(res.PushId, res.JobToken, schema.Failed, nil); err != nil {
		t.Fatal(err)
	}

	status, err := c.pushStatus(res.PushId)
	if err != nil {
		t.Fatal(err)
	}

	if status.Status != schema.Failed {
		t.Fatalf("expected status failed, got %v", status.Status)
	}
	if len(status.Errors) != 1 || status.Errors[0] != "destination unwritable" {
		t.Fatalf("unexpected errors %v", status.Errors)
	}
	if len(status.Warnings) != 1 || status.Warnings[0] != "serving dir already has versions" {
		t.Fatalf("unexpected warnings %v", status.Warnings)
	}
}

func TestListPushes(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	dirA := env.writeModelArtifact(t, "model-a")
	dirB := env.writeModelArtifact(t, "model-b")

	if _, err := c.startPush("model-a", dirA, "local"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.startPush("model-b", dirB, "local"); err != nil {
		t.Fatal(err)
	}

	all, err := c.listPushes("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(all))
	}

	filtered, err := c.listPushes("?model_name=model-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].ModelName != "model-b" {
		t.Fatalf("unexpected filtered pushes %+v", filtered)
	}
}

func TestListTargets(t *testing.T) {
	env := setupTestEnv(t, false)
	c := env.adminClient()

	targets, err := c.listTargets()
	if err != nil {
		t.Fatal(err)
	}

	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}

	// sorted by name: cloud, local
	if targets[0].Name != "cloud" || targets[0].Available {
		t.Fatalf("expected cloud target to be unavailable, got %+v", targets[0])
	}
	if !strings.Contains(targets[0].Error, "ai-platform") {
		t.Fatalf("unexpected target error %v", targets[0].Error)
	}
	if targets[1].Name != "local" || !targets[1].Available {
		t.Fatalf("expected local target to be available, got %+v", targets[1])
	}
}

func TestLocalRunnerPushEndToEnd(t *testing.T) {
	env := setupTestEnv(t, true)
	c := env.adminClient()

	modelDir := env.writeModelArtifact(t, "model-a")

	res, err := c.startPush("model-a", modelDir, "local")
	if err != nil {
		t.Fatal(err)
	}

	var report pushReport
	deadline := time.Now().Add(10 * time.Second)
	for {
		report, err = c.pushReport(res.PushId)
		if err != nil {
			t.Fatal(err)
		}
		if report.Status == schema.Complete || report.Status == schema.Failed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("push did not finish, status %v", report.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if report.Status != schema.Complete {
		t.Fatalf("expected push to complete, got %v", report.Status)
	}
	if report.Version == "" || report.PushedPath == "" {
		t.Fatalf("report missing push result %+v", report)
	}

	data, err := os.ReadFile(filepath.Join(report.PushedPath, "saved_model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "weights for model-a" {
		t.Fatalf("unexpected pushed artifact contents %q", string(data))
	}
}
