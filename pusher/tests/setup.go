package tests

import (
	"os"
	"path/filepath"
	"testing"

	"model_pusher/pusher/deployer"
	"model_pusher/pusher/schema"
	"model_pusher/pusher/services"
	"model_pusher/pusher/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	modelPusher services.ModelPusher
	api         chi.Router
	storage     storage.Storage
	runner      *RunnerStub
	db          *gorm.DB

	servingDir string
	adminKey   string
}

// The "cloud" target is configured but its executor integration is not
// linked into the test binary, which lets tests exercise the missing
// integration error path.
func setupTestEnv(t *testing.T, useLocalRunner bool) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	// Each connection to "file::memory:" gets its own database, so the
	// pool must be capped at one connection or concurrent queries land
	// on a fresh DB with no tables.
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDb.SetMaxOpenConns(1)

	err = db.AutoMigrate(&schema.Push{}, &schema.PushLog{}, &schema.ApiKey{})
	if err != nil {
		t.Fatal(err)
	}

	tmpDir := t.TempDir()

	storagePath := filepath.Join(tmpDir, "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath)

	servingDir := filepath.Join(tmpDir, "serving")

	deployers := map[string]deployer.Deployer{
		"local": deployer.NewLocalDeployer(deployer.Step{ServingModelDir: filepath.Join(servingDir, "local")}),
		"cloud": deployer.NewAiPlatformDeployer("proj-1", "model-a", deployer.Step{ServingModelDir: filepath.Join(servingDir, "cloud")}),
	}

	runnerStub := newRunnerStub()
	var runner services.Runner = runnerStub
	if useLocalRunner {
		runner = services.NewLocalRunner(db)
	}

	secret := []byte("290zcv02ai249")

	modelPusher := services.NewModelPusher(db, store, deployers, runner, "http://localhost:8000", secret)

	return &testEnv{
		modelPusher: modelPusher,
		api:         modelPusher.Routes(),
		storage:     store,
		runner:      runnerStub,
		db:          db,
		servingDir:  servingDir,
		adminKey:    modelPusher.AdminApiKey(),
	}
}

func (t *testEnv) adminClient() client {
	return client{api: t.api, apiKey: t.adminKey}
}

func (t *testEnv) writeModelArtifact(tb testing.TB, name string) string {
	tb.Helper()

	modelDir := filepath.Join("models", name)
	fullpath := filepath.Join(t.storage.Location(), modelDir)

	if err := os.MkdirAll(fullpath, 0777); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fullpath, "saved_model.bin"), []byte("weights for "+name), 0666); err != nil {
		tb.Fatal(err)
	}

	return modelDir
}
