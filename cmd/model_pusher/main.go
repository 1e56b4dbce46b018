package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"model_pusher/pusher/deployer"
	"model_pusher/pusher/schema"
	"model_pusher/pusher/services"
	"model_pusher/pusher/storage"

	_ "model_pusher/pusher/executor/aiplatform"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type modelPusherEnv struct {
	IngressHostname            string
	PrivateModelPusherEndpoint string

	ShareDir      string
	TargetsConfig string
	JwtSecret     string

	DatabaseUri string
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

/**
 * ==========================================================================
 * ==== All variables that are used by the model pusher must be loaded   ====
 * ==== here. This is to make the data flow clear so that a user can see ====
 * ==== what variables are exposed, and how the values are propagated    ====
 * ==== through the system.                                              ====
 * ==========================================================================
 */
func loadEnv() modelPusherEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := modelPusherEnv{
		IngressHostname:            requiredEnv("INGRESS_HOSTNAME"),
		PrivateModelPusherEndpoint: requiredEnv("PRIVATE_MODEL_PUSHER_ENDPOINT"),

		ShareDir:      requiredEnv("SHARE_DIR"),
		TargetsConfig: requiredEnv("TARGETS_CONFIG"),
		JwtSecret:     requiredEnv("JWT_SECRET"),

		DatabaseUri: requiredEnv("DATABASE_URI"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return env
}

func (env *modelPusherEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(&schema.Push{}, &schema.PushLog{}, &schema.ApiKey{})
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	printApiKey := flag.Bool("print_api_key", false, "If specified a fresh admin api key is generated and printed on startup.")

	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	err := os.MkdirAll(filepath.Join(env.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/model_pusher.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	initLogging(logFile)

	db := initDb(env.postgresDsn())

	deployers, err := deployer.LoadTargets(env.TargetsConfig)
	if err != nil {
		log.Fatalf("error loading deployment targets: %v", err)
	}

	sharedStorage := storage.NewSharedDisk(env.ShareDir)

	modelPusher := services.NewModelPusher(
		db,
		sharedStorage,
		deployers,
		services.NewLocalRunner(db),
		env.PrivateModelPusherEndpoint,
		[]byte(env.JwtSecret),
	)

	if *printApiKey {
		fmt.Printf("ADMIN_API_KEY=%v\n", modelPusher.AdminApiKey())
	}

	go modelPusher.PushStatusSync(time.Minute)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{env.IngressHostname},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", modelPusher.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
	modelPusher.StopPushStatusSync()
}
