// Package aiplatform provides the executor that registers pushed models
// with the managed ai-platform. Importing this package (typically with a
// blank import in the binary) makes the ai-platform deployment target
// available, binaries that never push to the platform can leave it out.
package aiplatform

import (
	"context"
	"fmt"
	"log/slog"

	"model_pusher/client"
	"model_pusher/pusher/config"
	"model_pusher/pusher/deployer"
	"model_pusher/pusher/executor"

	"github.com/caarlos0/env/v10"
)

func init() {
	executor.Register(executor.Spec{
		Target: deployer.AiPlatformTarget,
		New:    newExecutor,
	})
}

type aiPlatformEnv struct {
	Endpoint string `env:"AI_PLATFORM_ENDPOINT,required"`
	ApiKey   string `env:"AI_PLATFORM_API_KEY"`
}

func newExecutor() (executor.Executor, error) {
	cfg := aiPlatformEnv{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error loading ai-platform environment: %w", err)
	}

	return &AiPlatformExecutor{
		api: client.NewBaseClient(cfg.Endpoint, cfg.ApiKey),
	}, nil
}

// AiPlatformExecutor pushes the model to its filesystem destination and then
// registers the pushed version with the platform's model hosting api. The
// serving args are forwarded as-is, the platform rejects missing or unknown
// projects and model names.
type AiPlatformExecutor struct {
	api client.BaseClient

	filesystem executor.FilesystemExecutor
}

type registerVersionRequest struct {
	ModelName     string `json:"model_name"`
	ProjectId     string `json:"project_id"`
	Version       string `json:"version"`
	DeploymentUri string `json:"deployment_uri"`
}

func (e *AiPlatformExecutor) Push(ctx context.Context, cfg *config.PushConfig) (executor.PushResult, error) {
	result, err := e.filesystem.Push(ctx, cfg)
	if err != nil {
		return executor.PushResult{}, err
	}

	servingArgs := cfg.Pusher.CustomConfig.AiPlatformServingArgs
	if servingArgs == nil {
		servingArgs = &config.AiPlatformServingArgs{}
	}

	body := registerVersionRequest{
		ModelName:     servingArgs.ModelName,
		ProjectId:     servingArgs.ProjectId,
		Version:       result.Version,
		DeploymentUri: result.PushedPath,
	}

	err = e.api.Post("/v1/models/versions").Json(body).Do(nil)
	if err != nil {
		slog.Error("error registering model version with ai-platform", "model_name", servingArgs.ModelName, "project_id", servingArgs.ProjectId, "error", err)
		return executor.PushResult{}, fmt.Errorf("error registering model version with ai-platform: %w", err)
	}

	slog.Info("model version registered with ai-platform", "model_name", servingArgs.ModelName, "project_id", servingArgs.ProjectId, "version", result.Version)

	return result, nil
}
