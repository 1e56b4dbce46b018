package deployer

import (
	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
)

// AiPlatformTarget names the executor that registers pushed models with the
// managed ai-platform. The implementation lives in pusher/executor/aiplatform
// and is only present if that package is linked into the binary.
const AiPlatformTarget = "ai-platform"

// AiPlatformDeployer pushes a model to a serving directory and registers it
// for serving on the managed ai-platform. ProjectId and modelName are
// optional, they are forwarded to the platform as-is and validated there.
type AiPlatformDeployer struct {
	Step

	projectId string
	modelName string
}

func NewAiPlatformDeployer(projectId, modelName string, step Step) *AiPlatformDeployer {
	return &AiPlatformDeployer{Step: step, projectId: projectId, modelName: modelName}
}

func (d *AiPlatformDeployer) BuildPusherConfig() config.PusherConfig {
	servingArgs := config.AiPlatformServingArgs{
		ModelName: d.modelName,
		ProjectId: d.projectId,
	}

	return config.PusherConfig{
		PushDestination: config.PushDestination{
			Filesystem: &config.Filesystem{BaseDirectory: d.ServingModelDir},
		},
		CustomConfig: config.CustomConfig{
			AiPlatformServingArgs: &servingArgs,
		},
	}
}

// ExecutorSpec resolves the ai-platform executor at call time rather than at
// construction so that a deployer for this target can be configured without
// the integration being present.
func (d *AiPlatformDeployer) ExecutorSpec() (executor.Spec, error) {
	return executor.Resolve(AiPlatformTarget)
}
