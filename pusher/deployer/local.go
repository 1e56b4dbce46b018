package deployer

import (
	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
)

// LocalDeployer pushes a model to a serving directory on shared storage
// without registering it with any external platform.
type LocalDeployer struct {
	Step
}

func NewLocalDeployer(step Step) *LocalDeployer {
	return &LocalDeployer{Step: step}
}

func (d *LocalDeployer) BuildPusherConfig() config.PusherConfig {
	return config.PusherConfig{
		PushDestination: config.PushDestination{
			Filesystem: &config.Filesystem{BaseDirectory: d.ServingModelDir},
		},
	}
}

func (d *LocalDeployer) ExecutorSpec() (executor.Spec, error) {
	return executor.Resolve(executor.FilesystemTarget)
}
