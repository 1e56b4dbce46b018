package deployer

import (
	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
)

// Step holds the fields shared by every deployer variant. The serving model
// directory is computed by the surrounding platform and passed in, the
// deployer uses it verbatim as the push destination.
type Step struct {
	ServingModelDir string
}

// Deployer is implemented by each deployment target. BuildPusherConfig is a
// pure function of the deployer's state, ExecutorSpec names the executor
// that performs the push. Which deployer is used for a push is decided by
// the target configuration, see config.LoadTargets.
type Deployer interface {
	BuildPusherConfig() config.PusherConfig

	ExecutorSpec() (executor.Spec, error)
}
