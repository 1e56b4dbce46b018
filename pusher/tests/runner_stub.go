package tests

import (
	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
)

type startedPush struct {
	target string
	config *config.PushConfig
}

// RunnerStub records started pushes without executing them. Tests drive
// status transitions through the worker endpoints the way a real push
// worker would.
type RunnerStub struct {
	started []startedPush
}

func newRunnerStub() *RunnerStub {
	return &RunnerStub{}
}

func (r *RunnerStub) StartPush(spec executor.Spec, cfg *config.PushConfig) error {
	r.started = append(r.started, startedPush{target: spec.Target, config: cfg})
	return nil
}
