package executor

import (
	"context"
	"fmt"
	"sync"

	"model_pusher/pusher/config"
)

// PushResult describes where a completed push landed.
type PushResult struct {
	Version    string `json:"version"`
	PushedPath string `json:"pushed_path"`
}

// Executor performs the actual push of a model artifact to its destination.
type Executor interface {
	Push(ctx context.Context, config *config.PushConfig) (PushResult, error)
}

// Spec identifies a registered executor implementation for a deployment
// target. The same spec is returned on every resolution.
type Spec struct {
	Target string
	New    func() (Executor, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Spec{}
)

// Register adds an executor implementation to the registry. Integrations
// call this from init, so registering the same target twice indicates two
// packages claiming the same integration.
func Register(spec Spec) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[spec.Target]; exists {
		panic(fmt.Sprintf("executor for target %q registered twice", spec.Target))
	}
	registry[spec.Target] = spec
}

// Resolve returns the executor spec for the given target. It fails if the
// integration providing the executor is not linked into the binary.
func Resolve(target string) (Spec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	spec, ok := registry[target]
	if !ok {
		return Spec{}, fmt.Errorf("no executor is registered for target %q, the integration may not be included in this build", target)
	}
	return spec, nil
}
