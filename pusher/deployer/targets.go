package deployer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"model_pusher/pusher/executor"

	"gopkg.in/yaml.v3"
)

// TargetSpec is one entry in the targets config file. Type selects the
// deployer variant, the remaining fields parameterize it.
type TargetSpec struct {
	Type string `yaml:"type"`

	ProjectId string `yaml:"project_id"`
	ModelName string `yaml:"model_name"`

	// Overrides <serving_root>/<target name> as the serving model dir.
	ServingDir string `yaml:"serving_dir"`
}

type TargetsConfig struct {
	ServingRoot string                `yaml:"serving_root"`
	Targets     map[string]TargetSpec `yaml:"targets"`
}

func (c *TargetsConfig) servingModelDir(name string, spec TargetSpec) string {
	if spec.ServingDir != "" {
		return spec.ServingDir
	}
	return filepath.Join(c.ServingRoot, name)
}

// NewDeployer builds the deployer variant described by the given target spec.
func NewDeployer(spec TargetSpec, servingModelDir string) (Deployer, error) {
	step := Step{ServingModelDir: servingModelDir}

	switch spec.Type {
	case AiPlatformTarget:
		return NewAiPlatformDeployer(spec.ProjectId, spec.ModelName, step), nil
	case executor.FilesystemTarget:
		return NewLocalDeployer(step), nil
	default:
		return nil, fmt.Errorf("unknown deployer type %q", spec.Type)
	}
}

// LoadTargets parses the targets config file and builds a deployer per
// entry. Executors are not resolved here, a target whose integration is
// missing only fails when a push for it is started.
func LoadTargets(path string) (map[string]Deployer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading targets config %v: %w", path, err)
	}

	var config TargetsConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing targets config %v: %w", path, err)
	}

	deployers := make(map[string]Deployer, len(config.Targets))
	for name, spec := range config.Targets {
		d, err := NewDeployer(spec, config.servingModelDir(name, spec))
		if err != nil {
			return nil, fmt.Errorf("error in target %v: %w", name, err)
		}
		slog.Info("loaded deployment target", "target", name, "type", spec.Type)
		deployers[name] = d
	}

	return deployers, nil
}
