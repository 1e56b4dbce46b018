package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Filesystem is the push destination variant that writes the served model
// under a base directory.
type Filesystem struct {
	BaseDirectory string `json:"base_directory"`
}

// PushDestination describes where a model should be pushed. Exactly one
// variant is populated.
type PushDestination struct {
	Filesystem *Filesystem `json:"filesystem,omitempty"`
}

// AiPlatformServingArgs are the serving arguments forwarded to the managed
// ai-platform when registering a pushed model. Values are copied verbatim
// from the deployer, zero values included.
type AiPlatformServingArgs struct {
	ModelName string `json:"model_name"`
	ProjectId string `json:"project_id"`
}

type CustomConfig struct {
	AiPlatformServingArgs *AiPlatformServingArgs `json:"ai_platform_serving_args,omitempty"`
}

// PusherConfig is built fresh for every push and handed to the executor.
type PusherConfig struct {
	PushDestination PushDestination `json:"push_destination"`
	CustomConfig    CustomConfig    `json:"custom_config"`
}

// PushConfig is the full config written to shared storage for a single push
// job. The worker loads this file to perform the push.
type PushConfig struct {
	PushId    uuid.UUID `json:"push_id"`
	ModelName string    `json:"model_name"`
	ModelDir  string    `json:"model_dir"`
	Target    string    `json:"target"`

	Pusher PusherConfig `json:"pusher"`

	ModelPusherEndpoint string `json:"model_pusher_endpoint"`
}

func LoadPushConfig(configPath string) (*PushConfig, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config PushConfig
	err = json.Unmarshal(configData, &config)
	if err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	return &config, nil
}
