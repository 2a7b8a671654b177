// Package classifier wraps a text-classification engine behind a gateway
// that creates the engine lazily, serializes inference, and turns every
// failure into an error verdict instead of a Go error.
package classifier

import (
	"context"

	"github.com/dtnitsch/ragebait-block/models"
)

// Fixed engine identity. The gateway never changes these at runtime.
const (
	ModelHub = "huggingface"
	TaskName = "text-classification"
	ModelID  = "Xenova/distilbert-base-uncased-finetuned-sst-2-english"
)

// EngineConfig is sent once when the engine is created.
type EngineConfig struct {
	ModelHub string `json:"modelHub"`
	TaskName string `json:"taskName"`
	ModelID  string `json:"modelId"`
}

// DefaultEngineConfig returns the fixed sentiment model configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ModelHub: ModelHub,
		TaskName: TaskName,
		ModelID:  ModelID,
	}
}

// RunOptions mirrors the pipeline options. A nil TopK asks for every label.
type RunOptions struct {
	TopK *int `json:"top_k"`
}

// RunRequest is one inference call.
type RunRequest struct {
	Args    []string   `json:"args"`
	Options RunOptions `json:"options"`
}

// Engine is the black-box classification capability.
type Engine interface {
	Create(ctx context.Context, cfg EngineConfig) error
	Run(ctx context.Context, req RunRequest) ([]models.LabelScore, error)
}
