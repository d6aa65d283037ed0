package scout

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// ImageGenerator is the capability interface backing the optional
// "generate_image_stability" tool (spec.md §6: image_generation). No
// example repo in the retrieval pack carries an image-generation SDK, so
// this follows the same capability-interface-with-noop-default shape as
// internal/dedup's Embedder and internal/review's HumanChannel: the engine
// degrades gracefully rather than failing a scout run outright when no
// backend is wired.
type ImageGenerator interface {
	// Generate returns a filesystem path to the generated image for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// NoopImageGenerator reports its capability as missing, surfaced to the
// model as a tool error (the Runtime folds ToolFunc errors into the
// transcript as "TOOL ... ERROR: ...", letting the model continue without
// an image rather than aborting the run).
type NoopImageGenerator struct{}

func (NoopImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", &entity.ConfigurationMissingError{Key: "IMAGE_GENERATION_BACKEND"}
}
