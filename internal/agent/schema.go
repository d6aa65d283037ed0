package agent

import (
	"encoding/json"
	"fmt"

	"scoutengine/internal/domain/entity"
)

// ItemsSchemaText is embedded verbatim in the system prompt whenever the
// Runtime expects a list of discovered items back (spec.md §4.D: "a
// declared structured-output schema"). There is no general-purpose JSON
// Schema validator in the teacher's or the pack's dependency surface, so
// the contract is enforced the Go way: a textual description the model
// reads, and a hand-written decode-and-validate pass in DecodeItems below,
// the same division of labor the teacher gives its Claude/OpenAI prompts
// (build a literal instruction string, trust the SDK's typed response).
const ItemsSchemaText = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "title":      {"type": "string"},
      "url":        {"type": "string"},
      "summary":    {"type": "string"},
      "sources":    {"type": "array", "items": {"type": "string"}},
      "image_path": {"type": "string"}
    },
    "required": ["title", "url", "summary"]
  }
}`

// IndexSchemaText is used for the generation-intent "pick the best item"
// invocation (spec.md §4.E.8): a bare 1-based integer.
const IndexSchemaText = `{"type": "integer", "minimum": 1}`

// TextSchemaText is used for the draft-writing and refine invocations: a
// bare string, the platform-formatted post body.
const TextSchemaText = `{"type": "string"}`

type itemPayload struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	ImagePath string   `json:"image_path"`
}

// DecodeItems decodes and validates raw against ItemsSchemaText's contract.
// A title or url missing from any element is a schema violation: the model
// was asked for required fields and didn't supply them.
func DecodeItems(raw json.RawMessage) ([]entity.Item, error) {
	var payload []itemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	items := make([]entity.Item, 0, len(payload))
	for i, p := range payload {
		if p.Title == "" || p.URL == "" {
			return nil, fmt.Errorf("decode items: element %d missing required title/url", i)
		}
		items = append(items, entity.Item{
			Title:     p.Title,
			URL:       p.URL,
			Summary:   p.Summary,
			Sources:   p.Sources,
			ImagePath: p.ImagePath,
		})
	}
	return items, nil
}

// DecodeIndex decodes and validates raw against IndexSchemaText's contract.
func DecodeIndex(raw json.RawMessage) (int, error) {
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return 0, fmt.Errorf("decode index: %w", err)
	}
	if idx < 1 {
		return 0, fmt.Errorf("decode index: must be >= 1, got %d", idx)
	}
	return idx, nil
}

// DecodeText decodes and validates raw against TextSchemaText's contract.
func DecodeText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("decode text: empty result")
	}
	return s, nil
}
