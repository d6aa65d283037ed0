package scout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scoutengine/internal/agent"
	"scoutengine/internal/domain/entity"
)

// toolKindByName maps the tool names a Scout's config declares (spec.md §6)
// to the ScoutKind whose Adapter backs them. "browser" has no adapter of
// its own; it reuses the http adapter, the same way original_source's
// browser tool is a thin wrapper over the same page-fetch primitive its
// http_request tool uses.
var toolKindByName = map[string]entity.ScoutKind{
	"rss":           entity.ScoutKindRSS,
	"reddit":        entity.ScoutKindReddit,
	"google_search": entity.ScoutKindSearch,
	"arxiv":         entity.ScoutKindArxiv,
	"http_request":  entity.ScoutKindHTTP,
	"browser":       entity.ScoutKindHTTP,
}

// fetchToolLimit bounds one adapter tool call's result count. The run's
// overall item budget is still enforced by defaultFetchLimit after the
// model's final answer is decoded.
const fetchToolLimit = 8

// buildAdapterTools binds one ToolFunc per tool name cfg declares, each a
// thin wrapper calling the matching Adapter.Fetch and formatting the
// result as the tool-result text the model reads. Grounded on
// original_source's @tool-decorated fetch functions (tools/*.py),
// replacing their dynamic by-name binding with the closed
// sourceadapter.Registry lookup spec.md §9 calls for.
func (e *Executor) buildAdapterTools(toolNames []string, cfg RawConfig) agent.ToolSet {
	ts := make(agent.ToolSet, len(toolNames))
	for _, name := range toolNames {
		kind, ok := toolKindByName[name]
		if !ok {
			continue
		}
		adapter, err := e.registry.Get(kind)
		if err != nil {
			continue // no adapter registered for this kind: silently absent from the run's tool set
		}
		toolName := name
		ts[toolName] = func(ctx context.Context, args json.RawMessage) (string, error) {
			items, err := adapter.Fetch(ctx, cfg, fetchToolLimit)
			if err != nil {
				return "", err
			}
			return formatItemsForTool(toolName, items), nil
		}
	}
	return ts
}

// imageTool wraps the Executor's ImageGenerator as a bound tool. A missing
// backend surfaces as a tool error the model reads and can route around,
// rather than aborting the run.
func (e *Executor) imageTool() agent.ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(args, &req); err != nil || req.Prompt == "" {
			req.Prompt = "a relevant illustrative image"
		}
		path, err := e.imageGen.Generate(ctx, req.Prompt)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("image generated: %s", path), nil
	}
}

func formatItemsForTool(toolName string, items []entity.Item) string {
	if len(items) == 0 {
		return fmt.Sprintf("%s: no results.", toolName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Results from %s:\n", toolName)
	for _, it := range items {
		fmt.Fprintf(&b, "- Title: %s\n  URL: %s\n  Summary: %s\n---\n", it.DisplayTitle(), it.URL, it.Summary)
	}
	return b.String()
}
