package scout

import (
	"context"
	"encoding/json"

	"scoutengine/internal/agent"
)

// maxMetaDepth bounds meta-scout recursion. original_source's
// core/meta_scout.py create_scout_tool has no depth limit of its own — it
// relies on an operator never configuring a cycle. This engine adds a hard
// cap rather than trusting that, since a self-referencing (directly or
// transitively) meta scout would otherwise recurse until the call stack or
// the agent's turn budget gives out.
const maxMetaDepth = 3

// buildMetaTools resolves cfg's child_scouts by name into bound tools that,
// when invoked, run the child scout's own discovery pass (fetch + dedup,
// no select/draft) and return its surviving items as tool-result text.
// Grounded on create_scout_tool: "look up the child scout by name, skip it
// silently if it doesn't exist" — extended here to also skip a child
// already on the call stack, for the depth-cap reason above.
func (e *Executor) buildMetaTools(ctx context.Context, cfg RawConfig, visited map[int64]bool, depth int) agent.ToolSet {
	ts := agent.ToolSet{}
	if depth >= maxMetaDepth {
		return ts
	}
	for _, name := range cfg.Meta().ChildScouts {
		child, err := e.scoutRepo.GetByName(ctx, name)
		if err != nil || child == nil || visited[child.ID] {
			continue
		}
		childCopy := child
		toolName := sanitizeToolName(childCopy.Name)
		ts[toolName] = func(ctx context.Context, args json.RawMessage) (string, error) {
			childCfg, err := ParseConfig(childCopy.ConfigJSON)
			if err != nil {
				return "", err
			}
			childVisited := make(map[int64]bool, len(visited)+1)
			for k := range visited {
				childVisited[k] = true
			}
			childVisited[childCopy.ID] = true

			items, err := e.discover(ctx, childCopy, childCfg, "", childVisited, depth+1)
			if err != nil {
				return "", err
			}
			return formatItemsForTool(toolName, items), nil
		}
	}
	return ts
}

// sanitizeToolName turns a Scout name into a safe tool identifier: lower
// ASCII letters and digits pass through, everything else becomes an
// underscore, prefixed so it never collides with a built-in tool name.
func sanitizeToolName(name string) string {
	out := make([]rune, 0, len(name)+6)
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '_')
		}
	}
	return "scout_" + string(out)
}
