package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolFunc is one tool the Runtime's loop can invoke by name. args is the
// raw JSON object the model supplied; the return value is fed back to the
// model verbatim as the tool's result text. Grounded on original_source's
// @tool-decorated functions (core/meta_scout.py, tools/*.py), generalized
// to the registry-backed closed adapter set per spec.md §9's "re-architect
// dynamic tool binding as a registry keyed by tool-kind tag" note.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// ToolSet is the bound tool catalogue for one invocation, keyed by the
// name the model uses to invoke it.
type ToolSet map[string]ToolFunc

// catalogueText renders ts as the tool-catalogue prompt fragment spec.md
// §4.D(b) calls for: one line per tool name, sorted for deterministic
// prompts (useful for golden-file tests and reproducible logs).
func (ts ToolSet) catalogueText() string {
	if len(ts) == 0 {
		return "(no tools bound for this invocation)"
	}
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}

// turnEnvelope is the protocol message the model is instructed to reply
// with on every turn: either a tool call or a final answer. This plain-JSON
// turn protocol stands in for native provider tool-calling so the same loop
// logic works unchanged across both the Anthropic and OpenAI-compatible
// backends (spec.md §4.D: "no native tool-calling... assumed portable
// across both providers").
type turnEnvelope struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
	Done bool            `json:"done"`
	// Result holds the final structured answer once Done is true. Its
	// shape depends on which *SchemaText was declared for the invocation.
	Result json.RawMessage `json:"result"`
}

func parseTurnEnvelope(raw string) (*turnEnvelope, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var env turnEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("parse turn envelope: %w", err)
	}
	return &env, nil
}
