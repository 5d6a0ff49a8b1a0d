package ls

import (
	"sort"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// topLevelDirectives mirrors internal/config's directive table (spec.md
// §4.6) so completion never drifts from what the parser actually accepts.
var topLevelDirectives = func() []string {
	names := make([]string, 0, len(directiveDocs))
	for name := range directiveDocs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// sectionKeywords are the *.list.start/.end lines, offered alongside the
// top-level directives since both are valid at the start of a line.
var sectionKeywords = []string{
	"proxy.server.list.start", "proxy.server.list.end",
	"proxy.domain.list.start", "proxy.domain.list.end",
	"proxy.resolve.list.start", "proxy.resolve.list.end",
	"no-proxy.domain.list.start", "no-proxy.domain.list.end",
	"https-relay.domain.list.start", "https-relay.domain.list.end",
	"agent.https-relay.cert-key.list.start", "agent.https-relay.cert-key.list.end",
	"proxy.https-relay.domain.list.start", "proxy.https-relay.domain.list.end",
}

// Completion handles textDocument/completion. It only offers directive
// names, and only when the cursor sits at the first token of its line — the
// config grammar has no argument-position completions worth modeling.
func (h *Handler) Completion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	empty := []protocol.CompletionItem{}

	content, ok := h.store.Get(string(params.TextDocument.URI))
	if !ok {
		return empty, nil
	}
	if !atFirstTokenPosition(content, params.Position) {
		return empty, nil
	}

	kind := protocol.CompletionItemKindKeyword
	items := make([]protocol.CompletionItem, 0, len(topLevelDirectives)+len(sectionKeywords))
	for _, name := range topLevelDirectives {
		n := name
		items = append(items, protocol.CompletionItem{Label: n, Kind: &kind})
	}
	for _, name := range sectionKeywords {
		n := name
		items = append(items, protocol.CompletionItem{Label: n, Kind: &kind})
	}
	return items, nil
}

func atFirstTokenPosition(content string, pos protocol.Position) bool {
	lines := strings.Split(content, "\n")
	if int(pos.Line) >= len(lines) {
		return true
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	prefix := line[:col]
	afterLeadingSpace := strings.TrimLeft(prefix, " \t")
	return !strings.ContainsAny(afterLeadingSpace, " \t")
}
