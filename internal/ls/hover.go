package ls

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"wsagentcfg/internal/config"
)

// directiveDocs gives a one-line explanation of every top-level directive
// the parser recognizes (spec.md §4.6), shown on hover and used to build the
// completion list.
var directiveDocs = map[string]string{
	"agent.listen":                   "Socks5 listen port (1-65535).",
	"agent.socks5.listen":            "Alias for agent.listen.",
	"agent.httpconnect.listen":       "HTTP CONNECT proxy listen port.",
	"agent.ss.listen":                "Shadowsocks listen port.",
	"agent.ss.password":              "Shadowsocks password; required if agent.ss.listen is set.",
	"agent.dns.listen":               "Local DNS proxy listen port.",
	"agent.gateway":                  "on/off — enable the transparent gateway mode.",
	"agent.gateway.pac.listen":       "PAC file HTTP listen port.",
	"agent.direct-relay":             "on/off — terminate TLS locally for https-relay domains.",
	"agent.proxy-relay":              "on/off/auto — relay TLS termination results back through the proxy.",
	"agent.cacerts.path":             "Path to a custom CA bundle used to verify upstream TLS.",
	"agent.cacerts.pswd":             "Passphrase for the CA bundle, if encrypted.",
	"agent.cert.verify":              "on/off — verify upstream TLS certificates.",
	"agent.strict":                   "on/off — reject ambiguous or permissive configuration shapes.",
	"agent.pool":                     "Connection pool size per upstream server (non-negative integer).",
	"agent.auto-sign":                "auto_sign_cert auto_sign_key [work_dir] — local CA for direct-relay leaf certs.",
	"proxy.server.auth":              "user:pass credentials presented to upstream WebSocks servers.",
	"proxy.server.hc":                "on/off — health-check upstream servers before routing to them.",
	"proxy.https-relay.domain.merge": "on/off — merge every proxy.domain.list into proxy.https-relay.domain.list.",
}

// Hover handles textDocument/hover. If the cursor sits on a recognized
// directive name, its doc string is shown. Otherwise, if the document's
// last analyze pass produced a valid config, the word is checked against
// that config's own group aliases so hovering a group name shows what it
// resolves to in this document.
func (h *Handler) Hover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := string(params.TextDocument.URI)
	content, ok := h.store.Get(uri)
	if !ok {
		return nil, nil
	}
	word := wordAt(content, params.Position)

	if doc, ok := directiveDocs[word]; ok {
		return hoverText(doc), nil
	}

	if cfg, ok := h.store.Config(uri); ok {
		if doc, ok := groupAliasHover(cfg, word); ok {
			return hoverText(doc), nil
		}
	}

	return nil, nil
}

func hoverText(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindPlainText,
			Value: value,
		},
	}
}

// groupAliasHover explains a group alias token by cross-referencing the
// document's own compiled config: the upstream server list it names, and
// every per-group matcher list (domain, resolve-at-upstream) it appears in.
func groupAliasHover(cfg *config.Config, word string) (string, bool) {
	group, ok := cfg.Groups[word]
	if !ok {
		return "", false
	}
	parts := []string{fmt.Sprintf("group %q: %d server(s)", word, len(group.Entries))}
	if n := len(cfg.Domains.List(word)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d domain rule(s)", n))
	}
	if n := len(cfg.ProxyResolves.List(word)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d resolve-at-upstream rule(s)", n))
	}
	return strings.Join(parts, ", "), true
}

// wordAt returns the whitespace-delimited token under pos.
func wordAt(content string, pos protocol.Position) string {
	lines := strings.Split(content, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	start := col
	for start > 0 && !isSpace(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && !isSpace(line[end]) {
		end++
	}
	return line[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }
