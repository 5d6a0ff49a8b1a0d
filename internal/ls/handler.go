// Package ls implements a language server for the agent config grammar
// (spec.md §4.6), adapted from the teacher's Caddyfile LSP: the same
// document-store/handler/analyzer split, driving internal/config.Parse and
// internal/validate.Run instead of a Caddyfile parser.
package ls

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const version = "0.0.1"

// Handler holds references to shared server state.
type Handler struct {
	store *store
}

// NewHandler creates a Handler backed by a fresh document store.
func NewHandler() *Handler {
	return &Handler{store: newStore()}
}

// Initialize handles the LSP initialize request.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	return protocol.InitializeResult{
		Capabilities: h.createServerCapabilities(),
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "wsagentcfg-ls",
			Version: strPtr(version),
		},
	}, nil
}

// Initialized is called after the client acknowledges initialize.
func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

// Shutdown gracefully shuts the server down.
func (h *Handler) Shutdown(ctx *glsp.Context) error { return nil }

// SetTrace updates the trace level.
func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error { return nil }

func (h *Handler) createServerCapabilities() protocol.ServerCapabilities {
	syncKind := protocol.TextDocumentSyncKindFull
	triggerChars := []string{"."}

	return protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: boolPtr(true),
			Change:    &syncKind,
			Save:      &protocol.SaveOptions{IncludeText: boolPtr(true)},
		},
		HoverProvider: true,
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: triggerChars,
		},
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
