package ls

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DidOpen handles textDocument/didOpen.
func (h *Handler) DidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	diags := h.store.Open(uri, params.TextDocument.Text)
	h.publishDiagnostics(ctx, uri, diags)
	return nil
}

// DidChange handles textDocument/didChange (full sync).
func (h *Handler) DidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	var text string
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEvent:
		text = c.Text
	case protocol.TextDocumentContentChangeEventWhole:
		text = c.Text
	}
	diags := h.store.Update(uri, text)
	h.publishDiagnostics(ctx, uri, diags)
	return nil
}

// DidSave handles textDocument/didSave.
func (h *Handler) DidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	var diags []protocol.Diagnostic
	if params.Text != nil {
		diags = h.store.Update(uri, *params.Text)
	} else {
		var ok bool
		diags, ok = h.store.Diagnostics(uri)
		if !ok {
			return nil
		}
	}
	h.publishDiagnostics(ctx, uri, diags)
	return nil
}

// DidClose handles textDocument/didClose.
func (h *Handler) DidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.store.Close(string(params.TextDocument.URI))
	return nil
}

func (h *Handler) publishDiagnostics(ctx *glsp.Context, uri string, diags []protocol.Diagnostic) {
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}
