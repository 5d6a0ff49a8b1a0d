package ls

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestStore_OpenUpdateClose(t *testing.T) {
	s := newStore()
	s.Open("file:///a.cfg", "agent.listen 127.0.0.1:1080\n")

	text, ok := s.Get("file:///a.cfg")
	if !ok || text != "agent.listen 127.0.0.1:1080\n" {
		t.Fatalf("Get = %q, %v", text, ok)
	}

	s.Update("file:///a.cfg", "agent.listen 127.0.0.1:1081\n")
	text, _ = s.Get("file:///a.cfg")
	if text != "agent.listen 127.0.0.1:1081\n" {
		t.Errorf("after Update, Get = %q", text)
	}

	s.Close("file:///a.cfg")
	if _, ok := s.Get("file:///a.cfg"); ok {
		t.Error("expected document to be gone after Close")
	}
}

func TestAnalyze_ValidConfigHasNoDiagnostics(t *testing.T) {
	src := "proxy.server.auth alice:pass\n" +
		"proxy.server.list.start\n" +
		"websocks://127.0.0.1:18686\n" +
		"proxy.server.list.end\n" +
		"proxy.domain.list.start\n" +
		"youtube.com\n" +
		"proxy.domain.list.end\n"

	diags := analyze(src)
	if len(diags) != 0 {
		t.Errorf("got %d diagnostics, want 0: %+v", len(diags), diags)
	}
}

func TestAnalyze_UnknownDirectiveProducesDiagnostic(t *testing.T) {
	diags := analyze("not.a.real.directive foo\n")
	if len(diags) == 0 {
		t.Fatal("expected at least one diagnostic")
	}
	if diags[0].Severity == nil || *diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("expected error severity, got %+v", diags[0].Severity)
	}
}

func TestAnalyze_CrossFieldValidationFailureReportsAtTopOfFile(t *testing.T) {
	// agent.direct-relay on with an https-relay.domain.list but no cert-key
	// pair violates validate.Run's step 2/3 invariant.
	src := "proxy.server.auth alice:pass\n" +
		"agent.direct-relay on\n" +
		"https-relay.domain.list.start\n" +
		"youtube.com\n" +
		"https-relay.domain.list.end\n"

	diags := analyze(src)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	if diags[0].Range.Start.Line != 0 {
		t.Errorf("expected validation diagnostic at line 0, got %d", diags[0].Range.Start.Line)
	}
}

func TestAtFirstTokenPosition(t *testing.T) {
	content := "agent.listen 127.0.0.1:1080\n"
	if !atFirstTokenPosition(content, protocol.Position{Line: 0, Character: 3}) {
		t.Error("expected true while typing the first token")
	}
	if atFirstTokenPosition(content, protocol.Position{Line: 0, Character: 20}) {
		t.Error("expected false once past the first token")
	}
}

func TestWordAt(t *testing.T) {
	content := "agent.listen 127.0.0.1:1080\n"
	if got := wordAt(content, protocol.Position{Line: 0, Character: 3}); got != "agent.listen" {
		t.Errorf("wordAt = %q", got)
	}
}

func TestStore_CachesConfigOnSuccessfulParse(t *testing.T) {
	s := newStore()
	src := "proxy.server.auth alice:pass\n" +
		"proxy.server.list.start\n" +
		"websocks://127.0.0.1:18686\n" +
		"proxy.server.list.end\n" +
		"proxy.domain.list.start\n" +
		"youtube.com\n" +
		"proxy.domain.list.end\n"

	diags := s.Open("file:///a.cfg", src)
	if len(diags) != 0 {
		t.Fatalf("got %d diagnostics, want 0: %+v", len(diags), diags)
	}

	cfg, ok := s.Config("file:///a.cfg")
	if !ok || cfg == nil {
		t.Fatal("expected a cached config after a valid parse")
	}
	if _, ok := cfg.Groups["DEFAULT"]; !ok {
		t.Errorf("expected DEFAULT group in cached config, got %+v", cfg.GroupOrder)
	}

	s.Update("file:///a.cfg", "not.a.real.directive foo\n")
	if _, ok := s.Config("file:///a.cfg"); ok {
		t.Error("expected cached config to be cleared after a failing re-parse")
	}
}

func TestHover_GroupAlias(t *testing.T) {
	h := NewHandler()
	uri := protocol.DocumentUri("file:///b.cfg")
	domainLine := "proxy.domain.list.start myservers"
	src := "proxy.server.auth alice:pass\n" +
		"proxy.server.list.start myservers\n" +
		"websocks://127.0.0.1:18686\n" +
		"proxy.server.list.end\n" +
		domainLine + "\n" +
		"youtube.com\n" +
		"proxy.domain.list.end\n"
	h.store.Open(string(uri), src)

	hov, err := h.Hover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 4, Character: uint32(len(domainLine) - 2)},
		},
	})
	if err != nil {
		t.Fatalf("Hover: %v", err)
	}
	if hov == nil {
		t.Fatal("expected a hover result for the myservers group alias")
	}
	content, ok := hov.Contents.(protocol.MarkupContent)
	if !ok || !strings.Contains(content.Value, "1 domain rule") {
		t.Errorf("hover content = %+v, want mention of domain rule count", hov.Contents)
	}
}
