package ls

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"wsagentcfg/internal/config"
)

// document holds one open config file's text alongside the result of the
// most recent analyze pass over it: the diagnostics to publish and, when
// parsing and validation both succeeded, the compiled *config.Config. The
// cached config is what lets Hover answer questions about the document's
// own group aliases, not just the static directive grammar.
type document struct {
	URI         string
	Content     string
	Diagnostics []protocol.Diagnostic
	Cfg         *config.Config // nil unless the last analyze pass fully succeeded
}

// store is a thread-safe map from document URI to document.
type store struct {
	mu   sync.RWMutex
	docs map[string]*document
}

// newStore returns an initialized store.
func newStore() *store {
	return &store{docs: make(map[string]*document)}
}

// Open stores a newly opened document, analyzing it once, and returns the
// diagnostics to publish.
func (s *store) Open(uri, text string) []protocol.Diagnostic {
	return s.put(uri, text)
}

// Update replaces an existing document's content, re-analyzing it, and
// returns the diagnostics to publish.
func (s *store) Update(uri, text string) []protocol.Diagnostic {
	return s.put(uri, text)
}

func (s *store) put(uri, text string) []protocol.Diagnostic {
	diags, cfg := analyzeWithConfig(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &document{URI: uri, Content: text, Diagnostics: diags, Cfg: cfg}
	return diags
}

// Close removes a document from the store.
func (s *store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get retrieves a document's content by URI.
func (s *store) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", false
	}
	return doc.Content, true
}

// Diagnostics retrieves a document's last cached diagnostics by URI.
func (s *store) Diagnostics(uri string) ([]protocol.Diagnostic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	return doc.Diagnostics, true
}

// Config retrieves the document's last successfully parsed+validated
// config, if any. Callers must not mutate the returned Config.
func (s *store) Config(uri string) (*config.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok || doc.Cfg == nil {
		return nil, false
	}
	return doc.Cfg, true
}
