package ls

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"wsagentcfg/internal/config"
	"wsagentcfg/internal/validate"
)

var documentLevelRange = protocol.Range{
	Start: protocol.Position{Line: 0, Character: 0},
	End:   protocol.Position{Line: 0, Character: 0},
}

// analyze runs content through config.Parse and, if that succeeds,
// validate.Run, turning every failure into an LSP diagnostic. Parse errors
// carry their own line; validation errors are cross-field by nature and are
// reported against the top of the file.
func analyze(content string) []protocol.Diagnostic {
	diags, _ := analyzeWithConfig(content)
	return diags
}

// analyzeWithConfig is analyze plus the compiled *config.Config, returned
// only when both parsing and validation succeeded. store.put caches this
// alongside the document's text so Hover can answer questions about the
// document's own group aliases without re-parsing.
func analyzeWithConfig(content string) ([]protocol.Diagnostic, *config.Config) {
	diags := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := "wsagentcfg"

	cfg, parseErrs := config.Parse(content, diagnosticDeps())
	for _, pe := range parseErrs {
		diags = append(diags, protocol.Diagnostic{
			Range:    pe.Range,
			Severity: &severity,
			Source:   &source,
			Message:  pe.Message,
		})
	}
	if len(parseErrs) > 0 {
		return diags, nil
	}

	if err := validate.Run(cfg, noopCertKeyStore{}); err != nil {
		diags = append(diags, protocol.Diagnostic{
			Range:    documentLevelRange,
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
		return diags, nil
	}
	return diags, cfg
}
