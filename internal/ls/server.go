package ls

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspServer "github.com/tliron/glsp/server"
)

// Run wires up the LSP handler and starts the server on stdio.
func Run(logLevel string) error {
	configureLogging(logLevel)

	h := NewHandler()

	lspHandler := protocol.Handler{
		Initialize:             h.Initialize,
		Initialized:            h.Initialized,
		Shutdown:               h.Shutdown,
		SetTrace:               h.SetTrace,
		TextDocumentDidOpen:    h.DidOpen,
		TextDocumentDidChange:  h.DidChange,
		TextDocumentDidSave:    h.DidSave,
		TextDocumentDidClose:   h.DidClose,
		TextDocumentCompletion: h.Completion,
		TextDocumentHover:      h.Hover,
	}

	s := glspServer.NewServer(&lspHandler, "wsagentcfg-ls", false)
	return s.RunStdio()
}

func configureLogging(level string) {
	verbosity := 2
	switch level {
	case "debug":
		verbosity = 5
	case "info":
		verbosity = 4
	case "warning", "warn":
		verbosity = 2
	case "error":
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
}
