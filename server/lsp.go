// Package server implements a language server for program sources.
package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/Benricheson101/bfc/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "bfc-lsp"

var log = commonlog.GetLogger("bfc.server")

// LspServer publishes bracket diagnostics and command hovers for open
// documents.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

// hover describes the command under the cursor. Brackets also report the
// depth of the loop they belong to.
func hover(text string, pos protocol.Position) *protocol.Hover {
	offset, ok := byteOffset(text, pos)
	if !ok || offset >= len(text) {
		return nil
	}
	r, _ := utf8.DecodeRuneInString(text[offset:])
	cmd, ok := compiler.ParseCommand(r)
	if !ok {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%c`\n\n%s\n", cmd, byte(cmd), cmd.Doc())

	if cmd == compiler.CmdOpen || cmd == compiler.CmdClose {
		depth := compiler.Depths(text)[offset]
		if depth == 0 {
			b.WriteString("\nUnmatched: no loop is open.\n")
		} else {
			fmt.Fprintf(&b, "\nLoop depth: %d\n", depth)
		}
	}

	rng := protocol.Range{
		Start: pos,
		End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &rng,
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	log.Debugf("%s: %d diagnostic(s)", uri, len(diagnostics))

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose converts every bracket mismatch in text into an error
// diagnostic covering the offending bracket.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	lines := strings.Split(text, "\n")
	for _, e := range compiler.Check(text) {
		start := lspPosition(lines, e.Pos)
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: start,
				End:   protocol.Position{Line: start.Line, Character: start.Character + 1},
			},
			Severity: &severity,
			Source:   &source,
			Message:  strings.TrimPrefix(e.Error(), e.Pos.String()+": "),
		})
	}
	return diagnostics
}

// --- Position helpers ---

// lspPosition converts a 1-based rune position into a 0-based LSP position
// counted in UTF-16 code units.
func lspPosition(lines []string, pos compiler.Position) protocol.Position {
	lineIdx := pos.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return protocol.Position{}
	}
	var units int
	col := 1
	for _, r := range lines[lineIdx] {
		if col >= pos.Column {
			break
		}
		units += utf16.RuneLen(r)
		col++
	}
	return protocol.Position{Line: protocol.UInteger(lineIdx), Character: protocol.UInteger(units)}
}

// byteOffset converts an LSP position into a byte offset into text.
func byteOffset(text string, pos protocol.Position) (int, bool) {
	offset := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return 0, false
		}
		offset += i + 1
	}

	var units protocol.UInteger
	for i, r := range text[offset:] {
		if r == '\n' || units >= pos.Character {
			return offset + i, units == pos.Character
		}
		units += protocol.UInteger(utf16.RuneLen(r))
	}
	return len(text), units == pos.Character
}

func boolPtr(b bool) *bool {
	return &b
}
