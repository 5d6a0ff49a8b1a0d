// Package config parses a WebSocks agent configuration file into an
// in-memory, read-only Config model (spec.md §3, §4.6) and exposes the
// matcher/validator/policy layers built on top of it.
package config

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/group"
	"wsagentcfg/internal/matcher"
)

// TriState models proxy_relay's {On, Off, Auto} option (spec.md §3).
type TriState int

const (
	Off TriState = iota
	On
	Auto
)

func (t TriState) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// ServerEntry is one upstream server line inside a proxy.server.list block
// (spec.md §3 ServerEntry). Identity is RawID, the original URL line minus
// its scheme.
type ServerEntry struct {
	RawID    string
	Host     string
	Port     uint16
	UseSSL   bool
	UseKCP   bool
	DialAddr string // resolved/subprocess-local dial target
	Program  string // external program template, if any

	// SubprocessHandle is set when Program spawned the upstream; nil when
	// dialing a resolved address directly (spec.md §3 ServerEntry).
	SubprocessHandle collab.Process

	// PerLoopKCPFDs holds one opaque H2StreamedClientFDs handle per distinct
	// worker loop, built when UseKCP is set (spec.md §4.6 step 5). Keyed by
	// the loop identity collab.LoopGroup.Next() returns.
	PerLoopKCPFDs map[any]*H2StreamedClientFDs
}

// H2StreamedClientFDs is an opaque per-loop, KCP-backed transport handle
// (spec.md §3, §4.6 step 5). KCP and HTTP/2 stream multiplexing are
// explicitly out of scope (§1 Non-goals) — the core never frames or
// multiplexes through this type, it only allocates one per loop so
// ServerEntry has somewhere to carry the handle the real transport would
// fill in.
type H2StreamedClientFDs struct{}

// ServerGroupConfig is the parsed form of one alias's proxy.server.list block.
type ServerGroupConfig struct {
	Alias   string
	Handle  collab.ServerGroup
	Entries []ServerEntry
}

// ParseError is a fatal parse-time diagnostic, carrying a source position
// reused from github.com/tliron/glsp's protocol types so the same value can
// back both a CLI error message and a language-server diagnostic.
type ParseError struct {
	Line    int
	Range   protocol.Range
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func lineRange(line int) protocol.Range {
	l := uint32(0)
	if line > 0 {
		l = uint32(line - 1)
	}
	return protocol.Range{
		Start: protocol.Position{Line: l, Character: 0},
		End:   protocol.Position{Line: l, Character: 0},
	}
}

// Config is the root, immutable-after-validation model (spec.md §3).
type Config struct {
	Socks5Port      uint16
	HTTPConnectPort uint16
	SSPort          uint16
	DNSPort         uint16
	PACPort         uint16
	SSPassword      string

	Gateway                    bool
	DirectRelay                bool
	VerifyCert                 bool
	StrictMode                 bool
	NoHealthCheck              bool
	ProxyHTTPSRelayDomainMerge bool
	ProxyRelay                 TriState

	User string
	Pass string

	CACertsPath string
	CACertsPswd string

	PoolSize int

	AutoSignCert             string
	AutoSignKey              string
	AutoSignWorkDir          string
	AutoSignWorkDirEphemeral bool

	GroupOrder []string
	Groups     map[string]*ServerGroupConfig

	Domains        *AliasMatchers
	ProxyResolves  *AliasMatchers
	NoProxyDomains *AliasMatchers

	HTTPSRelayDomains      []matcher.Matcher
	ProxyHTTPSRelayDomains []matcher.Matcher
	HTTPSRelayCertKeys     []collab.CertKey

	// httpsRelayCertKeyFiles queues raw "<cert...> <key>" lines for
	// resolution into HTTPSRelayCertKeys during validation (§4.7 step 2).
	httpsRelayCertKeyFiles [][]string
}

func newConfig() *Config {
	return &Config{
		VerifyCert:     true,
		PoolSize:       10,
		Groups:         make(map[string]*ServerGroupConfig),
		Domains:        NewAliasMatchers(),
		ProxyResolves:  NewAliasMatchers(),
		NoProxyDomains: NewAliasMatchers(),
	}
}

// ResolvesProxyRelay computes the tri-state's effective boolean at query
// time, per the "Tri-state auto" design note: Auto resolves lazily to
// !HTTPSRelayDomains.empty(), never eagerly at parse time.
func (c *Config) ResolvesProxyRelay() bool {
	switch c.ProxyRelay {
	case On:
		return true
	case Off:
		return false
	default: // Auto
		return len(c.HTTPSRelayDomains) > 0
	}
}

// AliasMatchers is an insertion-ordered alias -> matcher-list mapping. Go
// maps have no iteration order of their own, and spec.md §3/§8 makes
// iteration order load-bearing (first match wins, DEFAULT yielded last), so
// every per-group matcher mapping in Config uses this instead of a bare map.
type AliasMatchers struct {
	order []string
	m     map[string][]matcher.Matcher
}

// NewAliasMatchers returns an empty AliasMatchers.
func NewAliasMatchers() *AliasMatchers {
	return &AliasMatchers{m: make(map[string][]matcher.Matcher)}
}

// Append adds mt to alias's list, registering alias in insertion order the
// first time it is seen.
func (a *AliasMatchers) Append(alias string, mt matcher.Matcher) {
	if _, ok := a.m[alias]; !ok {
		a.order = append(a.order, alias)
	}
	a.m[alias] = append(a.m[alias], mt)
}

// List returns alias's matcher list in append order.
func (a *AliasMatchers) List(alias string) []matcher.Matcher { return a.m[alias] }

// Aliases returns every alias with at least one matcher, DEFAULT last
// (spec.md's "Ordering and DEFAULT-last" design note: a read-time
// transformation, not an insertion-time one).
func (a *AliasMatchers) Aliases() []string { return group.OrderDefaultLast(a.order) }

// RawAliases returns every alias in true insertion order, DEFAULT included
// wherever it was first seen. Used by the validator to check alias/group
// membership without the DEFAULT-last reordering.
func (a *AliasMatchers) RawAliases() []string { return append([]string(nil), a.order...) }

// QueueHTTPSRelayCertKeyFiles records one "<cert...> <key>" line from an
// agent.https-relay.cert-key.list block for later resolution.
func (c *Config) QueueHTTPSRelayCertKeyFiles(files []string) {
	c.httpsRelayCertKeyFiles = append(c.httpsRelayCertKeyFiles, files)
}

// PopHTTPSRelayCertKeyFiles returns every queued cert-key file group and
// clears the queue; the validator calls this exactly once (§4.7 step 2).
func (c *Config) PopHTTPSRelayCertKeyFiles() [][]string {
	queued := c.httpsRelayCertKeyFiles
	c.httpsRelayCertKeyFiles = nil
	return queued
}
