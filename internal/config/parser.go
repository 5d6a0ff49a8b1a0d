package config

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/group"
	"wsagentcfg/internal/matcher"
)

// state names one of the eight blocks of spec.md §4.6.
type state int

const (
	stateTopLevel state = iota
	stateServerList
	stateDomainList
	stateResolveList
	stateNoProxyList
	stateHTTPSRelayDomain
	stateHTTPSRelayCertKey
	stateProxyHTTPSRelayDomain
)

var sectionStarts = map[string]state{
	"proxy.server.list.start":                stateServerList,
	"proxy.domain.list.start":                stateDomainList,
	"proxy.resolve.list.start":               stateResolveList,
	"no-proxy.domain.list.start":             stateNoProxyList,
	"https-relay.domain.list.start":          stateHTTPSRelayDomain,
	"agent.https-relay.cert-key.list.start":  stateHTTPSRelayCertKey,
	"proxy.https-relay.domain.list.start":    stateProxyHTTPSRelayDomain,
}

var sectionEnds = map[string]state{
	"proxy.server.list.end":                 stateServerList,
	"proxy.domain.list.end":                 stateDomainList,
	"proxy.resolve.list.end":                stateResolveList,
	"no-proxy.domain.list.end":              stateNoProxyList,
	"https-relay.domain.list.end":           stateHTTPSRelayDomain,
	"agent.https-relay.cert-key.list.end":   stateHTTPSRelayCertKey,
	"proxy.https-relay.domain.list.end":     stateProxyHTTPSRelayDomain,
}

// globalSections never carry an alias; their matcher lists are not
// per-group (spec.md §4.6).
var globalSections = map[state]bool{
	stateHTTPSRelayDomain:      true,
	stateHTTPSRelayCertKey:     true,
	stateProxyHTTPSRelayDomain: true,
}

// Deps bundles the collaborators the parser performs blocking I/O through
// (spec.md §6.2). Every field is required except Logger, which defaults to
// the commonlog logger named "wsagentcfg.config" if nil.
type Deps struct {
	ServerGroupFactory collab.ServerGroupFactory
	Loops              collab.LoopGroup
	Resolver           collab.Resolver
	CertKeyStore       collab.CertKeyStore
	ProcessRunner      collab.ProcessRunner
	HTTPClient         collab.HTTPClient
	Logger             commonlog.Logger
}

// Parser holds the (state, current_alias) carried across lines, plus the
// in-progress Config and the collaborators needed to resolve external
// references synchronously (spec.md §4.6).
type Parser struct {
	deps  Deps
	cfg   *Config
	reg   *group.Registry
	state state
	alias string
	errs  []*ParseError
}

// Parse runs the line-oriented state machine over src and returns a built
// (but not yet validated) Config. Validation is a separate step — see
// internal/validate — so parse errors and validation errors stay distinct
// (spec.md §7).
func Parse(src string, deps Deps) (*Config, []*ParseError) {
	if deps.Logger == nil {
		deps.Logger = commonlog.GetLogger("wsagentcfg.config")
	}

	cfg := newConfig()
	p := &Parser{
		deps:  deps,
		cfg:   cfg,
		reg:   group.New(deps.ServerGroupFactory, deps.Loops, func() bool { return cfg.NoHealthCheck }),
		state: stateTopLevel,
	}

	for _, l := range scanLines(src) {
		p.dispatch(l)
	}

	if p.state != stateTopLevel {
		p.errorf(0, "unclosed list block at end of file")
	}

	return p.cfg, p.errs
}

func (p *Parser) errorf(lineNo int, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Line:    lineNo,
		Range:   lineRange(lineNo),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) dispatch(l rawLine) {
	if len(l.fields) == 0 {
		return
	}
	key := l.fields[0]

	if p.state == stateTopLevel {
		if st, ok := sectionStarts[key]; ok {
			p.enterSection(st, l)
			return
		}
		if _, ok := sectionEnds[key]; ok {
			p.errorf(l.no, "%q outside any list block", key)
			return
		}
		p.handleTopLevel(l)
		return
	}

	// Inside a list block: a nested list-start is undefined by the source
	// and rejected (spec.md §4.6).
	if _, ok := sectionStarts[key]; ok {
		p.errorf(l.no, "nested list block %q is not supported", key)
		return
	}
	if st, ok := sectionEnds[key]; ok {
		if st != p.state {
			p.errorf(l.no, "%q does not match the currently open block", key)
			return
		}
		p.state = stateTopLevel
		p.alias = ""
		return
	}

	p.handleSectionLine(l)
}

func (p *Parser) enterSection(st state, l rawLine) {
	p.state = st
	if globalSections[st] {
		p.alias = ""
		return
	}
	if len(l.fields) > 1 {
		p.alias = l.fields[1]
	} else {
		p.alias = ""
	}
}

func (p *Parser) handleSectionLine(l rawLine) {
	switch p.state {
	case stateServerList:
		p.parseServerLine(l)
	case stateDomainList:
		p.appendMatcherLine(l, p.cfg.Domains, p.alias)
	case stateResolveList:
		p.appendMatcherLine(l, p.cfg.ProxyResolves, p.alias)
	case stateNoProxyList:
		p.appendMatcherLine(l, p.cfg.NoProxyDomains, p.alias)
	case stateHTTPSRelayDomain:
		p.appendGlobalMatcherLine(l, &p.cfg.HTTPSRelayDomains)
	case stateProxyHTTPSRelayDomain:
		p.appendGlobalMatcherLine(l, &p.cfg.ProxyHTTPSRelayDomains)
	case stateHTTPSRelayCertKey:
		p.parseCertKeyLine(l)
	}
}

func (p *Parser) appendMatcherLine(l rawLine, dst *AliasMatchers, alias string) {
	m, err := p.buildMatcher(l.text, l.no)
	if err != nil {
		p.errorf(l.no, "%v", err)
		return
	}
	if alias == "" {
		alias = group.Default
	}
	dst.Append(alias, m)
}

func (p *Parser) appendGlobalMatcherLine(l rawLine, dst *[]matcher.Matcher) {
	m, err := p.buildMatcher(l.text, l.no)
	if err != nil {
		p.errorf(l.no, "%v", err)
		return
	}
	*dst = append(*dst, m)
}

// parseCertKeyLine queues a "<cert1> [<cert2> ...] <key>" line for later
// resolution (spec.md §4.6, §4.7 step 2).
func (p *Parser) parseCertKeyLine(l rawLine) {
	if len(l.fields) < 2 {
		p.errorf(l.no, "https-relay cert-key line needs at least one cert and a key")
		return
	}
	certs := append([]string(nil), l.fields[:len(l.fields)-1]...)
	key := l.fields[len(l.fields)-1]
	p.cfg.QueueHTTPSRelayCertKeyFiles(append(certs, key))
}

// parseServerLine parses one "scheme://host:port[ program...]" line
// (spec.md §4.6 server-list steps 1-6).
func (p *Parser) parseServerLine(l rawLine) {
	scheme, rest, ok := splitScheme(l.fields[0])
	if !ok {
		p.errorf(l.no, "invalid server-list scheme in %q", l.fields[0])
		return
	}
	useSSL, useKCP, ok := schemeFlags(scheme)
	if !ok {
		p.errorf(l.no, "unknown scheme %q", scheme)
		return
	}

	host, portText, ok := splitHostPortLastColon(rest)
	if !ok || host == "" {
		p.errorf(l.no, "invalid host:port %q", rest)
		return
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		p.errorf(l.no, "port out of range in %q", rest)
		return
	}

	entry := ServerEntry{
		RawID:  rest,
		Host:   host,
		Port:   uint16(port),
		UseSSL: useSSL,
		UseKCP: useKCP,
	}

	if len(l.fields) > 1 {
		entry.Program = strings.Join(l.fields[1:], " ")
		resolved := p.expandProgramTemplate(entry.Program, host, portText)
		localPort := pickLocalPort()
		resolved = strings.ReplaceAll(resolved, "$LOCAL_PORT", strconv.Itoa(localPort))
		proc, err := p.deps.ProcessRunner.Spawn(resolved)
		if err != nil {
			p.errorf(l.no, "spawning server program: %v", err)
			return
		}
		proc.OnExit(func(exitErr error) {
			if exitErr != nil {
				p.deps.Logger.Errorf("server program for %q exited: %v", rest, exitErr)
			} else {
				p.deps.Logger.Infof("server program for %q exited", rest)
			}
		})
		entry.SubprocessHandle = proc
		entry.DialAddr = fmt.Sprintf("127.0.0.1:%d", localPort)
	} else if ip := net.ParseIP(host); ip != nil {
		entry.DialAddr = rest
	} else {
		resolved, err := p.deps.Resolver.ResolveV4(context.Background(), host)
		if err != nil {
			p.errorf(l.no, "resolving %q: %v", host, err)
			return
		}
		entry.DialAddr = fmt.Sprintf("%s:%d", resolved.String(), port)
	}

	if entry.UseKCP {
		entry.PerLoopKCPFDs = p.buildPerLoopKCPFDs()
	}

	alias := p.alias
	if alias == "" {
		alias = group.Default
	}
	handle, err := p.reg.GetOrCreate(alias)
	if err != nil {
		p.errorf(l.no, "creating server group %q: %v", alias, err)
		return
	}
	if err := handle.Add(entry.RawID, entry.DialAddr, 1); err != nil {
		p.errorf(l.no, "registering server %q: %v", entry.RawID, err)
		return
	}

	sg, ok := p.cfg.Groups[alias]
	if !ok {
		sg = &ServerGroupConfig{Alias: alias, Handle: handle}
		p.cfg.Groups[alias] = sg
		p.cfg.GroupOrder = append(p.cfg.GroupOrder, alias)
	}
	sg.Entries = append(sg.Entries, entry)
}

// expandProgramTemplate substitutes ~, $SERVER_IP and $SERVER_PORT; the
// caller substitutes $LOCAL_PORT separately once a port has been picked.
func (p *Parser) expandProgramTemplate(tmpl, host, port string) string {
	out := tmpl
	if strings.Contains(out, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			out = strings.ReplaceAll(out, "~", home)
		}
	}
	out = strings.ReplaceAll(out, "$SERVER_IP", host)
	out = strings.ReplaceAll(out, "$SERVER_PORT", port)
	return out
}

// pickLocalPort chooses a fresh port in [30000, 40000) for a spawned
// program's local listener (spec.md §4.6 step 2).
func pickLocalPort() int { return 30000 + rand.Intn(10000) }

// buildPerLoopKCPFDs builds one H2StreamedClientFDs per distinct worker
// loop (spec.md §4.6 step 5). LoopGroup.Next() round-robins, so calling it
// Len() times from a fresh cycle visits every loop exactly once.
func (p *Parser) buildPerLoopKCPFDs() map[any]*H2StreamedClientFDs {
	n := p.deps.Loops.Len()
	out := make(map[any]*H2StreamedClientFDs, n)
	for i := 0; i < n; i++ {
		out[p.deps.Loops.Next()] = &H2StreamedClientFDs{}
	}
	return out
}

func splitScheme(field string) (scheme, rest string, ok bool) {
	i := strings.Index(field, "://")
	if i < 0 {
		return "", "", false
	}
	return field[:i], field[i+len("://"):], true
}

func schemeFlags(scheme string) (useSSL, useKCP bool, ok bool) {
	switch scheme {
	case "websocks":
		return false, false, true
	case "websockss":
		return true, false, true
	case "websocks:kcp":
		return false, true, true
	case "websockss:kcp":
		return true, true, true
	default:
		return false, false, false
	}
}

// splitHostPortLastColon splits at the *last* colon, matching the source's
// no-bracket-handling heuristic (spec.md design note: bracketed IPv6
// literals are therefore not supported in proxy.server.list).
func splitHostPortLastColon(s string) (host, port string, ok bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func (p *Parser) handleTopLevel(l rawLine) {
	key := l.fields[0]
	args := l.fields[1:]

	switch key {
	case "agent.listen", "agent.socks5.listen":
		p.setPort(l, &p.cfg.Socks5Port, args)
	case "agent.httpconnect.listen":
		p.setPort(l, &p.cfg.HTTPConnectPort, args)
	case "agent.ss.listen":
		p.setPort(l, &p.cfg.SSPort, args)
	case "agent.ss.password":
		if len(args) != 1 || args[0] == "" {
			p.errorf(l.no, "agent.ss.password requires a non-empty value")
			return
		}
		p.cfg.SSPassword = args[0]
	case "agent.dns.listen":
		p.setPort(l, &p.cfg.DNSPort, args)
	case "agent.gateway":
		p.setBool(l, &p.cfg.Gateway, args)
	case "agent.direct-relay":
		p.setBool(l, &p.cfg.DirectRelay, args)
	case "agent.proxy-relay":
		p.setProxyRelay(l, args)
	case "proxy.server.auth":
		p.setAuth(l, args)
	case "proxy.server.hc":
		p.setHealthCheck(l, args)
	case "agent.cacerts.path":
		if len(args) != 1 {
			p.errorf(l.no, "agent.cacerts.path requires exactly one value")
			return
		}
		p.cfg.CACertsPath = args[0]
	case "agent.cacerts.pswd":
		if len(args) != 1 {
			p.errorf(l.no, "agent.cacerts.pswd requires exactly one value")
			return
		}
		p.cfg.CACertsPswd = args[0]
	case "agent.cert.verify":
		p.setBool(l, &p.cfg.VerifyCert, args)
	case "agent.strict":
		p.setBool(l, &p.cfg.StrictMode, args)
	case "agent.pool":
		p.setPoolSize(l, args)
	case "agent.gateway.pac.listen":
		p.setPort(l, &p.cfg.PACPort, args)
	case "agent.auto-sign":
		p.setAutoSign(l, args)
	case "proxy.https-relay.domain.merge":
		p.setBool(l, &p.cfg.ProxyHTTPSRelayDomainMerge, args)
	default:
		p.errorf(l.no, "unknown directive %q", key)
	}
}

func (p *Parser) setPort(l rawLine, dst *uint16, args []string) {
	if len(args) != 1 {
		p.errorf(l.no, "%s requires exactly one port", l.fields[0])
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 65535 {
		p.errorf(l.no, "%s: port out of range: %q", l.fields[0], args[0])
		return
	}
	*dst = uint16(n)
}

func (p *Parser) setBool(l rawLine, dst *bool, args []string) {
	if len(args) != 1 {
		p.errorf(l.no, "%s requires exactly one of on/off", l.fields[0])
		return
	}
	switch args[0] {
	case "on":
		*dst = true
	case "off":
		*dst = false
	default:
		p.errorf(l.no, "%s: invalid value %q, want on/off", l.fields[0], args[0])
	}
}

// setProxyRelay implements agent.proxy-relay on|off|auto. The source has a
// known quirk here (missing `break` in the `auto` branch causing it to fall
// through to "invalid value"); this implementation treats `auto` as the
// valid Auto tri-state per the spec's redesign guidance.
func (p *Parser) setProxyRelay(l rawLine, args []string) {
	if len(args) != 1 {
		p.errorf(l.no, "agent.proxy-relay requires exactly one of on/off/auto")
		return
	}
	switch args[0] {
	case "on":
		p.cfg.ProxyRelay = On
	case "off":
		p.cfg.ProxyRelay = Off
	case "auto":
		p.cfg.ProxyRelay = Auto
	default:
		p.errorf(l.no, "agent.proxy-relay: invalid value %q", args[0])
	}
}

func (p *Parser) setAuth(l rawLine, args []string) {
	if len(args) != 1 || !strings.Contains(args[0], ":") {
		p.errorf(l.no, "proxy.server.auth requires a user:pass value")
		return
	}
	i := strings.Index(args[0], ":")
	user, pass := args[0][:i], args[0][i+1:]
	if user == "" || pass == "" {
		p.errorf(l.no, "proxy.server.auth: both user and pass must be non-empty")
		return
	}
	p.cfg.User, p.cfg.Pass = user, pass
}

func (p *Parser) setHealthCheck(l rawLine, args []string) {
	if len(args) != 1 {
		p.errorf(l.no, "proxy.server.hc requires exactly one of on/off")
		return
	}
	switch args[0] {
	case "on":
		p.cfg.NoHealthCheck = false
	case "off":
		p.cfg.NoHealthCheck = true
	default:
		p.errorf(l.no, "proxy.server.hc: invalid value %q, want on/off", args[0])
	}
}

func (p *Parser) setPoolSize(l rawLine, args []string) {
	if len(args) != 1 {
		p.errorf(l.no, "agent.pool requires exactly one value")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		p.errorf(l.no, "agent.pool: invalid non-negative integer %q", args[0])
		return
	}
	p.cfg.PoolSize = n
}

func (p *Parser) setAutoSign(l rawLine, args []string) {
	if len(args) < 2 || len(args) > 3 {
		p.errorf(l.no, "agent.auto-sign requires cert key [dir]")
		return
	}
	cert, key := args[0], args[1]
	if _, err := os.Stat(cert); err != nil {
		p.errorf(l.no, "agent.auto-sign: cert %q: %v", cert, err)
		return
	}
	if _, err := os.Stat(key); err != nil {
		p.errorf(l.no, "agent.auto-sign: key %q: %v", key, err)
		return
	}
	p.cfg.AutoSignCert, p.cfg.AutoSignKey = cert, key

	if len(args) == 3 {
		dirInfo, err := os.Stat(args[2])
		if err != nil || !dirInfo.IsDir() {
			p.errorf(l.no, "agent.auto-sign: dir %q is not an existing directory", args[2])
			return
		}
		p.cfg.AutoSignWorkDir = args[2]
		return
	}

	dir, err := os.MkdirTemp("", "wsagentcfg-autosign-")
	if err != nil {
		p.errorf(l.no, "agent.auto-sign: creating ephemeral work dir: %v", err)
		return
	}
	p.cfg.AutoSignWorkDir = dir
	p.cfg.AutoSignWorkDirEphemeral = true
}

// Cleanup removes the ephemeral auto-sign work dir, if one was allocated.
// Callers should defer it after a successful Parse+Validate on normal
// shutdown (spec.md §5).
func (c *Config) Cleanup() {
	if c.AutoSignWorkDirEphemeral && c.AutoSignWorkDir != "" {
		_ = os.RemoveAll(c.AutoSignWorkDir)
	}
}
