// Package policy implements the policy query facade (spec.md §4.8): the
// only surface the dispatcher sees. It is read-only after construction and
// safe to call concurrently from many worker goroutines without a lock,
// because the Config it wraps is frozen by the time validate.Run returns
// (spec.md §5).
package policy

import (
	"wsagentcfg/internal/config"
	"wsagentcfg/internal/metrics"
)

// Kind identifies which variant of Decision a value holds.
type Kind int

const (
	KindDirect Kind = iota
	KindHTTPSRelay
	KindNoProxy
	KindProxy
)

// String labels Kind for metrics and logging.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindHTTPSRelay:
		return "https_relay"
	case KindNoProxy:
		return "no_proxy"
	case KindProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Decision is the tagged union returned by Classify.
type Decision struct {
	Kind              Kind
	GroupAlias        string
	ResolveAtUpstream bool
	HTTPSRelay        bool
}

// Facade wraps a validated Config and exposes Classify.
type Facade struct {
	cfg *config.Config
}

// New wraps cfg. Callers must only pass a Config that has already passed
// validate.Run — Facade performs no validation of its own.
func New(cfg *config.Config) *Facade { return &Facade{cfg: cfg} }

// Classify implements spec.md §4.8's algorithm exactly: https-relay check,
// then no-proxy group-by-group, then domains group-by-group (first match
// wins, DEFAULT last), falling back to Direct.
func (f *Facade) Classify(host string, port uint16) Decision {
	d := f.classify(host, port)
	metrics.ClassifyTotal.WithLabelValues(d.Kind.String()).Inc()
	return d
}

func (f *Facade) classify(host string, port uint16) Decision {
	if f.cfg.DirectRelay {
		for _, m := range f.cfg.HTTPSRelayDomains {
			if m.Matches(host, port) {
				return Decision{Kind: KindHTTPSRelay}
			}
		}
	}

	for _, alias := range f.cfg.NoProxyDomains.Aliases() {
		for _, m := range f.cfg.NoProxyDomains.List(alias) {
			if m.Matches(host, port) {
				return Decision{Kind: KindNoProxy, GroupAlias: alias}
			}
		}
	}

	group, ok := f.matchDomainGroup(host, port)
	if !ok {
		return Decision{Kind: KindDirect}
	}

	resolveAtUpstream := false
	for _, m := range f.cfg.ProxyResolves.List(group) {
		if m.Matches(host, port) {
			resolveAtUpstream = true
			break
		}
	}

	httpsRelay := false
	if f.cfg.ResolvesProxyRelay() {
		for _, m := range f.cfg.ProxyHTTPSRelayDomains {
			if m.Matches(host, port) {
				httpsRelay = true
				break
			}
		}
	}

	return Decision{
		Kind:              KindProxy,
		GroupAlias:        group,
		ResolveAtUpstream: resolveAtUpstream,
		HTTPSRelay:        httpsRelay,
	}
}

func (f *Facade) matchDomainGroup(host string, port uint16) (string, bool) {
	for _, alias := range f.cfg.Domains.Aliases() {
		for _, m := range f.cfg.Domains.List(alias) {
			if m.Matches(host, port) {
				return alias, true
			}
		}
	}
	return "", false
}
