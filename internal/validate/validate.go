// Package validate implements the cross-field validator (spec.md §4.7),
// which runs once after parsing completes and enforces every invariant in
// spec.md §3. Any failure aborts startup — no partial Config is ever handed
// to the policy facade (spec.md §7).
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/config"
)

// Error is a fatal cross-field validation failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Run executes the validator steps in spec.md §4.7 order and returns the
// first failure, or nil if cfg is valid.
func Run(cfg *config.Config, certStore collab.CertKeyStore) error {
	mergeHTTPSRelayDomains(cfg)

	if err := resolveCertKeys(cfg, certStore); err != nil {
		return err
	}

	if err := enforceDirectRelay(cfg); err != nil {
		return err
	}

	if err := checkAliasesExist(cfg); err != nil {
		return err
	}

	if cfg.PACPort != 0 && cfg.Socks5Port == 0 && cfg.HTTPConnectPort == 0 {
		return fail("agent.gateway.pac.listen requires socks5 or http-connect to be enabled")
	}

	if cfg.SSPort != 0 && cfg.SSPassword == "" {
		return fail("agent.ss.listen requires agent.ss.password to be set")
	}

	if cfg.User == "" || cfg.Pass == "" {
		return fail("proxy.server.auth is required (user and pass must both be non-empty)")
	}

	for alias, sg := range cfg.Groups {
		for _, e := range sg.Entries {
			if e.Port < 1 || e.Port > 65535 {
				return fail("server entry %q in group %q has an out-of-range port %d", e.RawID, alias, e.Port)
			}
		}
	}

	if err := loadAutoSignWorkDir(cfg, certStore); err != nil {
		return err
	}

	return nil
}

// mergeHTTPSRelayDomains implements §4.7 step 1: when the merge flag is set,
// append every matcher in every per-group domains list into
// ProxyHTTPSRelayDomains, preserving order.
func mergeHTTPSRelayDomains(cfg *config.Config) {
	if !cfg.ProxyHTTPSRelayDomainMerge {
		return
	}
	for _, alias := range cfg.Domains.Aliases() {
		cfg.ProxyHTTPSRelayDomains = append(cfg.ProxyHTTPSRelayDomains, cfg.Domains.List(alias)...)
	}
}

// resolveCertKeys implements §4.7 step 2: resolve every queued cert-key file
// group into a CertKey handle; if none were queued and auto_sign_cert is
// unset, enforce the fallback invariant from spec.md §3.
func resolveCertKeys(cfg *config.Config, certStore collab.CertKeyStore) error {
	queued := cfg.PopHTTPSRelayCertKeyFiles()
	for _, files := range queued {
		certs, key := files[:len(files)-1], files[len(files)-1]
		ck, err := certStore.ReadFile(certs, key)
		if err != nil {
			return fail("loading https-relay cert-key %v: %v", files, err)
		}
		cfg.HTTPSRelayCertKeys = append(cfg.HTTPSRelayCertKeys, ck)
	}

	if len(cfg.HTTPSRelayCertKeys) == 0 && cfg.AutoSignCert == "" {
		if len(cfg.HTTPSRelayDomains) != 0 {
			return fail("https_relay_domains is non-empty but no cert-key or auto-sign cert is configured")
		}
		if cfg.DirectRelay {
			return fail("agent.direct-relay is on but no cert-key or auto-sign cert is configured")
		}
		if cfg.ProxyRelay == config.On {
			return fail("agent.proxy-relay is explicitly on but no cert-key or auto-sign cert is configured")
		}
	}
	return nil
}

// enforceDirectRelay implements §4.7 step 3.
func enforceDirectRelay(cfg *config.Config) error {
	if cfg.DirectRelay {
		return nil
	}
	if len(cfg.HTTPSRelayDomains) != 0 {
		return fail("https_relay_domains must be empty when agent.direct-relay is off")
	}
	if len(cfg.ProxyHTTPSRelayDomains) != 0 {
		return fail("proxy_https_relay_domains must be empty when agent.direct-relay is off")
	}
	if cfg.ProxyHTTPSRelayDomainMerge {
		return fail("proxy.https-relay.domain.merge must be off when agent.direct-relay is off")
	}
	return nil
}

// loadAutoSignWorkDir implements §4.7 step 7: scan AutoSignWorkDir for
// <domain>.crt / <domain>.key pairs and register each complete pair.
func loadAutoSignWorkDir(cfg *config.Config, certStore collab.CertKeyStore) error {
	if cfg.AutoSignWorkDir == "" {
		return nil
	}
	entries, err := os.ReadDir(cfg.AutoSignWorkDir)
	if err != nil {
		// An ephemeral work dir that no longer exists is not an error; a
		// caller-supplied directory that vanished is.
		if os.IsNotExist(err) && cfg.AutoSignWorkDirEphemeral {
			return nil
		}
		return fail("scanning auto-sign work dir %q: %v", cfg.AutoSignWorkDir, err)
	}

	domains := map[string]struct{ crt, key bool }{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".crt"):
			d := domains[strings.TrimSuffix(name, ".crt")]
			d.crt = true
			domains[strings.TrimSuffix(name, ".crt")] = d
		case strings.HasSuffix(name, ".key"):
			d := domains[strings.TrimSuffix(name, ".key")]
			d.key = true
			domains[strings.TrimSuffix(name, ".key")] = d
		}
	}

	for domain, have := range domains {
		if !have.crt || !have.key {
			continue
		}
		crt := filepath.Join(cfg.AutoSignWorkDir, domain+".crt")
		key := filepath.Join(cfg.AutoSignWorkDir, domain+".key")
		ck, err := certStore.ReadFile([]string{crt}, key)
		if err != nil {
			return fail("loading auto-sign pair for %q: %v", domain, err)
		}
		cfg.HTTPSRelayCertKeys = append(cfg.HTTPSRelayCertKeys, ck)
	}
	return nil
}

// checkAliasesExist implements §4.7 step 4.
func checkAliasesExist(cfg *config.Config) error {
	for _, section := range []struct {
		name string
		am   *config.AliasMatchers
	}{
		{"proxy.domain.list", cfg.Domains},
		{"proxy.resolve.list", cfg.ProxyResolves},
		{"no-proxy.domain.list", cfg.NoProxyDomains},
	} {
		for _, alias := range section.am.RawAliases() {
			if _, ok := cfg.Groups[alias]; !ok {
				return fail("%s references unknown group alias %q", section.name, alias)
			}
		}
	}
	return nil
}
