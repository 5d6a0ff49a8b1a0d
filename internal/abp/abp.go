// Package abp implements a minimal, hostname-centric Adblock-Plus filter-list
// interpreter. It is deliberately not a full ABP engine: the caller only ever
// asks it to classify a hostname, never a full URL with path and query, so
// rules that only differ in path or query segments collapse to the same
// hostname predicate.
package abp

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Rule is a single compiled predicate over a hostname.
type Rule struct {
	raw   string
	match func(host string) bool
}

// List is the compiled form of a filter list: an ordered set of include
// rules and an ordered set of exception ("@@") rules.
type List struct {
	includes []Rule
	excludes []Rule
}

// Matches reports whether host is accepted by the list: any include rule
// matches and no exception rule matches.
func (l *List) Matches(host string) bool {
	matched := false
	for _, r := range l.includes {
		if r.match(host) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, r := range l.excludes {
		if r.match(host) {
			return false
		}
	}
	return true
}

// ruleCache memoizes compiled rules by a hash of their source line, so the
// same filter line repeated across several [ref] lists (or repeated within
// one list) compiles exactly once.
var ruleCache = struct {
	sync.Mutex
	m map[uint64]Rule
}{m: make(map[uint64]Rule)}

func compileCached(line string) (Rule, error) {
	key := xxhash.Sum64String(line)

	ruleCache.Lock()
	if r, ok := ruleCache.m[key]; ok {
		ruleCache.Unlock()
		return r, nil
	}
	ruleCache.Unlock()

	r, err := compileRule(line)
	if err != nil {
		return Rule{}, err
	}

	ruleCache.Lock()
	ruleCache.m[key] = r
	ruleCache.Unlock()
	return r, nil
}

// DecodeBase64 decodes a base64-encoded filter-list payload. Newlines are
// expected to already be stripped from enc (concatenated lines, per the
// grammar), but raw standard encoding is accepted either way.
func DecodeBase64(enc string) (string, error) {
	enc = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, enc)
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("abp: invalid base64 payload: %w", err)
	}
	return string(b), nil
}

// Parse compiles a newline-delimited filter list (already base64-decoded)
// into a List.
func Parse(raw string) (*List, error) {
	l := &List{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
			continue
		}
		exception := strings.HasPrefix(line, "@@")
		if exception {
			line = strings.TrimPrefix(line, "@@")
		}
		r, err := compileCached(line)
		if err != nil {
			return nil, fmt.Errorf("abp: rule %q: %w", line, err)
		}
		if exception {
			l.excludes = append(l.excludes, r)
		} else {
			l.includes = append(l.includes, r)
		}
	}
	return l, nil
}

// ParseBase64 decodes and parses a filter list in one step.
func ParseBase64(enc string) (*List, error) {
	raw, err := DecodeBase64(enc)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// compileRule dispatches on the rule's surface form:
//
//	||host^              domain-anchor rule
//	|scheme://host...    URL-anchor rule, matched by host part only
//	*/^ glob             translated to a regex, with ^ meaning end-of-host
//	anything else        plain substring match on host
func compileRule(line string) (Rule, error) {
	switch {
	case strings.HasPrefix(line, "||"):
		return compileDomainAnchor(line)
	case strings.HasPrefix(line, "|"):
		return compileURLAnchor(line)
	case strings.ContainsAny(line, "*^"):
		return compileGlob(line)
	default:
		needle := line
		return Rule{raw: line, match: func(host string) bool {
			return strings.Contains(host, needle)
		}}, nil
	}
}

// compileDomainAnchor handles "||host^" (and "||host" without a trailing
// separator, which some lists omit): host equals the rule's host part or has
// it as a suffix after a dot.
func compileDomainAnchor(line string) (Rule, error) {
	body := strings.TrimPrefix(line, "||")
	body = strings.TrimSuffix(body, "^")
	// Cut at the first path/query separator; only the host part matters
	// for hostname-only queries.
	if i := strings.IndexAny(body, "/?"); i >= 0 {
		body = body[:i]
	}
	if body == "" {
		return Rule{}, fmt.Errorf("empty domain anchor")
	}
	host := body
	return Rule{raw: line, match: func(h string) bool {
		return h == host || strings.HasSuffix(h, "."+host)
	}}, nil
}

// compileURLAnchor handles "|scheme://host/...". For hostname-only queries
// we extract the host segment and compare it exactly.
func compileURLAnchor(line string) (Rule, error) {
	body := strings.TrimPrefix(line, "|")
	if i := strings.Index(body, "://"); i >= 0 {
		body = body[i+len("://"):]
	}
	if i := strings.IndexAny(body, "/?^"); i >= 0 {
		body = body[:i]
	}
	if body == "" {
		return Rule{}, fmt.Errorf("empty URL anchor")
	}
	host := body
	return Rule{raw: line, match: func(h string) bool {
		return h == host
	}}, nil
}

// compileGlob translates a shell-glob rule containing '*' and/or '^' into a
// regex. '*' becomes ".*"; '^' becomes end-of-host, since separator
// characters ('/','?',':','=','&') never appear in a bare hostname.
func compileGlob(line string) (Rule, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range line {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '^':
			sb.WriteString("$")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	// A rule may contain '^' mid-pattern (end-of-host) followed by more
	// literal text for a path; since we only ever see a bare host, anything
	// after a mid-pattern '^' can never match and is intentionally kept —
	// it simply makes the overall rule stricter, matching ABP's semantics
	// when applied to a host-only query.
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return Rule{}, fmt.Errorf("invalid glob rule: %w", err)
	}
	return Rule{raw: line, match: re.MatchString}, nil
}
