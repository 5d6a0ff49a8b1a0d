package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wsagentcfg/internal/abp"
	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/matcher"
	"wsagentcfg/internal/resource"
)

// buildMatcher implements the rule-list builder (spec.md §4.4): dispatches
// on the first character of a trimmed, non-empty, non-comment line and
// builds exactly one Matcher.
func (p *Parser) buildMatcher(line string, lineNo int) (matcher.Matcher, error) {
	switch {
	case strings.HasPrefix(line, ":"):
		return buildPortMatcher(line)
	case strings.HasPrefix(line, "/") && strings.HasSuffix(line, "/") && len(line) >= 2:
		return buildPatternMatcher(line)
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return p.buildAbpMatcher(line, lineNo)
	default:
		return matcher.Suffix(line), nil
	}
}

func buildPortMatcher(line string) (matcher.Matcher, error) {
	portText := strings.TrimPrefix(line, ":")
	n, err := strconv.Atoi(portText)
	if err != nil || n < 1 || n > 65535 {
		return matcher.Matcher{}, fmt.Errorf("invalid port rule %q", line)
	}
	return matcher.Port(uint16(n)), nil
}

func buildPatternMatcher(line string) (matcher.Matcher, error) {
	body := line[1 : len(line)-1]
	re, err := regexp.Compile(body)
	if err != nil {
		return matcher.Matcher{}, fmt.Errorf("invalid regex rule %q: %w", line, err)
	}
	return matcher.Pattern(re), nil
}

// buildAbpMatcher loads the referenced resource (a local path or an http(s)
// URL), treats its content as a base64-concatenated filter list, and
// compiles it into an Abp matcher.
func (p *Parser) buildAbpMatcher(line string, lineNo int) (matcher.Matcher, error) {
	ref := line[1 : len(line)-1]

	var body []byte
	var err error
	if resource.IsRemote(ref) {
		body, err = resource.LoadRemote(httpClientAdapter{p.deps.HTTPClient}, ref)
	} else {
		body, err = resource.LoadLocal(ref)
	}
	if err != nil {
		return matcher.Matcher{}, fmt.Errorf("line %d: loading abp reference %q: %w", lineNo, ref, err)
	}

	list, err := abp.ParseBase64(strings.TrimSpace(string(body)))
	if err != nil {
		return matcher.Matcher{}, fmt.Errorf("line %d: compiling abp reference %q: %w", lineNo, ref, err)
	}
	return matcher.Abp(list), nil
}

// httpClientAdapter narrows collab.HTTPClient to resource.Client; the two
// have the same method set but live in different packages so the core's
// collaborator surface (internal/collab) never imports internal/resource.
type httpClientAdapter struct {
	c collab.HTTPClient
}

func (a httpClientAdapter) Get(url string) (int, []byte, error) { return a.c.Get(url) }
