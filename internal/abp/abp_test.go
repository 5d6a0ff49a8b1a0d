package abp

import (
	"encoding/base64"
	"testing"
)

func mustParse(t *testing.T, raw string) *List {
	t.Helper()
	l, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return l
}

func TestParse_DomainAnchor(t *testing.T) {
	l := mustParse(t, "||ads.example.com^\n")

	if !l.Matches("ads.example.com") {
		t.Error("expected exact host match")
	}
	if !l.Matches("sub.ads.example.com") {
		t.Error("expected subdomain match")
	}
	if l.Matches("example.com") {
		t.Error("did not expect parent-domain match")
	}
}

func TestParse_CommentsAndHeaders(t *testing.T) {
	l := mustParse(t, "! this is a comment\n[Adblock Plus 2.0]\n||tracker.example^\n")
	if !l.Matches("tracker.example") {
		t.Error("expected rule after comments/headers to compile")
	}
}

func TestParse_Exception(t *testing.T) {
	l := mustParse(t, "||example.com^\n@@||good.example.com^\n")

	if !l.Matches("example.com") {
		t.Error("expected include rule to match")
	}
	if l.Matches("good.example.com") {
		t.Error("expected exception rule to veto the match")
	}
}

func TestParse_PlainSubstring(t *testing.T) {
	l := mustParse(t, "adserver\n")
	if !l.Matches("my.adserver.net") {
		t.Error("expected substring match")
	}
	if l.Matches("example.com") {
		t.Error("did not expect substring match")
	}
}

func TestParse_Glob(t *testing.T) {
	l := mustParse(t, "*.ads.*^\n")
	if !l.Matches("x.ads.example") {
		t.Error("expected glob match")
	}
}

func TestParseBase64_RoundTrip(t *testing.T) {
	raw := "||blocked.example^\n@@||safe.blocked.example^\n"
	enc := base64.StdEncoding.EncodeToString([]byte(raw))

	l, err := ParseBase64(enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Matches("blocked.example") {
		t.Error("expected match")
	}
	if l.Matches("safe.blocked.example") {
		t.Error("expected exception to veto")
	}
}

func TestDecodeBase64_StripsNewlines(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("||a.example^"))
	half := len(enc) / 2
	withNewlines := enc[:half] + "\n" + enc[half:]

	raw, err := DecodeBase64(withNewlines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != "||a.example^" {
		t.Errorf("got %q", raw)
	}
}
