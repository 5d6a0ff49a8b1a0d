package matcher

import (
	"regexp"
	"testing"
)

func TestSuffix_Matches(t *testing.T) {
	m := Suffix("example.com")

	cases := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"www.example.com", true},
		{"notexample.com", false},
		{"example.com.evil.com", false},
		{"com", false},
	}
	for _, c := range cases {
		if got := m.Matches(c.host, 443); got != c.want {
			t.Errorf("Suffix(%q).Matches(%q) = %v, want %v", "example.com", c.host, got, c.want)
		}
	}
}

func TestPattern_Matches(t *testing.T) {
	re := regexp.MustCompile(`.*\.google\.com.*`)
	m := Pattern(re)

	if !m.Matches("maps.google.com", 80) {
		t.Error("expected match on maps.google.com")
	}
	if m.Matches("example.com", 80) {
		t.Error("did not expect match on example.com")
	}
}

func TestPort_Matches(t *testing.T) {
	m := Port(22)

	if !m.Matches("anything", 22) {
		t.Error("expected port 22 to match regardless of host")
	}
	if m.Matches("anything", 80) {
		t.Error("did not expect port 80 to match")
	}
}

type fakeAbp struct{ hosts map[string]bool }

func (f fakeAbp) Matches(host string) bool { return f.hosts[host] }

func TestAbp_Matches(t *testing.T) {
	m := Abp(fakeAbp{hosts: map[string]bool{"ads.example.com": true}})

	if !m.Matches("ads.example.com", 443) {
		t.Error("expected abp match")
	}
	if m.Matches("example.com", 443) {
		t.Error("did not expect abp match")
	}
}
