package resolver

import (
	"context"
	"testing"
)

func TestDNS_ResolveV4_IPLiteralShortCircuits(t *testing.T) {
	r := NewDNS("203.0.113.53:53")
	ip, err := r.ResolveV4(context.Background(), "198.51.100.7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ip.String() != "198.51.100.7" {
		t.Errorf("got %v", ip)
	}
}
