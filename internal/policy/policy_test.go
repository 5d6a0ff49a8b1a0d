package policy

import (
	"context"
	"net"
	"testing"

	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/config"
)

type fakeServerGroup struct{}

func (fakeServerGroup) Add(id, addr string, weight int) error { return nil }
func (fakeServerGroup) AddNamed(id, name, addr string, weight int) error {
	return nil
}

type fakeFactory struct{}

func (fakeFactory) New(alias string, loops collab.LoopGroup, hc collab.HealthCheckConfig, sel collab.SelectionPolicy) (collab.ServerGroup, error) {
	return fakeServerGroup{}, nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveV4(ctx context.Context, name string) (net.IP, error) {
	return net.ParseIP("203.0.113.1"), nil
}

type fakeCertKey struct{}

func (fakeCertKey) Domains() []string { return nil }

type fakeCertStore struct{}

func (fakeCertStore) ReadFile(certPaths []string, keyPath string) (collab.CertKey, error) {
	return fakeCertKey{}, nil
}

type fakeProcessRunner struct{}

func (fakeProcessRunner) Spawn(commandLine string) (collab.Process, error) { return fakeProcess{}, nil }

type fakeProcess struct{}

func (fakeProcess) OnExit(cb func(error)) {}
func (fakeProcess) Kill() error           { return nil }

type fakeHTTPClient struct{}

func (fakeHTTPClient) Get(url string) (int, []byte, error) { return 200, []byte("ok"), nil }

func testDeps() config.Deps {
	return config.Deps{
		ServerGroupFactory: fakeFactory{},
		Resolver:           fakeResolver{},
		CertKeyStore:       fakeCertStore{},
		ProcessRunner:      fakeProcessRunner{},
		HTTPClient:         fakeHTTPClient{},
	}
}

func mustBuild(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg, errs := config.Parse(src, testDeps())
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return cfg
}

// Scenario 1 (spec.md §8): a bare domain list with one group; matched host
// proxies through DEFAULT, unmatched host goes direct.
func TestClassify_Scenario1(t *testing.T) {
	cfg := mustBuild(t, "proxy.server.auth alice:pass\n"+
		"proxy.server.list.start\n"+
		"websocks://127.0.0.1:18686\n"+
		"proxy.server.list.end\n"+
		"proxy.domain.list.start\n"+
		"youtube.com\n"+
		"proxy.domain.list.end\n")

	f := New(cfg)

	got := f.Classify("www.youtube.com", 443)
	if got.Kind != KindProxy || got.GroupAlias != "DEFAULT" || got.ResolveAtUpstream || got.HTTPSRelay {
		t.Errorf("got %+v", got)
	}

	got = f.Classify("example.com", 443)
	if got.Kind != KindDirect {
		t.Errorf("got %+v, want Direct", got)
	}
}

// Scenario 2: resolve_at_upstream becomes true when the same pattern also
// appears in proxy.resolve.list.
func TestClassify_Scenario2_ResolveAtUpstream(t *testing.T) {
	cfg := mustBuild(t, "proxy.server.auth alice:pass\n"+
		"proxy.server.list.start\n"+
		"websocks://127.0.0.1:18686\n"+
		"proxy.server.list.end\n"+
		"proxy.domain.list.start\n"+
		`/.*\.google\.com.*/`+"\n"+
		"proxy.domain.list.end\n"+
		"proxy.resolve.list.start\n"+
		`/.*\.google\.com.*/`+"\n"+
		"proxy.resolve.list.end\n")

	f := New(cfg)
	got := f.Classify("maps.google.com", 80)
	if got.Kind != KindProxy || !got.ResolveAtUpstream || got.HTTPSRelay {
		t.Errorf("got %+v", got)
	}
}

// Scenario 3: direct-relay with a matching https-relay domain and a
// configured cert-key returns HttpsRelay.
func TestClassify_Scenario3_HTTPSRelay(t *testing.T) {
	cfg := mustBuild(t, "proxy.server.auth alice:pass\n"+
		"agent.direct-relay on\n"+
		"agent.https-relay.cert-key.list.start\n"+
		"cert.pem key.pem\n"+
		"agent.https-relay.cert-key.list.end\n"+
		"https-relay.domain.list.start\n"+
		"youtube.com\n"+
		"https-relay.domain.list.end\n")

	f := New(cfg)
	got := f.Classify("youtube.com", 443)
	if got.Kind != KindHTTPSRelay {
		t.Errorf("got %+v, want HttpsRelay", got)
	}
}

// Scenario 5: two groups A and DEFAULT both match; the non-DEFAULT group
// wins because DEFAULT is always checked last.
func TestClassify_Scenario5_NonDefaultWins(t *testing.T) {
	cfg := mustBuild(t, "proxy.server.auth alice:pass\n"+
		"proxy.server.list.start A\n"+
		"websocks://127.0.0.1:18686\n"+
		"proxy.server.list.end\n"+
		"proxy.server.list.start DEFAULT\n"+
		"websocks://127.0.0.1:18687\n"+
		"proxy.server.list.end\n"+
		"proxy.domain.list.start A\n"+
		"foo.com\n"+
		"proxy.domain.list.end\n"+
		"proxy.domain.list.start DEFAULT\n"+
		"foo.com\n"+
		"proxy.domain.list.end\n")

	f := New(cfg)
	got := f.Classify("foo.com", 443)
	if got.Kind != KindProxy || got.GroupAlias != "A" {
		t.Errorf("got %+v, want group A", got)
	}
}

// Scenario 6: a port-only rule matches any host on that port.
func TestClassify_Scenario6_PortRule(t *testing.T) {
	cfg := mustBuild(t, "proxy.server.auth alice:pass\n"+
		"proxy.server.list.start\n"+
		"websocks://127.0.0.1:18686\n"+
		"proxy.server.list.end\n"+
		"proxy.domain.list.start\n"+
		":22\n"+
		"proxy.domain.list.end\n")

	f := New(cfg)
	if got := f.Classify("anything", 22); got.Kind != KindProxy {
		t.Errorf("got %+v, want Proxy", got)
	}
	if got := f.Classify("anything", 80); got.Kind != KindDirect {
		t.Errorf("got %+v, want Direct", got)
	}
}
