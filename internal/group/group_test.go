package group

import (
	"testing"

	"wsagentcfg/internal/collab"
)

type fakeServerGroup struct{ alias string }

func (f *fakeServerGroup) Add(id, addr string, weight int) error { return nil }
func (f *fakeServerGroup) AddNamed(id, name, addr string, weight int) error {
	return nil
}

type fakeFactory struct{ created []string }

func (f *fakeFactory) New(alias string, loops collab.LoopGroup, hc collab.HealthCheckConfig, sel collab.SelectionPolicy) (collab.ServerGroup, error) {
	f.created = append(f.created, alias)
	return &fakeServerGroup{alias: alias}, nil
}

func TestRegistry_GetOrCreate_LazyAndCached(t *testing.T) {
	f := &fakeFactory{}
	r := New(f, nil, func() bool { return false })

	g1, err := r.GetOrCreate("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2, err := r.GetOrCreate("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g1 != g2 {
		t.Error("expected the same handle to be returned for a repeated alias")
	}
	if len(f.created) != 1 {
		t.Errorf("expected exactly one group to be created, got %d", len(f.created))
	}
}

func TestRegistry_GetOrCreate_EmptyAliasIsDefault(t *testing.T) {
	f := &fakeFactory{}
	r := New(f, nil, func() bool { return false })

	if _, err := r.GetOrCreate(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Has(Default) {
		t.Error("expected empty alias to register DEFAULT")
	}
}

func TestRegistry_Aliases_DefaultLast(t *testing.T) {
	f := &fakeFactory{}
	r := New(f, nil, func() bool { return false })

	for _, a := range []string{Default, "B", "A"} {
		if _, err := r.GetOrCreate(a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := r.Aliases()
	want := []string{"B", "A", Default}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestRegistry_GetOrCreate_ConsultsNoHealthCheckLazily(t *testing.T) {
	var fNoHC []collab.HealthCheckProtocol
	factory := recordingHCFactory{protocols: &fNoHC}
	noHC := false
	r := New(factory, nil, func() bool { return noHC })

	// proxy.server.hc off, as set after Registry construction but before the
	// first reference to a given alias, must still disable the probe.
	noHC = true
	if _, err := r.GetOrCreate("A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fNoHC) != 1 || fNoHC[0] != collab.HealthCheckNone {
		t.Fatalf("expected HealthCheckNone once noHealthCheck flips true before creation, got %v", fNoHC)
	}
}

type recordingHCFactory struct {
	protocols *[]collab.HealthCheckProtocol
}

func (f recordingHCFactory) New(alias string, loops collab.LoopGroup, hc collab.HealthCheckConfig, sel collab.SelectionPolicy) (collab.ServerGroup, error) {
	*f.protocols = append(*f.protocols, hc.Protocol)
	return &fakeServerGroup{alias: alias}, nil
}

func TestOrderDefaultLast(t *testing.T) {
	got := OrderDefaultLast([]string{"DEFAULT", "x", "y"})
	want := []string{"x", "y", "DEFAULT"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = OrderDefaultLast([]string{"x", "y"})
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("expected no-op without DEFAULT, got %v", got)
	}
}
