package ls

import (
	"context"
	"fmt"
	"net"

	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/config"
)

// diagnosticDeps builds a config.Deps that never performs real I/O: a
// keystroke must never dial a DNS server, spawn a sub-process, or fetch a
// remote ABP list. It exists purely so config.Parse can run far enough to
// produce line diagnostics while the user is editing.
func diagnosticDeps() config.Deps {
	return config.Deps{
		ServerGroupFactory: noopServerGroupFactory{},
		Loops:              noopLoopGroup{},
		Resolver:           noopResolver{},
		CertKeyStore:       noopCertKeyStore{},
		ProcessRunner:      noopProcessRunner{},
		HTTPClient:         noopHTTPClient{},
	}
}

type noopServerGroup struct{}

func (noopServerGroup) Add(id, addr string, weight int) error           { return nil }
func (noopServerGroup) AddNamed(id, name, addr string, weight int) error { return nil }

type noopServerGroupFactory struct{}

func (noopServerGroupFactory) New(alias string, loops collab.LoopGroup, hc collab.HealthCheckConfig, sel collab.SelectionPolicy) (collab.ServerGroup, error) {
	return noopServerGroup{}, nil
}

type noopLoopGroup struct{}

func (noopLoopGroup) Next() any { return nil }
func (noopLoopGroup) Len() int  { return 1 }

// noopResolver returns a placeholder address for every hostname instead of
// querying DNS, so editing a server-list line never blocks on the network.
type noopResolver struct{}

func (noopResolver) ResolveV4(ctx context.Context, name string) (net.IP, error) {
	if ip := net.ParseIP(name); ip != nil {
		return ip, nil
	}
	return net.IPv4(127, 0, 0, 1), nil
}

type noopCertKey struct{}

func (noopCertKey) Domains() []string { return nil }

type noopCertKeyStore struct{}

func (noopCertKeyStore) ReadFile(certPaths []string, keyPath string) (collab.CertKey, error) {
	return noopCertKey{}, nil
}

type noopProcess struct{}

func (noopProcess) OnExit(cb func(error)) {}
func (noopProcess) Kill() error           { return nil }

type noopProcessRunner struct{}

func (noopProcessRunner) Spawn(commandLine string) (collab.Process, error) {
	return noopProcess{}, nil
}

// noopHTTPClient reports every remote ABP fetch as unreachable rather than
// actually issuing the request; the resulting diagnostic tells the user the
// list couldn't be validated while editing, without a network round-trip.
type noopHTTPClient struct{}

func (noopHTTPClient) Get(url string) (int, []byte, error) {
	return 0, nil, fmt.Errorf("remote lists are not fetched while editing")
}
