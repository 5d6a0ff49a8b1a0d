// Package collab defines the collaborator contracts the core consumes
// (spec.md §6.2). The core never constructs the real thing: a health checker,
// a WebSocks wire connection, a KCP transport — it only asks these interfaces
// for opaque handles and is handed them back at classify time.
package collab

import (
	"context"
	"net"
)

// HealthCheckProtocol selects how a ServerGroup probes its members.
type HealthCheckProtocol int

const (
	HealthCheckTCP HealthCheckProtocol = iota
	HealthCheckNone
)

// HealthCheckConfig is the fixed probe configuration §4.5 assigns to every
// group created through GetOrCreate.
type HealthCheckConfig struct {
	InitialDelayMS int
	PeriodMS       int
	Up             int
	Down           int
	Protocol       HealthCheckProtocol
}

// SelectionPolicy names the upstream-selection strategy for a ServerGroup.
type SelectionPolicy int

const (
	SelectionWeightedRoundRobin SelectionPolicy = iota
)

// LoopGroup iterates the agent's worker loops, round-robining on Next. Loop
// identities are returned as `any`; the core only ever compares them for
// equality when building per-loop KCP transports, never inspects contents.
type LoopGroup interface {
	Next() any
	Len() int
}

// ServerGroup is an opaque handle to a group of upstream WebSocks servers.
// The core never dials through it; it only registers entries.
type ServerGroup interface {
	// Add registers a server reachable by address addr (host:port) with the
	// given weight. id is the entry's raw_id (§3 ServerEntry).
	Add(id, addr string, weight int) error
	// AddNamed registers a server with an additional display name, used when
	// the entry also carries a sub-process-backed local endpoint.
	AddNamed(id, name, addr string, weight int) error
}

// ServerGroupFactory creates ServerGroup handles. GetOrCreate in
// internal/group is the only caller.
type ServerGroupFactory interface {
	New(alias string, loops LoopGroup, hc HealthCheckConfig, sel SelectionPolicy) (ServerGroup, error)
}

// Resolver resolves upstream server hostnames to IPv4 addresses at parse
// time (spec.md §4.6 step 4). Blocking by design — see spec.md §5.
type Resolver interface {
	ResolveV4(ctx context.Context, name string) (net.IP, error)
}

// CertKey is an opaque certificate/private-key handle.
type CertKey interface {
	// Domains reports the SANs covered by this pair, used for diagnostics.
	Domains() []string
}

// CertKeyStore reads certificate/key material named by file paths into an
// opaque CertKey handle (§6.2, §4.7 step 2, §4.7 step 7).
type CertKeyStore interface {
	ReadFile(certPaths []string, keyPath string) (CertKey, error)
}

// Process is a handle to a detached background sub-process spawned from a
// server-list "program" clause (§4.6 step 2).
type Process interface {
	OnExit(cb func(error))
	Kill() error
}

// ProcessRunner spawns detached background processes and pipes their
// stdout/stderr to the agent log; it never awaits them.
type ProcessRunner interface {
	Spawn(commandLine string) (Process, error)
}

// HTTPClient performs a blocking HTTP(S) GET used to fetch remote ABP lists
// (§4.3). It satisfies resource.Client structurally.
type HTTPClient interface {
	Get(url string) (status int, body []byte, err error)
}
