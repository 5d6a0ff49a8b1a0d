// Command wsagentcfg exercises the configuration/routing-policy core end to
// end: load a config file, parse it, validate it, and either classify a
// host:port pair or dump the parsed model for inspection. It is the
// "dispatcher" caller spec.md's §2/§4.8 assumes exists but deliberately
// leaves external.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"go.yaml.in/yaml/v2"

	"wsagentcfg/internal/autosign"
	"wsagentcfg/internal/collab"
	"wsagentcfg/internal/config"
	"wsagentcfg/internal/httpclient"
	"wsagentcfg/internal/metrics"
	"wsagentcfg/internal/policy"
	"wsagentcfg/internal/procrunner"
	"wsagentcfg/internal/resolver"
	"wsagentcfg/internal/validate"
)

var appVersion = "dev"

func main() {
	var (
		showVersion bool
		logLevel    string
		file        string
		classify    string
		dnsServer   string
		dump        bool
		metricsAddr string
	)

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&logLevel, "log-level", "warning", "log level: debug, info, warning, error")
	flag.StringVar(&file, "file", "", "path to the agent config file (required)")
	flag.StringVar(&classify, "classify", "", "host:port to classify against the parsed config")
	flag.StringVar(&dnsServer, "dns", "1.1.1.1:53", "upstream DNS server used to resolve server-list hostnames")
	flag.BoolVar(&dump, "dump", false, "print the parsed config as YAML and exit")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	if showVersion {
		fmt.Printf("wsagentcfg %s\n", appVersion)
		return
	}

	configureLogging(logLevel)

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	if file == "" {
		fail("-file is required")
	}

	src, err := os.ReadFile(file)
	if err != nil {
		fail("reading %s: %v", file, err)
	}

	certStore := autosign.Store{}
	deps := config.Deps{
		ServerGroupFactory: recordingFactory{},
		Loops:              singleLoop{},
		Resolver:           resolver.NewDNS(dnsServer),
		CertKeyStore:       certStore,
		ProcessRunner:      procrunner.New(),
		HTTPClient:         httpclient.New(),
	}

	parseStart := time.Now()
	cfg, parseErrs := config.Parse(string(src), deps)
	metrics.ObserveParse(time.Since(parseStart), len(parseErrs) == 0)
	if len(parseErrs) > 0 {
		for _, pe := range parseErrs {
			printError(pe.Error())
		}
		os.Exit(1)
	}
	defer cfg.Cleanup()

	if err := validate.Run(cfg, certStore); err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	recordGroupMatcherCounts(cfg)

	if dump {
		dumpConfig(cfg)
		return
	}

	if classify != "" {
		host, port, err := splitHostPort(classify)
		if err != nil {
			fail("-classify: %v", err)
		}
		facade := policy.New(cfg)
		printDecision(facade.Classify(host, port))
		return
	}

	printOK("config OK: %s", file)
}

// recordGroupMatcherCounts refreshes the group_matcher_count gauge for every
// alias across the three per-group matcher lists, right after a successful
// parse+validate.
func recordGroupMatcherCounts(cfg *config.Config) {
	for _, alias := range cfg.Domains.RawAliases() {
		metrics.GroupMatcherCount.WithLabelValues(alias, "domain").Set(float64(len(cfg.Domains.List(alias))))
	}
	for _, alias := range cfg.ProxyResolves.RawAliases() {
		metrics.GroupMatcherCount.WithLabelValues(alias, "resolve").Set(float64(len(cfg.ProxyResolves.List(alias))))
	}
	for _, alias := range cfg.NoProxyDomains.RawAliases() {
		metrics.GroupMatcherCount.WithLabelValues(alias, "no_proxy").Set(float64(len(cfg.NoProxyDomains.List(alias))))
	}
}

func configureLogging(level string) {
	verbosity := 2
	switch level {
	case "debug":
		verbosity = 5
	case "info":
		verbosity = 4
	case "warning", "warn":
		verbosity = 2
	case "error":
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		printError("metrics server: %v", err)
	}
}

func splitHostPort(hostPort string) (string, uint16, error) {
	i := strings.LastIndex(hostPort, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("expected host:port, got %q", hostPort)
	}
	host := hostPort[:i]
	port, err := strconv.ParseUint(hostPort[i+1:], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", hostPort, err)
	}
	return host, uint16(port), nil
}

var profile = termenv.ColorProfile()

func printDecision(d policy.Decision) {
	kind := decisionKindLabel(d.Kind)
	style := termenv.String(kind).Foreground(profile.Color(decisionColor(d.Kind))).Bold()
	fmt.Printf("%s", style)
	if d.GroupAlias != "" {
		fmt.Printf(" group=%s", d.GroupAlias)
	}
	if d.ResolveAtUpstream {
		fmt.Print(" resolve_at_upstream")
	}
	if d.HTTPSRelay {
		fmt.Print(" https_relay")
	}
	fmt.Println()
}

func decisionKindLabel(k policy.Kind) string {
	switch k {
	case policy.KindDirect:
		return "DIRECT"
	case policy.KindHTTPSRelay:
		return "HTTPS_RELAY"
	case policy.KindNoProxy:
		return "NO_PROXY"
	case policy.KindProxy:
		return "PROXY"
	default:
		return "UNKNOWN"
	}
}

func decisionColor(k policy.Kind) string {
	switch k {
	case policy.KindDirect:
		return "2" // green
	case policy.KindHTTPSRelay:
		return "5" // magenta
	case policy.KindNoProxy:
		return "3" // yellow
	case policy.KindProxy:
		return "4" // blue
	default:
		return "1" // red
	}
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, termenv.String("error: "+msg).Foreground(profile.Color("1")))
}

func printOK(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(termenv.String(msg).Foreground(profile.Color("2")))
}

func fail(format string, args ...any) {
	printError(format, args...)
	os.Exit(1)
}

// recordingFactory builds recordingGroups that simply remember what they
// were told to register, since cmd/wsagentcfg never dials an actual
// WebSocks connection (§1 Non-goals).
type recordingFactory struct{}

func (recordingFactory) New(alias string, loops collab.LoopGroup, hc collab.HealthCheckConfig, sel collab.SelectionPolicy) (collab.ServerGroup, error) {
	return &recordingGroup{alias: alias}, nil
}

type recordingGroup struct {
	alias   string
	entries []string
}

func (g *recordingGroup) Add(id, addr string, weight int) error {
	g.entries = append(g.entries, fmt.Sprintf("%s -> %s (weight %d)", id, addr, weight))
	return nil
}

func (g *recordingGroup) AddNamed(id, name, addr string, weight int) error {
	g.entries = append(g.entries, fmt.Sprintf("%s (%s) -> %s (weight %d)", id, name, addr, weight))
	return nil
}

// singleLoop is a one-element collab.LoopGroup; cmd/wsagentcfg never models
// multiple worker loops, it just needs something to satisfy config.Deps.
type singleLoop struct{}

func (singleLoop) Next() any { return 0 }
func (singleLoop) Len() int  { return 1 }

// dumpRecord is the YAML shape printed by -dump, a deliberately flattened
// view of config.Config rather than a direct field dump — httpsRelayCertKeyFiles
// and other parse-internal bookkeeping stay out of it.
type dumpRecord struct {
	Socks5Port      uint16   `yaml:"socks5_port"`
	HTTPConnectPort uint16   `yaml:"httpconnect_port"`
	SSPort          uint16   `yaml:"ss_port"`
	DNSPort         uint16   `yaml:"dns_port"`
	PACPort         uint16   `yaml:"pac_port"`
	Gateway         bool     `yaml:"gateway"`
	DirectRelay     bool     `yaml:"direct_relay"`
	ProxyRelay      string   `yaml:"proxy_relay"`
	Groups          []string `yaml:"groups"`
	DomainAliases   []string `yaml:"domain_aliases"`
	NoProxyAliases  []string `yaml:"no_proxy_aliases"`
}

func dumpConfig(cfg *config.Config) {
	rec := dumpRecord{
		Socks5Port:      cfg.Socks5Port,
		HTTPConnectPort: cfg.HTTPConnectPort,
		SSPort:          cfg.SSPort,
		DNSPort:         cfg.DNSPort,
		PACPort:         cfg.PACPort,
		Gateway:         cfg.Gateway,
		DirectRelay:     cfg.DirectRelay,
		ProxyRelay:      cfg.ProxyRelay.String(),
		Groups:          cfg.GroupOrder,
		DomainAliases:   cfg.Domains.Aliases(),
		NoProxyAliases:  cfg.NoProxyDomains.Aliases(),
	}
	out, err := yaml.Marshal(rec)
	if err != nil {
		fail("marshaling dump: %v", err)
	}
	os.Stdout.Write(out)
}
