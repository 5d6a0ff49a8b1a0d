// Package autosign backs the agent's direct-relay TLS termination: a local
// certificate authority (loaded from agent.auto-sign's cert/key pair) signs
// a fresh leaf certificate per relayed domain the first time it's needed,
// and caches the result in the auto-sign work directory as <domain>.crt /
// <domain>.key (spec.md §4.6 agent.auto-sign, §4.7 step 7, §6.3).
//
// ACME (acmez/libdns/zerossl) has no role here: direct relay terminates TLS
// for domains the agent does not own, so a publicly trusted CA will never
// issue for them. certmagic is still useful as a storage abstraction over
// the work directory, so the cache survives restarts the same way Caddy's
// own certificate cache does.
package autosign

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/caddyserver/certmagic"

	"wsagentcfg/internal/collab"
)

// CA is a local signing authority loaded from an agent.auto-sign cert/key
// pair. It issues short-lived leaf certificates for direct-relay domains on
// demand and caches them through a certmagic.Storage backend.
type CA struct {
	cert    *x509.Certificate
	key     *ecdsa.PrivateKey
	storage certmagic.Storage
	leafTTL time.Duration
}

// NewCA loads the root cert/key pair named by certPath/keyPath and wires
// storage as the cache for issued leaf pairs (certmagic.FileStorage over the
// auto-sign work dir is the expected caller).
func NewCA(certPath, keyPath string, storage certmagic.Storage) (*CA, error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading auto-sign CA pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing auto-sign CA certificate: %w", err)
	}
	ecKey, ok := pair.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("auto-sign CA key must be an ECDSA private key")
	}
	return &CA{cert: leaf, key: ecKey, storage: storage, leafTTL: 90 * 24 * time.Hour}, nil
}

// NewFileStorage returns a certmagic.FileStorage rooted at workDir.
func NewFileStorage(workDir string) certmagic.Storage {
	return &certmagic.FileStorage{Path: workDir}
}

// certKey implements collab.CertKey for a CA-issued or cache-loaded pair.
type certKey struct {
	domains []string
	certPEM []byte
	keyPEM  []byte
}

func (c certKey) Domains() []string { return c.domains }

// IssueFor returns the cached leaf pair for domain, signing a fresh one
// through the local CA if none is cached yet.
func (ca *CA) IssueFor(ctx context.Context, domain string) (collab.CertKey, error) {
	certStoreKey := domain + ".crt"
	keyStoreKey := domain + ".key"

	if certPEM, err := ca.storage.Load(ctx, certStoreKey); err == nil {
		if keyPEM, err := ca.storage.Load(ctx, keyStoreKey); err == nil {
			return certKey{domains: []string{domain}, certPEM: certPEM, keyPEM: keyPEM}, nil
		}
	}

	certPEM, keyPEM, err := ca.sign(domain)
	if err != nil {
		return nil, err
	}
	if err := ca.storage.Store(ctx, certStoreKey, certPEM); err != nil {
		return nil, fmt.Errorf("caching issued cert for %q: %w", domain, err)
	}
	if err := ca.storage.Store(ctx, keyStoreKey, keyPEM); err != nil {
		return nil, fmt.Errorf("caching issued key for %q: %w", domain, err)
	}
	return certKey{domains: []string{domain}, certPEM: certPEM, keyPEM: keyPEM}, nil
}

func (ca *CA) sign(domain string) (certPEM, keyPEM []byte, err error) {
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating leaf key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generating serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(ca.leafTTL),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &leafKey.PublicKey, ca.key)
	if err != nil {
		return nil, nil, fmt.Errorf("signing leaf certificate for %q: %w", domain, err)
	}

	keyDER, err := x509.MarshalECPrivateKey(leafKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling leaf key for %q: %w", domain, err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// Store is the collab.CertKeyStore implementation used for pre-existing
// cert/key file pairs named in agent.https-relay.cert-key.list and for the
// auto-sign work dir scan (spec.md §4.7 steps 2 and 7).
type Store struct{}

// ReadFile loads a certificate chain (possibly split across certPaths) and
// its private key from disk and returns an opaque CertKey handle.
func (Store) ReadFile(certPaths []string, keyPath string) (collab.CertKey, error) {
	var certPEM []byte
	for _, p := range certPaths {
		b, err := pemFileBytes(p)
		if err != nil {
			return nil, err
		}
		certPEM = append(certPEM, b...)
	}
	keyPEM, err := pemFileBytes(keyPath)
	if err != nil {
		return nil, err
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("loading cert-key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing cert-key pair: %w", err)
	}

	domains := leaf.DNSNames
	if len(domains) == 0 {
		domains = []string{leaf.Subject.CommonName}
	}
	return certKey{domains: domains, certPEM: certPEM, keyPEM: keyPEM}, nil
}

func pemFileBytes(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return b, nil
}
