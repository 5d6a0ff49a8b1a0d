// Package resource loads the raw bytes behind a "[ref]" rule line (internal
// config's Parser.buildMatcher, §4.4): either a local file path or an http(s) URL.
// Every call in this package blocks; that is acceptable because it only ever
// runs once, synchronously, during startup parsing (spec.md §5).
package resource

import (
	"fmt"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// ResourceError wraps a failure to read path_or_url, keeping the offending
// reference for the top-level error message.
type ResourceError struct {
	PathOrURL string
	Cause     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q: %v", e.PathOrURL, e.Cause)
}
func (e *ResourceError) Unwrap() error { return e.Cause }

// NetworkError is raised when a remote fetch does not come back with a
// usable 200 response.
type NetworkError struct {
	URL    string
	Status string
	Cause  error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network fetch %q: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("network fetch %q: unexpected status %q", e.URL, e.Status)
}

// DefaultFetchTimeout bounds the ABP-list HTTP(S) GET; spec.md §5 leaves this
// unspecified and suggests "a sane default, e.g. 30s".
const DefaultFetchTimeout = 30 * time.Second

// MaxRedirects caps the number of redirects a Client implementation follows.
const MaxRedirects = 5

// IsRemote reports whether ref names an http(s) URL rather than a local path.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// LoadLocal expands a leading "~" to the current user's home directory and
// reads the entire file at path.
func LoadLocal(path string) ([]byte, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, &ResourceError{PathOrURL: path, Cause: err}
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, &ResourceError{PathOrURL: path, Cause: err}
	}
	return b, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	rest := strings.TrimPrefix(path, "~")
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	return filepath.Join(u.HomeDir, rest), nil
}

// Client is a narrow blocking HTTP client contract; internal/httpclient
// provides the default implementation, and tests can substitute a fake.
type Client interface {
	Get(url string) (status int, body []byte, err error)
}

// LoadRemote issues one blocking GET against url using c and requires a 200
// status and non-empty body. Redirects are left to c (internal/httpclient
// follows at most MaxRedirects).
func LoadRemote(c Client, url string) ([]byte, error) {
	status, body, err := c.Get(url)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	if status != http.StatusOK {
		return nil, &NetworkError{URL: url, Status: fmt.Sprintf("%d", status)}
	}
	if len(body) == 0 {
		return nil, &NetworkError{URL: url, Cause: fmt.Errorf("empty body")}
	}
	return body, nil
}

// Load reads ref (a local path or an http(s) URL) via the appropriate
// mechanism.
func Load(c Client, ref string) ([]byte, error) {
	if IsRemote(ref) {
		return LoadRemote(c, ref)
	}
	return LoadLocal(ref)
}
