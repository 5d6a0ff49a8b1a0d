// Package httpclient is the default collab.HTTPClient / resource.Client
// implementation: a blocking net/http GET bounded by
// resource.DefaultFetchTimeout and resource.MaxRedirects, with its outcome
// recorded to internal/metrics.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"wsagentcfg/internal/metrics"
	"wsagentcfg/internal/resource"
)

// Client is the default implementation of resource.Client / collab.HTTPClient.
type Client struct {
	http *http.Client
}

// New returns a Client with resource.DefaultFetchTimeout and a redirect
// policy capped at resource.MaxRedirects hops.
func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: resource.DefaultFetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= resource.MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", resource.MaxRedirects)
				}
				return nil
			},
		},
	}
}

// Get issues a blocking GET against url.
func (c *Client) Get(url string) (status int, body []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch(time.Since(start), err == nil) }()

	resp, err := c.http.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
