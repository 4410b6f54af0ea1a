package httpclient

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/docker/angi/pkg/version"
)

type HTTPOptions struct {
	Header     http.Header
	Timeout    time.Duration
	UnixSocket string
}

type Opt func(*HTTPOptions)

func WithHeader(key, value string) Opt {
	return func(o *HTTPOptions) {
		if value != "" {
			o.Header.Set(key, value)
		}
	}
}

// WithTimeout bounds the whole request, body included. Streaming clients
// should leave it unset.
func WithTimeout(d time.Duration) Opt {
	return func(o *HTTPOptions) {
		o.Timeout = d
	}
}

// WithUnixSocket sends every request over the unix socket at path, whatever
// the host of the request URL.
func WithUnixSocket(path string) Opt {
	return func(o *HTTPOptions) {
		o.UnixSocket = path
	}
}

// NewHTTPClient returns a client that identifies itself as angi and adds the
// configured headers to every request.
func NewHTTPClient(opts ...Opt) *http.Client {
	httpOptions := HTTPOptions{
		Header: make(http.Header),
	}
	for _, opt := range opts {
		opt(&httpOptions)
	}
	httpOptions.Header.Set("User-Agent", UserAgent())

	var rt http.RoundTripper = http.DefaultTransport
	if socket := httpOptions.UnixSocket; socket != "" {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		}
		rt = transport
	}

	return &http.Client{
		Timeout: httpOptions.Timeout,
		Transport: &headerTransport{
			header: httpOptions.Header,
			rt:     rt,
		},
	}
}

func UserAgent() string {
	return fmt.Sprintf("Angi/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)
}

type headerTransport struct {
	header http.Header
	rt     http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	maps.Copy(r2.Header, t.header)
	return t.rt.RoundTrip(r2)
}
