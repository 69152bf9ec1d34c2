// Package transport builds the HTTP client used for Shopify Storefront API calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// UserAgent identifies the storefront on outbound requests.
const UserAgent = "Aura-Storefront/1.0"

// Options configures NewStorefrontClient.
type Options struct {
	// Timeout bounds the whole request. Zero means 30s.
	Timeout time.Duration
	// PlainTLS disables the browser fingerprint and uses Go's TLS stack.
	PlainTLS bool
}

// NewStorefrontClient returns an HTTP client for Storefront API traffic.
//
// By default TLS handshakes present a Chrome ClientHello via uTLS so CDN
// bot scoring sees a browser. HTTP/2 is used when ALPN selects it; hosts
// that decline h2 are remembered and served over HTTP/1.1.
func NewStorefrontClient(opts Options) *http.Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	var rt http.RoundTripper
	if opts.PlainTLS {
		rt = http.DefaultTransport
	} else {
		rt = NewChromeTransport(opts.Timeout)
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgentTransport{next: rt},
	}
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to upstream servers.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}
	t := &chromeTransport{}

	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}
	t.h1 = &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		TLSHandshakeTimeout: timeout,
		IdleConnTimeout:     90 * time.Second,
	}
	return t
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport

	// http1Hosts records hosts where h2 failed.
	http1Hosts sync.Map
}

func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	if _, ok := t.http1Hosts.Load(req.URL.Host); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	// The body was consumed by the h2 attempt; only retry when it can be rewound.
	retry := req
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, berr := req.GetBody()
		if berr != nil {
			return nil, err
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	resp, h1err := t.h1.RoundTrip(retry)
	if h1err != nil {
		return nil, fmt.Errorf("h2: %v; http/1.1: %w", err, h1err)
	}
	t.http1Hosts.Store(req.URL.Host, struct{}{})
	return resp, nil
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return tlsConn, nil
}

// userAgentTransport sets a User-Agent on requests that lack one.
type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}
