package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// TracedHttpClient wraps the default transport with tracing spans. The
// bot token is replaced in span names so traces stay shareable.
func TracedHttpClient(botToken string) *http.Client {
	return &http.Client{
		Transport: tracedRoundTripper(botToken),
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (t roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return t(r)
}

func tracedRoundTripper(botToken string) roundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		url := r.URL.String()
		if botToken != "" {
			url = strings.ReplaceAll(url, botToken, "##")
		}
		newctx, span := tracer.Open(r.Context(), tracer.Named("HTTP::"+url))
		defer span.Close()
		return tracedTransport().RoundTrip(r.WithContext(newctx))
	}
}

func tracedTransport() *http.Transport {
	// This is a copy of http.DefaultTransport with a touch of tracing for dialer
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: tracedDialer(defaultTransportDialContext(&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		})),
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func tracedDialer(dialContext func(context.Context, string, string) (net.Conn, error)) func(ctx context.Context, network string, addr string) (net.Conn, error) {
	return func(ctx context.Context, network string, addr string) (net.Conn, error) {
		ctx, span := tracer.Open(ctx, tracer.Named("Dial::"+network+"//"+addr))
		defer span.Close()
		return dialContext(ctx, network, addr)
	}
}

func defaultTransportDialContext(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return dialer.DialContext
}
