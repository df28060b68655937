package edge

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
)

// NewOriginTransport returns the transport used to reach the origin.
// timeout bounds the wait for response headers.
func NewOriginTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}

// NewProxy builds the reverse proxy that runs the request phase before the
// origin fetch and the response phase after it. Paths outside the experiment
// scope are forwarded untouched.
func NewProxy(coord *Coordinator, origin *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	carrier := coord.CarrierHeader()

	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			out := pr.Out
			if coord.InScope(pr.In.URL.Path) {
				out, _ = coord.RequestPhase(out.WithContext(withScope(out.Context())))
			} else {
				observability.EdgePassthroughTotal.Inc()
			}

			// The decision never reaches the origin.
			out.Header.Del(carrier)
			pr.Out = out
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.Request == nil || !inScope(resp.Request.Context()) {
				resp.Header.Del(carrier)
				return nil
			}
			coord.ResponsePhase(resp.Request, resp.Header)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			observability.EdgeOriginErrorsTotal.Inc()
			logger.FromContext(r.Context()).Error("origin request failed",
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

type scopeKey struct{}

func withScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, true)
}

// inScope reports whether the request phase ran for this request.
func inScope(ctx context.Context) bool {
	v, _ := ctx.Value(scopeKey{}).(bool)
	return v
}
