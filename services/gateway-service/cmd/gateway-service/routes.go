package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/decorstudio/platform/libs/auth"
)

// route sends every path under prefix to upstream. Admin routes are checked
// at the edge as well; the services verify the token again.
type route struct {
	prefix   string
	upstream *url.URL
	admin    bool
}

func routes(booking, billing *url.URL) []route {
	return []route{
		{prefix: "/api/v1/availability/", upstream: booking},
		{prefix: "/api/v1/appointments", upstream: booking},
		{prefix: "/api/v1/admin/appointments", upstream: booking, admin: true},
		{prefix: "/api/v1/admin/business-hours", upstream: booking, admin: true},
		{prefix: "/api/v1/admin/blocked-slots", upstream: booking, admin: true},
		{prefix: "/api/v1/admin/closed-days", upstream: booking, admin: true},

		{prefix: "/api/v1/admin/quotes", upstream: billing, admin: true},
		{prefix: "/api/v1/admin/quote-payments/", upstream: billing, admin: true},
		{prefix: "/api/v1/public/", upstream: billing},
		// Stripe signs its requests; there is no bearer token to check.
		{prefix: "/api/v1/webhooks/stripe", upstream: billing},
	}
}

func registerRoutes(mux *http.ServeMux, table []route, jwtSecret string, transport http.RoundTripper) {
	guard := auth.RequireRole(jwtSecret, "admin")
	proxies := map[string]*httputil.ReverseProxy{}
	for _, rt := range table {
		proxy, ok := proxies[rt.upstream.String()]
		if !ok {
			proxy = httputil.NewSingleHostReverseProxy(rt.upstream)
			proxy.Transport = transport
			proxies[rt.upstream.String()] = proxy
		}
		var h http.Handler = proxy
		if rt.admin {
			h = guard(h)
		}
		mux.Handle(rt.prefix, h)
		if rt.prefix[len(rt.prefix)-1] != '/' {
			mux.Handle(rt.prefix+"/", h)
		}
	}
}

func upstreamTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}
