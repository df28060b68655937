// Package edge runs the experiment protocol around an origin fetch.
//
// The request phase resolves the visitor, looks the rule up through the rule
// cache, decides the variant and rewrites the request path. The decision rides
// on the request (context value plus a synthetic header) to the response phase,
// which persists the visitor token as a cookie. Neither phase ever fails the
// request: without a rule the request goes to the origin unmodified.
package edge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rafaeljc/bifrost/internal/cache"
	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/provider"
)

// RuleSource is the read side of the rule cache.
type RuleSource interface {
	GetOrFetch(ctx context.Context, path string, ttl time.Duration, fetch cache.FetchFunc) (experiment.SegmentationRule, error)
}

// CookieOptions shapes the identity cookie.
type CookieOptions struct {
	Name string
	// MaxAge of zero makes a session cookie.
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
}

// Options configures a Coordinator.
type Options struct {
	// Paths are the request paths that take part in the experiment.
	Paths []string
	// TTL is how long a fetched rule is reused.
	TTL           time.Duration
	Cookie        CookieOptions
	CarrierHeader string
	// Observer, when set, is called on every state transition.
	Observer func(*http.Request, State)
}

// Coordinator owns the two protocol phases. It is safe for concurrent use;
// all per-request state lives on the request.
type Coordinator struct {
	resolver *experiment.Resolver
	rules    RuleSource
	provider provider.Provider
	ttl      time.Duration
	scope    map[string]struct{}
	cookie   CookieOptions
	carrier  string
	observe  func(*http.Request, State)
}

// NewCoordinator wires the resolver, the rule cache and the provider behind it.
func NewCoordinator(resolver *experiment.Resolver, rules RuleSource, p provider.Provider, opts Options) *Coordinator {
	if resolver == nil || rules == nil || p == nil {
		panic("edge: resolver, rule source and provider are required")
	}
	if opts.CarrierHeader == "" {
		opts.CarrierHeader = experiment.DefaultCarrierHeader
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = resolver.CookieName()
	}
	if len(opts.Paths) == 0 {
		opts.Paths = []string{"/"}
	}

	scope := make(map[string]struct{}, len(opts.Paths))
	for _, p := range opts.Paths {
		scope[p] = struct{}{}
	}

	return &Coordinator{
		resolver: resolver,
		rules:    rules,
		provider: p,
		ttl:      opts.TTL,
		scope:    scope,
		cookie:   opts.Cookie,
		carrier:  http.CanonicalHeaderKey(opts.CarrierHeader),
		observe:  opts.Observer,
	}
}

// CarrierHeader returns the canonical name of the synthetic decision header.
func (c *Coordinator) CarrierHeader() string {
	return c.carrier
}

// InScope reports whether path takes part in the experiment.
func (c *Coordinator) InScope(path string) bool {
	_, ok := c.scope[path]
	return ok
}

func (c *Coordinator) transition(r *http.Request, s State) {
	if c.observe != nil {
		c.observe(r, s)
	}
}

// RequestPhase decides the variant for r and rewrites its path. It returns the
// request carrying the decision in its context; the caller must use it in
// place of r.
//
// Any carrier header sent by the client is discarded first.
func (c *Coordinator) RequestPhase(r *http.Request) (*http.Request, experiment.Decision) {
	start := time.Now()
	defer func() { observability.EdgeRequestPhaseDuration.Observe(time.Since(start).Seconds()) }()

	r.Header.Del(c.carrier)
	c.transition(r, RequestReceived)

	ctx := r.Context()
	log := logger.FromContext(ctx)
	path := r.URL.Path

	id := c.resolver.Resolve(r)
	c.transition(r, TokenResolved)

	decision := experiment.Decision{Token: id.Token, Returning: id.Returning}

	rule, err := c.rules.GetOrFetch(ctx, path, c.ttl, c.provider.Fetch)
	if err != nil {
		// Fail open: the origin serves the requested path, the token is still persisted.
		reason := experiment.FailureKind(err)
		observability.EdgeFailOpenTotal.WithLabelValues(reason).Inc()
		level := slog.LevelWarn
		if reason == "missing" {
			level = slog.LevelInfo
		}
		log.Log(ctx, level, "no experiment rule, forwarding unmodified",
			slog.String("path", path),
			slog.String("visitor", id.Label()),
			slog.Int("token", int(id.Token)),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return c.attach(r, decision), decision
	}
	c.transition(r, RuleResolved)

	variant, uri := experiment.Decide(id.Token, rule)
	decision.Variant = variant
	decision.URI = uri
	c.transition(r, Decided)

	r.URL.Path = uri
	r.URL.RawPath = ""
	c.transition(r, URIRewritten)

	observability.EdgeDecisionsTotal.WithLabelValues(variant.Label(), id.Label()).Inc()
	log.Info("experiment decision",
		slog.String("path", path),
		slog.String("visitor", id.Label()),
		slog.String("variant", variant.Label()),
		slog.Int("token", int(id.Token)),
		slog.String("uri", uri),
	)

	return c.attach(r, decision), decision
}

func (c *Coordinator) attach(r *http.Request, d experiment.Decision) *http.Request {
	r.Header.Set(c.carrier, experiment.EncodeDecision(d))
	return r.WithContext(experiment.WithDecision(r.Context(), d))
}

// DecisionFor recovers the decision of r: context first, carrier header second.
func (c *Coordinator) DecisionFor(r *http.Request) (experiment.Decision, bool) {
	if d, ok := experiment.DecisionFromContext(r.Context()); ok {
		return d, true
	}
	raw := r.Header.Get(c.carrier)
	if raw == "" {
		return experiment.Decision{}, false
	}
	d, err := experiment.DecodeDecision(raw)
	if err != nil {
		logger.FromContext(r.Context()).Warn("discarding malformed decision carrier", slog.Any("error", err))
		return experiment.Decision{}, false
	}
	return d, true
}

// ResponsePhase persists the visitor token from r's decision into header as a
// Set-Cookie. Without a decision the response passes through untouched.
func (c *Coordinator) ResponsePhase(r *http.Request, header http.Header) {
	c.transition(r, ResponseReceived)
	defer c.transition(r, ResponseReturned)

	header.Del(c.carrier)

	d, ok := c.DecisionFor(r)
	if !ok {
		observability.EdgeCarrierMissingTotal.Inc()
		logger.FromContext(r.Context()).Warn("response without experiment decision, cookie not set",
			slog.String("path", r.URL.Path),
		)
		return
	}

	header.Add("Set-Cookie", c.cookieFor(d.Token).String())
	c.transition(r, CookiePersisted)
}

func (c *Coordinator) cookieFor(token experiment.VisitorToken) *http.Cookie {
	return &http.Cookie{
		Name:     c.cookie.Name,
		Value:    token.String(),
		Path:     "/",
		MaxAge:   int(c.cookie.MaxAge / time.Second),
		Secure:   c.cookie.Secure,
		HttpOnly: c.cookie.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
