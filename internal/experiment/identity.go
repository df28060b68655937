package experiment

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/bifrost/internal/logger"
)

// DefaultCookieName is the identity cookie written by the response phase.
const DefaultCookieName = "X-Experiment"

// Resolver determines the visitor token of an inbound request.
// It reads the request only; persisting the token is the response phase's job.
type Resolver struct {
	cookieName string
	hashHeader string
	rand       RandomSource
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithCookieName overrides the identity cookie name.
func WithCookieName(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// WithHashHeader derives tokens for cookie-less visitors from the murmur3 hash
// of the named header instead of drawing them at random.
func WithHashHeader(header string) ResolverOption {
	return func(r *Resolver) {
		r.hashHeader = http.CanonicalHeaderKey(header)
	}
}

// NewResolver builds a resolver drawing new tokens from src.
func NewResolver(src RandomSource, opts ...ResolverOption) *Resolver {
	if src == nil {
		panic("experiment: random source cannot be nil")
	}
	r := &Resolver{
		cookieName: DefaultCookieName,
		rand:       src,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CookieName returns the identity cookie name this resolver reads.
func (r *Resolver) CookieName() string {
	return r.cookieName
}

// Resolve returns the visitor's identity.
//
// A well-formed cookie makes a returning visitor. A missing or malformed cookie
// makes a new visitor with a freshly drawn (or header-derived) token.
func (r *Resolver) Resolve(req *http.Request) Identity {
	if c, err := req.Cookie(r.cookieName); err == nil {
		token, perr := ParseToken(c.Value)
		if perr == nil {
			return Identity{Token: token, Returning: true}
		}
		logger.FromContext(req.Context()).Debug("discarding malformed identity cookie",
			slog.String("cookie", r.cookieName),
			slog.Any("error", perr),
		)
	} else if !errors.Is(err, http.ErrNoCookie) {
		logger.FromContext(req.Context()).Debug("identity cookie unreadable", slog.Any("error", err))
	}

	if r.hashHeader != "" {
		if v := req.Header.Get(r.hashHeader); v != "" {
			return Identity{Token: HashToken(v)}
		}
	}

	return Identity{Token: VisitorToken(r.rand.IntN(TokenBuckets))}
}

// HashToken maps an arbitrary stable identifier onto a bucket with murmur3.
func HashToken(subject string) VisitorToken {
	return VisitorToken(murmur3.Sum32([]byte(subject)) % TokenBuckets)
}
