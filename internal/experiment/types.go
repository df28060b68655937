// Package experiment holds the bucketing core of the edge: visitor tokens,
// segmentation rules, the pure decision function and the visitor identity resolver.
//
// Nothing in this package performs I/O. Configuration arrives as a SegmentationRule
// from a provider; randomness is injected through RandomSource.
package experiment

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenBuckets is the number of buckets a visitor can fall into ([0,100)).
const TokenBuckets = 100

// VisitorToken is the stable per-visitor bucket, carried as the identity cookie value.
type VisitorToken int

// Valid reports whether the token lies in [0, TokenBuckets).
func (t VisitorToken) Valid() bool {
	return t >= 0 && t < TokenBuckets
}

// String renders the token as its decimal cookie value.
func (t VisitorToken) String() string {
	return strconv.Itoa(int(t))
}

// ParseToken parses a decimal cookie value. Anything that is not a plain
// integer in [0,100) yields ErrCookieParse.
func ParseToken(raw string) (VisitorToken, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrCookieParse, raw)
	}
	t := VisitorToken(n)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d out of range [0,%d)", ErrCookieParse, n, TokenBuckets)
	}
	return t, nil
}

// Variant is one of the two content versions an experiment serves.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// Label returns the diagnostic tag consumed by the log pipeline.
func (v Variant) Label() string {
	switch v {
	case VariantA:
		return "A_VERSION"
	case VariantB:
		return "B_VERSION"
	default:
		return "NO_VERSION"
	}
}

// SegmentationRule maps a path to two variants split at SplitThreshold percent.
// Tokens below the threshold get VariantB.
type SegmentationRule struct {
	Path           string `json:"path"`
	SplitThreshold int    `json:"segment"`
	VariantA       string `json:"version_a"`
	VariantB       string `json:"version_b"`
}

// Validate checks the rule invariants. A rule that fails validation must never
// reach Decide.
func (r SegmentationRule) Validate() error {
	if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("rule path %q must start with '/'", r.Path)
	}
	if r.SplitThreshold < 0 || r.SplitThreshold > 100 {
		return fmt.Errorf("rule split threshold %d out of range [0,100]", r.SplitThreshold)
	}
	if r.VariantA == "" {
		return fmt.Errorf("rule for %q is missing version_a", r.Path)
	}
	if r.VariantB == "" {
		return fmt.Errorf("rule for %q is missing version_b", r.Path)
	}
	return nil
}

// URIFor returns the rewrite target of a variant.
func (r SegmentationRule) URIFor(v Variant) string {
	if v == VariantB {
		return r.VariantB
	}
	return r.VariantA
}

// NormalizeURI turns a stored variant into a request path. Stores commonly hold
// bare object names ("index_b.html"), so a missing leading slash is added.
func NormalizeURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" || strings.HasPrefix(uri, "/") {
		return uri
	}
	return "/" + uri
}

// Normalized returns a copy of the rule with both variant URIs normalized.
func (r SegmentationRule) Normalized() SegmentationRule {
	r.VariantA = NormalizeURI(r.VariantA)
	r.VariantB = NormalizeURI(r.VariantB)
	return r
}

// Identity is the outcome of resolving a visitor.
type Identity struct {
	Token VisitorToken
	// Returning is true when the token came from a well-formed cookie.
	Returning bool
}

// Label returns the visitor novelty tag consumed by the log pipeline.
func (i Identity) Label() string {
	if i.Returning {
		return "RETURNING_USER"
	}
	return "NEW_USER"
}

// Decision is the per-request outcome carried from the request phase to the
// response phase. Variant and URI are empty when no rule could be resolved;
// the token is always set so the visitor keeps their bucket.
type Decision struct {
	Token     VisitorToken
	Variant   Variant
	URI       string
	Returning bool
}

// Decided reports whether a variant was assigned.
func (d Decision) Decided() bool {
	return d.Variant != ""
}
