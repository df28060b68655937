package experiment

import (
	"context"
	"fmt"
	"net/url"
)

// DefaultCarrierHeader is the synthetic header that carries a Decision from the
// request phase to the response phase. It never leaves the edge.
const DefaultCarrierHeader = "X-Experiment-Decision"

type decisionKey struct{}

// WithDecision attaches d to ctx.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the decision attached by the request phase, if any.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// EncodeDecision renders d as the carrier header value,
// e.g. "token=42&uri=%2Findex_b.html&variant=B".
func EncodeDecision(d Decision) string {
	v := url.Values{}
	v.Set("token", d.Token.String())
	if d.Decided() {
		v.Set("variant", string(d.Variant))
		v.Set("uri", d.URI)
	}
	if d.Returning {
		v.Set("returning", "1")
	}
	return v.Encode()
}

// DecodeDecision parses a carrier header value produced by EncodeDecision.
func DecodeDecision(raw string) (Decision, error) {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("malformed decision carrier: %w", err)
	}
	token, err := ParseToken(v.Get("token"))
	if err != nil {
		return Decision{}, fmt.Errorf("malformed decision carrier: %w", err)
	}
	d := Decision{Token: token, Returning: v.Get("returning") == "1"}

	switch variant := Variant(v.Get("variant")); variant {
	case "":
	case VariantA, VariantB:
		d.Variant = variant
		d.URI = v.Get("uri")
	default:
		return Decision{}, fmt.Errorf("malformed decision carrier: unknown variant %q", variant)
	}
	return d, nil
}
