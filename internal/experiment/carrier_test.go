package experiment

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionCarrier_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Decision
	}{
		{name: "variant B", d: Decision{Token: 42, Variant: VariantB, URI: "/index_b.html"}},
		{name: "variant A returning", d: Decision{Token: 99, Variant: VariantA, URI: "/index.html", Returning: true}},
		{name: "undecided keeps token", d: Decision{Token: 5}},
		{name: "uri with query characters", d: Decision{Token: 0, Variant: VariantB, URI: "/b.html?x=1&y=2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeDecision(EncodeDecision(tt.d))

			require.NoError(t, err)
			assert.Equal(t, tt.d, got)
		})
	}
}

func TestEncodeDecision_Format(t *testing.T) {
	t.Parallel()

	raw := EncodeDecision(Decision{Token: 42, Variant: VariantB, URI: "/index_b.html"})

	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", v.Get("token"))
	assert.Equal(t, "B", v.Get("variant"))
	assert.Equal(t, "/index_b.html", v.Get("uri"))
	assert.Contains(t, raw, "uri=%2Findex_b.html")
}

func TestDecodeDecision_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"token=abc",
		"token=100&variant=A",
		"token=4&variant=C&uri=%2F",
		"token=%zz",
	} {
		_, err := DecodeDecision(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestDecisionContext(t *testing.T) {
	t.Parallel()

	_, ok := DecisionFromContext(context.Background())
	assert.False(t, ok)

	want := Decision{Token: 12, Variant: VariantA, URI: "/index.html"}
	got, ok := DecisionFromContext(WithDecision(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
