package experiment

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRequest(cookieValue string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookieValue})
	}
	return req
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cookie        string
		wantToken     VisitorToken
		wantReturning bool
	}{
		{name: "no cookie draws a new token", cookie: "", wantToken: 7, wantReturning: false},
		{name: "valid cookie", cookie: "42", wantToken: 42, wantReturning: true},
		{name: "lowest bucket", cookie: "0", wantToken: 0, wantReturning: true},
		{name: "highest bucket", cookie: "99", wantToken: 99, wantReturning: true},
		{name: "non numeric is a new visitor", cookie: "abc", wantToken: 7, wantReturning: false},
		{name: "out of range is a new visitor", cookie: "150", wantToken: 7, wantReturning: false},
		{name: "negative is a new visitor", cookie: "-3", wantToken: 7, wantReturning: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			r := NewResolver(FixedSource(7))

			// Act
			id := r.Resolve(newRequest(tt.cookie))

			// Assert
			assert.Equal(t, tt.wantToken, id.Token)
			assert.Equal(t, tt.wantReturning, id.Returning)
		})
	}
}

func TestResolver_CustomCookieName(t *testing.T) {
	t.Parallel()

	r := NewResolver(FixedSource(3), WithCookieName("bucket"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "bucket", Value: "12"})
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "90"})

	id := r.Resolve(req)

	assert.Equal(t, "bucket", r.CookieName())
	assert.Equal(t, VisitorToken(12), id.Token)
	assert.True(t, id.Returning)
}

func TestResolver_HashHeader(t *testing.T) {
	t.Parallel()

	r := NewResolver(FixedSource(0), WithHashHeader("x-client-id"))

	t.Run("same identifier yields same token", func(t *testing.T) {
		req1 := newRequest("")
		req1.Header.Set("X-Client-Id", "device-123")
		req2 := newRequest("")
		req2.Header.Set("X-Client-Id", "device-123")

		id1 := r.Resolve(req1)
		id2 := r.Resolve(req2)

		assert.Equal(t, id1.Token, id2.Token)
		assert.Equal(t, HashToken("device-123"), id1.Token)
		assert.False(t, id1.Returning)
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		req := newRequest("55")
		req.Header.Set("X-Client-Id", "device-123")

		id := r.Resolve(req)

		assert.Equal(t, VisitorToken(55), id.Token)
		assert.True(t, id.Returning)
	})

	t.Run("absent header falls back to random source", func(t *testing.T) {
		id := r.Resolve(newRequest(""))
		assert.Equal(t, VisitorToken(0), id.Token)
	})
}

func TestResolver_NilSourcePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewResolver(nil) })
}

func TestResolver_NewTokensAreUniform(t *testing.T) {
	t.Parallel()

	// Arrange
	r := NewResolver(NewSeededSource(1, 2))
	const draws = 100_000
	counts := make([]int, TokenBuckets)

	// Act
	for range draws {
		id := r.Resolve(newRequest(""))
		if !id.Token.Valid() {
			t.Fatalf("token %d out of range", id.Token)
		}
		counts[id.Token]++
	}

	// Assert: every bucket within 20% of the expected 1000 hits.
	for bucket, n := range counts {
		assert.InDelta(t, draws/TokenBuckets, n, 200, "bucket %d", bucket)
	}
}

func TestHashToken_Distribution(t *testing.T) {
	t.Parallel()

	hits := make(map[VisitorToken]bool)
	for i := range 10_000 {
		tok := HashToken(fmt.Sprintf("user-%d", i))
		assert.True(t, tok.Valid())
		hits[tok] = true
	}
	// A decent hash touches nearly every bucket with 10k inputs.
	assert.Greater(t, len(hits), 95)
}

func TestFixedSource_Clamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, FixedSource(-5).IntN(100))
	assert.Equal(t, 99, FixedSource(500).IntN(100))
	assert.Equal(t, 42, FixedSource(42).IntN(100))
}
